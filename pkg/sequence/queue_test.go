package sequence

import "testing"

func TestPriorityQueueOrdering(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low", 1)
	pq.Enqueue("high", 10)
	pq.Enqueue("mid", 5)

	want := []string{"high", "mid", "low"}
	for _, w := range want {
		v, ok := pq.Dequeue()
		if !ok {
			t.Fatalf("queue exhausted early, wanted %q", w)
		}
		if v != w {
			t.Fatalf("dequeue order: got %q, want %q", v, w)
		}
	}
	if !pq.IsEmpty() {
		t.Fatalf("queue not empty after draining")
	}
}

func TestPriorityQueueStableWithinPriority(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 100; i++ {
		pq.Enqueue(i, 7)
	}
	for i := 0; i < 100; i++ {
		v, ok := pq.Dequeue()
		if !ok {
			t.Fatalf("queue exhausted at %d", i)
		}
		if v != i {
			t.Fatalf("equal-priority items reordered: got %d, want %d", v, i)
		}
	}
}

func TestPriorityQueueInterleaved(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("a1", 1)
	pq.Enqueue("b1", 2)
	pq.Enqueue("a2", 1)
	pq.Enqueue("b2", 2)

	want := []string{"b1", "b2", "a1", "a2"}
	for _, w := range want {
		v, _ := pq.Dequeue()
		if v != w {
			t.Fatalf("got %q, want %q", v, w)
		}
	}
}

func TestPriorityQueuePeek(t *testing.T) {
	pq := NewPriorityQueue[string]()
	if _, ok := pq.Peek(); ok {
		t.Fatal("peek on empty queue should report not ok")
	}
	pq.Enqueue("x", 3)
	pq.Enqueue("y", 9)
	v, ok := pq.Peek()
	if !ok || v != "y" {
		t.Fatalf("peek: got %q ok=%v, want y", v, ok)
	}
	if pq.Len() != 2 {
		t.Fatalf("peek must not consume, len=%d", pq.Len())
	}
}
