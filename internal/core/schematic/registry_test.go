package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/world"
)

type tagComponent struct{}

func (tagComponent) Kind() world.ComponentKind { return "tag" }

type statComponent struct {
	HP int
}

func (statComponent) Kind() world.ComponentKind { return "stat" }

func decodeTag(Fragment) (tagComponent, error) {
	return tagComponent{}, nil
}

func decodeStat(f Fragment) (statComponent, error) {
	hp, err := FieldInt(f, "hp")
	if err != nil {
		return statComponent{}, err
	}
	return statComponent{HP: hp}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("Tag", ComponentType(decodeTag)))
	require.NoError(t, r.Register("Stat", ComponentType(decodeStat)))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("Duplicate", func(t *testing.T) {
		err := r.Register("Tag", ComponentType(decodeTag))
		require.ErrorIs(t, err, ErrDuplicateSchematic)
	})

	t.Run("EmptyID", func(t *testing.T) {
		require.Error(t, r.Register("", ComponentType(decodeTag)))
	})

	t.Run("NilApplier", func(t *testing.T) {
		require.Error(t, r.Register("Nil", nil))
	})

	t.Run("Lookup", func(t *testing.T) {
		assert.True(t, r.Has("Tag"))
		assert.False(t, r.Has("Missing"))
		assert.Equal(t, []TypeID{"Stat", "Tag"}, r.Types())
	})
}

func TestRegistry_Apply(t *testing.T) {
	r := newTestRegistry(t)
	w := world.NewMemory()

	t.Run("ExactMutation", func(t *testing.T) {
		target := w.Spawn()
		other := w.Spawn()

		acc := world.NewAccess(w)
		err := r.Apply(acc, target, Fragment{Type: "Stat", Fields: map[string]any{"hp": 10}})
		acc.Release()
		require.NoError(t, err)

		c, err := w.Component(target, "stat")
		require.NoError(t, err)
		assert.Equal(t, 10, c.(statComponent).HP)

		// Nothing else was touched.
		_, err = w.Component(other, "stat")
		assert.ErrorIs(t, err, world.ErrComponentNotFound)
		_, err = w.Component(target, "tag")
		assert.ErrorIs(t, err, world.ErrComponentNotFound)
	})

	t.Run("UnknownType", func(t *testing.T) {
		target := w.Spawn()
		acc := world.NewAccess(w)
		defer acc.Release()
		err := r.Apply(acc, target, Fragment{Type: "Bogus"})
		require.ErrorIs(t, err, ErrUnknownSchematic)
	})

	t.Run("MalformedFragment", func(t *testing.T) {
		target := w.Spawn()
		acc := world.NewAccess(w)
		defer acc.Release()
		err := r.Apply(acc, target, Fragment{Type: "Stat", Fields: map[string]any{"hp": "lots"}})
		require.ErrorIs(t, err, ErrMalformedFragment)
	})

	t.Run("WorldMutationRejected", func(t *testing.T) {
		acc := world.NewAccess(w)
		defer acc.Release()
		err := r.Apply(acc, world.EntityID(9999), Fragment{Type: "Tag"})
		require.ErrorIs(t, err, ErrWorldMutation)
	})
}

func TestResourceType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Gravity", ResourceType("gravity", func(f Fragment) (any, error) {
		return FieldFloat(f, "value")
	})))

	w := world.NewMemory()
	acc := world.NewAccess(w)
	defer acc.Release()

	err := r.Apply(acc, 0, Fragment{Type: "Gravity", Fields: map[string]any{"value": 9.8}})
	require.NoError(t, err)

	v, ok := w.Resource("gravity")
	require.True(t, ok)
	assert.Equal(t, 9.8, v)
}

func TestFieldAccessors(t *testing.T) {
	f := Fragment{Type: "X", Fields: map[string]any{
		"count":  int64(3),
		"whole":  float64(7),
		"frac":   2.5,
		"name":   "grunt",
		"active": true,
	}}

	t.Run("Int", func(t *testing.T) {
		n, err := FieldInt(f, "count")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = FieldInt(f, "whole")
		require.NoError(t, err)
		assert.Equal(t, 7, n)

		_, err = FieldInt(f, "frac")
		assert.Error(t, err, "fractional values are not integers")
		_, err = FieldInt(f, "name")
		assert.Error(t, err)
		_, err = FieldInt(f, "absent")
		assert.Error(t, err)
	})

	t.Run("IntOr", func(t *testing.T) {
		n, err := FieldIntOr(f, "absent", 42)
		require.NoError(t, err)
		assert.Equal(t, 42, n)

		n, err = FieldIntOr(f, "count", 42)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Float", func(t *testing.T) {
		v, err := FieldFloat(f, "frac")
		require.NoError(t, err)
		assert.Equal(t, 2.5, v)

		v, err = FieldFloat(f, "count")
		require.NoError(t, err)
		assert.Equal(t, 3.0, v)
	})

	t.Run("String", func(t *testing.T) {
		s, err := FieldString(f, "name")
		require.NoError(t, err)
		assert.Equal(t, "grunt", s)

		s, err = FieldStringOr(f, "absent", "dflt")
		require.NoError(t, err)
		assert.Equal(t, "dflt", s)
	})

	t.Run("Bool", func(t *testing.T) {
		b, err := FieldBool(f, "active")
		require.NoError(t, err)
		assert.True(t, b)

		_, err = FieldBool(f, "name")
		assert.Error(t, err)
	})

	t.Run("NilFields", func(t *testing.T) {
		empty := Fragment{Type: "Y"}
		_, err := FieldInt(empty, "anything")
		assert.Error(t, err)
		n, err := FieldIntOr(empty, "anything", 5)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})
}
