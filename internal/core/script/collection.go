package script

import (
	"fmt"

	"github.com/simforge/simforge/internal/core/schematic"
	"github.com/simforge/simforge/internal/core/world"
)

// CollectionKind is the component kind the host's discovery pass scans for.
const CollectionKind world.ComponentKind = "scripts"

// Entry names one script and its asset reference.
type Entry struct {
	Name string
	Ref  string
}

// Collection declares the scripts an entity carries. Attach it to an entity
// (directly or through a schematic fragment) and the host discovers it on
// its next sync, owning the resulting contexts by that entity.
type Collection struct {
	Entries []Entry
}

func (Collection) Kind() world.ComponentKind { return CollectionKind }

// DecodeCollection parses a schematic fragment of the shape
//
//	type: scripts
//	fields:
//	  entries:
//	    - name: player-brain
//	      ref: scripts/player.lua
//
// so prototypes can declare script-bearing entities.
func DecodeCollection(f schematic.Fragment) (Collection, error) {
	raw, ok := f.Fields["entries"]
	if !ok {
		return Collection{}, fmt.Errorf("field %q missing", "entries")
	}
	list, ok := raw.([]any)
	if !ok {
		return Collection{}, fmt.Errorf("field %q: expected list, got %T", "entries", raw)
	}
	col := Collection{Entries: make([]Entry, 0, len(list))}
	for i, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			return Collection{}, fmt.Errorf("entry %d: expected mapping, got %T", i, item)
		}
		name, _ := fields["name"].(string)
		ref, _ := fields["ref"].(string)
		if name == "" || ref == "" {
			return Collection{}, fmt.Errorf("entry %d: name and ref are required", i)
		}
		col.Entries = append(col.Entries, Entry{Name: name, Ref: ref})
	}
	if len(col.Entries) == 0 {
		return Collection{}, fmt.Errorf("field %q: empty list", "entries")
	}
	return col, nil
}
