package prototype

import "github.com/simforge/simforge/internal/core/schematic"

// Descriptor is one named prototype: an ordered list of schematic fragments
// describing how to assemble one entity kind. Descriptors are immutable
// once published; a hot-reload builds a fresh Descriptor and swaps it in
// wholesale, so holders of a *Descriptor always see a consistent snapshot.
type Descriptor struct {
	Name      string
	Fragments []schematic.Fragment
}
