package prototype

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/simforge/simforge/internal/core/schematic"
)

// Descriptor source files are YAML:
//
//	name: Grunt
//	schematics:
//	  - type: Tag
//	  - type: Stat
//	    fields:
//	      hp: 10
//
// Fragment order in the file is application order at spawn.

type descriptorFile struct {
	Name       string         `yaml:"name"`
	Schematics []fragmentNode `yaml:"schematics"`
}

type fragmentNode struct {
	Type   string         `yaml:"type"`
	Fields map[string]any `yaml:"fields"`
}

// Parse decodes descriptor source bytes. Errors wrap ErrDescriptorParse and
// carry a human-readable reason; whether each fragment's type is actually
// registered is checked at apply time, not here.
func Parse(data []byte) (*Descriptor, error) {
	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptorParse, err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("%w: descriptor has no name", ErrDescriptorParse)
	}
	if len(file.Schematics) == 0 {
		return nil, fmt.Errorf("%w: descriptor %q lists no schematics", ErrDescriptorParse, file.Name)
	}

	frags := make([]schematic.Fragment, len(file.Schematics))
	for i, node := range file.Schematics {
		if node.Type == "" {
			return nil, fmt.Errorf("%w: descriptor %q: schematic %d has no type", ErrDescriptorParse, file.Name, i)
		}
		frags[i] = schematic.Fragment{
			Type:   schematic.TypeID(node.Type),
			Fields: node.Fields,
		}
	}
	return &Descriptor{
		Name:      file.Name,
		Fragments: frags,
	}, nil
}
