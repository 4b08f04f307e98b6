package schematic

import "errors"

var (
	ErrDuplicateSchematic = errors.New("schematic type already registered")
	ErrUnknownSchematic   = errors.New("unknown schematic type")
	ErrMalformedFragment  = errors.New("malformed fragment")
	ErrWorldMutation      = errors.New("world mutation rejected")
)
