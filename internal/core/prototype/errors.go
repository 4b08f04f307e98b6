package prototype

import "errors"

var (
	ErrUnknownPrototype = errors.New("unknown prototype")
	ErrDescriptorParse  = errors.New("descriptor parse failed")
)
