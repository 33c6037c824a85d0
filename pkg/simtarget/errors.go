package simtarget

import "errors"

// Target errors.
var (
	// ErrOverlap indicates two memory objects share addresses.
	ErrOverlap = errors.New("overlapping memory objects")

	// ErrUnmapped indicates an access outside every memory region.
	ErrUnmapped = errors.New("address not mapped")

	// ErrImageMismatch indicates a memory image that does not fit the node.
	ErrImageMismatch = errors.New("memory image does not match target")
)
