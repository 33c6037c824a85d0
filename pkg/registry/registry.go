package registry

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// TargetNode describes a remote RMAP target.
type TargetNode struct {
	// ID is the unique name of the node.
	ID string

	// LogicalAddress is the target logical address (0x20-0xFF).
	LogicalAddress uint8

	// TargetPath is the path address prepended to commands (bytes < 0x20).
	TargetPath []byte

	// ReplyPath is the path address the target uses for replies.
	ReplyPath []byte

	// DefaultKey is the access key used unless a memory object overrides it.
	DefaultKey uint8

	// InitiatorLogicalAddress overrides the initiator's own logical
	// address for this node. Nil uses the initiator default.
	InitiatorLogicalAddress *uint8

	// MemoryObjects lists the addressable regions of the node.
	MemoryObjects []MemoryObject
}

// InitiatorAddress returns the override, or def when none is set.
func (t TargetNode) InitiatorAddress(def uint8) uint8 {
	if t.InitiatorLogicalAddress != nil {
		return *t.InitiatorLogicalAddress
	}
	return def
}

// MemoryObject describes a region of target memory.
type MemoryObject struct {
	// ID is unique within the owning node.
	ID string

	// Address is the 32-bit base address.
	Address uint32

	// Size is the length of the region in bytes.
	Size uint32

	// Access restricts reads and writes.
	Access AccessMode

	// ExtendedAddress is the upper address byte.
	ExtendedAddress uint8

	// Key overrides the node's default key. Nil uses the default.
	Key *uint8
}

// KeyOr returns the key override, or def when none is set.
func (m MemoryObject) KeyOr(def uint8) uint8 {
	if m.Key != nil {
		return *m.Key
	}
	return def
}

// Contains reports whether [addr, addr+length) lies inside the region.
func (m MemoryObject) Contains(addr uint32, length uint32) bool {
	start := uint64(m.Address)
	end := start + uint64(m.Size)
	return uint64(addr) >= start && uint64(addr)+uint64(length) <= end
}

type entry struct {
	node   TargetNode
	memory map[string]MemoryObject
}

// Registry is an immutable index of target nodes and their memory objects.
type Registry struct {
	targets map[string]*entry
	ids     []string
}

// New validates the nodes and builds a registry from them. The input
// slices are copied; later changes by the caller do not affect the registry.
func New(nodes ...TargetNode) (*Registry, error) {
	r := &Registry{targets: make(map[string]*entry, len(nodes))}
	for _, n := range nodes {
		if err := validateNode(n); err != nil {
			return nil, err
		}
		if _, dup := r.targets[n.ID]; dup {
			return nil, fmt.Errorf("%w: target node %q", ErrDuplicateID, n.ID)
		}
		e := &entry{node: cloneNode(n), memory: make(map[string]MemoryObject, len(n.MemoryObjects))}
		for _, m := range n.MemoryObjects {
			if err := validateMemory(n.ID, m); err != nil {
				return nil, err
			}
			if _, dup := e.memory[m.ID]; dup {
				return nil, fmt.Errorf("%w: memory object %q in target node %q", ErrDuplicateID, m.ID, n.ID)
			}
			e.memory[m.ID] = cloneMemory(m)
		}
		r.targets[n.ID] = e
		r.ids = append(r.ids, n.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

func validateNode(n TargetNode) error {
	if n.ID == "" {
		return fmt.Errorf("%w: target node without ID", ErrInvalid)
	}
	if n.LogicalAddress < wire.MinLogicalAddress {
		return fmt.Errorf("%w: target node %q: logical address 0x%02x below 0x%02x",
			ErrInvalid, n.ID, n.LogicalAddress, wire.MinLogicalAddress)
	}
	if n.InitiatorLogicalAddress != nil && *n.InitiatorLogicalAddress < wire.MinLogicalAddress {
		return fmt.Errorf("%w: target node %q: initiator logical address 0x%02x below 0x%02x",
			ErrInvalid, n.ID, *n.InitiatorLogicalAddress, wire.MinLogicalAddress)
	}
	if err := validatePath(n.TargetPath, wire.MaxTargetPathLength); err != nil {
		return fmt.Errorf("%w: target node %q: target path: %v", ErrInvalid, n.ID, err)
	}
	if err := validatePath(n.ReplyPath, wire.MaxReplyPathLength); err != nil {
		return fmt.Errorf("%w: target node %q: reply path: %v", ErrInvalid, n.ID, err)
	}
	if len(n.ReplyPath) > 0 && n.ReplyPath[0] == 0 {
		return fmt.Errorf("%w: target node %q: reply path must not start with 0x00", ErrInvalid, n.ID)
	}
	return nil
}

func validatePath(path []byte, max int) error {
	if len(path) > max {
		return fmt.Errorf("%d bytes, at most %d allowed", len(path), max)
	}
	for i, b := range path {
		if b >= wire.MinLogicalAddress {
			return fmt.Errorf("byte 0x%02x at index %d is not a path address", b, i)
		}
	}
	return nil
}

func validateMemory(target string, m MemoryObject) error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: target node %q: memory object without ID", ErrInvalid, target)
	case m.Size == 0:
		return fmt.Errorf("%w: memory object %q in target node %q: zero size", ErrInvalid, m.ID, target)
	case m.Size > wire.MaxDataLength:
		return fmt.Errorf("%w: memory object %q in target node %q: size %d exceeds %d",
			ErrInvalid, m.ID, target, m.Size, wire.MaxDataLength)
	case uint64(m.Address)+uint64(m.Size) > 1<<32:
		return fmt.Errorf("%w: memory object %q in target node %q: region wraps the address space",
			ErrInvalid, m.ID, target)
	case m.Access > AccessWriteOnly:
		return fmt.Errorf("%w: memory object %q in target node %q: %v", ErrInvalid, m.ID, target, m.Access)
	}
	return nil
}

func cloneNode(n TargetNode) TargetNode {
	n.TargetPath = bytes.Clone(n.TargetPath)
	n.ReplyPath = bytes.Clone(n.ReplyPath)
	if n.InitiatorLogicalAddress != nil {
		la := *n.InitiatorLogicalAddress
		n.InitiatorLogicalAddress = &la
	}
	mems := make([]MemoryObject, len(n.MemoryObjects))
	for i, m := range n.MemoryObjects {
		mems[i] = cloneMemory(m)
	}
	n.MemoryObjects = mems
	return n
}

func cloneMemory(m MemoryObject) MemoryObject {
	if m.Key != nil {
		k := *m.Key
		m.Key = &k
	}
	return m
}

// Target returns the node with the given ID.
func (r *Registry) Target(id string) (TargetNode, error) {
	e, ok := r.targets[id]
	if !ok {
		return TargetNode{}, &NotFoundError{Target: id}
	}
	return cloneNode(e.node), nil
}

// MemoryObject returns the named memory object of a node.
func (r *Registry) MemoryObject(targetID, memoryID string) (MemoryObject, error) {
	e, ok := r.targets[targetID]
	if !ok {
		return MemoryObject{}, &NotFoundError{Target: targetID}
	}
	m, ok := e.memory[memoryID]
	if !ok {
		return MemoryObject{}, &NotFoundError{Target: targetID, Memory: memoryID}
	}
	return cloneMemory(m), nil
}

// Targets returns all nodes sorted by ID.
func (r *Registry) Targets() []TargetNode {
	nodes := make([]TargetNode, 0, len(r.ids))
	for _, id := range r.ids {
		nodes = append(nodes, cloneNode(r.targets[id].node))
	}
	return nodes
}

// Len returns the number of target nodes.
func (r *Registry) Len() int {
	return len(r.ids)
}
