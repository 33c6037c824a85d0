package simtarget

import (
	"fmt"
	"sort"

	"github.com/rmap-protocol/rmap-go/pkg/registry"
)

// region is the backing store of one memory object.
type region struct {
	object registry.MemoryObject
	key    uint8
	data   []byte
}

func (r *region) end() uint64 {
	return uint64(r.object.Address) + uint64(len(r.data))
}

// offset returns the index of addr in data.
func (r *region) offset(addr uint32) int {
	return int(addr - r.object.Address)
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.object.Address && uint64(addr) < r.end()
}

// memoryMap holds regions sorted by extended and base address.
type memoryMap struct {
	regions []*region
}

func newMemoryMap(node registry.TargetNode) (*memoryMap, error) {
	m := &memoryMap{}
	for _, obj := range node.MemoryObjects {
		m.regions = append(m.regions, &region{
			object: obj,
			key:    obj.KeyOr(node.DefaultKey),
			data:   make([]byte, obj.Size),
		})
	}
	sort.Slice(m.regions, func(i, j int) bool {
		a, b := m.regions[i].object, m.regions[j].object
		if a.ExtendedAddress != b.ExtendedAddress {
			return a.ExtendedAddress < b.ExtendedAddress
		}
		return a.Address < b.Address
	})
	for i := 1; i < len(m.regions); i++ {
		prev, cur := m.regions[i-1], m.regions[i]
		if prev.object.ExtendedAddress == cur.object.ExtendedAddress && uint64(cur.object.Address) < prev.end() {
			return nil, fmt.Errorf("%w: memory objects %q and %q overlap", ErrOverlap, prev.object.ID, cur.object.ID)
		}
	}
	return m, nil
}

// find returns the region holding (ext, addr), or nil.
func (m *memoryMap) find(ext uint8, addr uint32) *region {
	i := sort.Search(len(m.regions), func(i int) bool {
		o := m.regions[i].object
		if o.ExtendedAddress != ext {
			return o.ExtendedAddress > ext
		}
		return uint64(o.Address)+uint64(o.Size) > uint64(addr)
	})
	if i < len(m.regions) && m.regions[i].object.ExtendedAddress == ext && m.regions[i].contains(addr) {
		return m.regions[i]
	}
	return nil
}

func (m *memoryMap) byID(id string) *region {
	for _, r := range m.regions {
		if r.object.ID == id {
			return r
		}
	}
	return nil
}
