// Package registry holds the RMAP target nodes and memory objects an
// initiator can address by name.
//
// A Registry is built once from configuration (see package config) and
// never changes afterwards. Lookups return copies, so a Registry can be
// shared by any number of goroutines without locking.
//
// # Example
//
//	reg, err := registry.New(registry.TargetNode{
//		ID:             "SampleRMAPTargetNode",
//		LogicalAddress: 0xFE,
//		DefaultKey:     0x20,
//		MemoryObjects: []registry.MemoryObject{
//			{ID: "SampleRegister", Address: 0x20000000, Size: 4},
//		},
//	})
//	mem, err := reg.MemoryObject("SampleRMAPTargetNode", "SampleRegister")
package registry
