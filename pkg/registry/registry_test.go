package registry

import (
	"errors"
	"testing"
)

func u8(v uint8) *uint8 { return &v }

func sampleNode() TargetNode {
	return TargetNode{
		ID:             "SampleRMAPTargetNode",
		LogicalAddress: 0xFE,
		TargetPath:     []byte{0x03, 0x05},
		ReplyPath:      []byte{0x07},
		DefaultKey:     0x20,
		MemoryObjects: []MemoryObject{
			{ID: "SampleRegister", Address: 0x20000000, Size: 4},
			{ID: "Status", Address: 0x20000004, Size: 4, Access: AccessReadOnly},
			{ID: "Trigger", Address: 0x20000008, Size: 4, Access: AccessWriteOnly, Key: u8(0x30)},
		},
	}
}

func TestLookup(t *testing.T) {
	reg, err := New(sampleNode())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	node, err := reg.Target("SampleRMAPTargetNode")
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if node.LogicalAddress != 0xFE || node.DefaultKey != 0x20 {
		t.Errorf("unexpected node %+v", node)
	}

	mem, err := reg.MemoryObject("SampleRMAPTargetNode", "SampleRegister")
	if err != nil {
		t.Fatalf("MemoryObject: %v", err)
	}
	if mem.Address != 0x20000000 || mem.Size != 4 || mem.Access != AccessReadWrite {
		t.Errorf("unexpected memory object %+v", mem)
	}
	if got := mem.KeyOr(node.DefaultKey); got != 0x20 {
		t.Errorf("KeyOr = 0x%02x, want 0x20", got)
	}

	trigger, _ := reg.MemoryObject("SampleRMAPTargetNode", "Trigger")
	if got := trigger.KeyOr(node.DefaultKey); got != 0x30 {
		t.Errorf("KeyOr override = 0x%02x, want 0x30", got)
	}
}

func TestLookupNotFound(t *testing.T) {
	reg, err := New(sampleNode())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name   string
		target string
		memory string
		want   NotFoundError
	}{
		{"unknown target", "Other", "", NotFoundError{Target: "Other"}},
		{"unknown memory", "SampleRMAPTargetNode", "Nope", NotFoundError{Target: "SampleRMAPTargetNode", Memory: "Nope"}},
		{"memory of unknown target", "Other", "SampleRegister", NotFoundError{Target: "Other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.memory == "" {
				_, err = reg.Target(tt.target)
			} else {
				_, err = reg.MemoryObject(tt.target, tt.memory)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) || *nf != tt.want {
				t.Errorf("NotFoundError = %+v, want %+v", nf, tt.want)
			}
		})
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	n := sampleNode()
	reg, err := New(n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n.TargetPath[0] = 0x1f
	n.MemoryObjects[0].Size = 99
	*n.MemoryObjects[2].Key = 0x99

	got, _ := reg.Target(n.ID)
	if got.TargetPath[0] != 0x03 {
		t.Error("registry shares target path with caller")
	}
	got.ReplyPath[0] = 0x1e
	again, _ := reg.Target(n.ID)
	if again.ReplyPath[0] != 0x07 {
		t.Error("lookup result shares reply path with registry")
	}

	mem, _ := reg.MemoryObject(n.ID, "SampleRegister")
	if mem.Size != 4 {
		t.Error("registry shares memory objects with caller")
	}
	trig, _ := reg.MemoryObject(n.ID, "Trigger")
	if *trig.Key != 0x30 {
		t.Error("registry shares key override with caller")
	}
}

func TestTargetsSorted(t *testing.T) {
	reg, err := New(
		TargetNode{ID: "b", LogicalAddress: 0x30},
		TargetNode{ID: "a", LogicalAddress: 0x31},
		TargetNode{ID: "c", LogicalAddress: 0x32},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nodes := reg.Targets()
	if len(nodes) != 3 || reg.Len() != 3 {
		t.Fatalf("got %d nodes", len(nodes))
	}
	for i, id := range []string{"a", "b", "c"} {
		if nodes[i].ID != id {
			t.Errorf("nodes[%d] = %q, want %q", i, nodes[i].ID, id)
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []TargetNode
		wantErr error
	}{
		{"empty ID", []TargetNode{{LogicalAddress: 0xFE}}, ErrInvalid},
		{"low logical address", []TargetNode{{ID: "x", LogicalAddress: 0x1F}}, ErrInvalid},
		{"low initiator address", []TargetNode{{ID: "x", LogicalAddress: 0xFE, InitiatorLogicalAddress: u8(0x10)}}, ErrInvalid},
		{"path byte too large", []TargetNode{{ID: "x", LogicalAddress: 0xFE, TargetPath: []byte{0x01, 0x20}}}, ErrInvalid},
		{"reply path too long", []TargetNode{{ID: "x", LogicalAddress: 0xFE, ReplyPath: make([]byte, 13)}}, ErrInvalid},
		{"reply path leading zero", []TargetNode{{ID: "x", LogicalAddress: 0xFE, ReplyPath: []byte{0, 1}}}, ErrInvalid},
		{"duplicate target", []TargetNode{{ID: "x", LogicalAddress: 0xFE}, {ID: "x", LogicalAddress: 0xFD}}, ErrDuplicateID},
		{"memory without ID", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{Size: 1}}}}, ErrInvalid},
		{"zero size", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{ID: "m"}}}}, ErrInvalid},
		{"oversize", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{ID: "m", Size: 1 << 24}}}}, ErrInvalid},
		{"wraps", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{ID: "m", Address: 0xFFFFFFFE, Size: 4}}}}, ErrInvalid},
		{"bad access", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{ID: "m", Size: 1, Access: 7}}}}, ErrInvalid},
		{"duplicate memory", []TargetNode{{ID: "x", LogicalAddress: 0xFE, MemoryObjects: []MemoryObject{{ID: "m", Size: 1}, {ID: "m", Size: 2}}}}, ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nodes...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryObjectContains(t *testing.T) {
	m := MemoryObject{Address: 0x1000, Size: 0x10}
	tests := []struct {
		addr, length uint32
		want         bool
	}{
		{0x1000, 0x10, true},
		{0x1008, 0x08, true},
		{0x1008, 0x09, false},
		{0x0fff, 1, false},
		{0x1010, 0, true},
		{0xFFFFFFFF, 2, false},
	}
	for _, tt := range tests {
		if got := m.Contains(tt.addr, tt.length); got != tt.want {
			t.Errorf("Contains(0x%x, %d) = %v, want %v", tt.addr, tt.length, got, tt.want)
		}
	}
}

func TestInitiatorAddress(t *testing.T) {
	n := TargetNode{}
	if n.InitiatorAddress(0xFE) != 0xFE {
		t.Error("default not used")
	}
	n.InitiatorLogicalAddress = u8(0x40)
	if n.InitiatorAddress(0xFE) != 0x40 {
		t.Error("override not used")
	}
}

func TestAccessMode(t *testing.T) {
	tests := []struct {
		in              string
		want            AccessMode
		canRead, canWrt bool
	}{
		{"", AccessReadWrite, true, true},
		{"RW", AccessReadWrite, true, true},
		{"read-only", AccessReadOnly, true, false},
		{"Readable", AccessReadOnly, true, false},
		{"wo", AccessWriteOnly, false, true},
	}
	for _, tt := range tests {
		got, err := ParseAccessMode(tt.in)
		if err != nil {
			t.Fatalf("ParseAccessMode(%q): %v", tt.in, err)
		}
		if got != tt.want || got.CanRead() != tt.canRead || got.CanWrite() != tt.canWrt {
			t.Errorf("ParseAccessMode(%q) = %v", tt.in, got)
		}
	}
	if _, err := ParseAccessMode("execute"); err == nil {
		t.Error("expected error for unknown mode")
	}

	var m AccessMode
	if err := m.UnmarshalText([]byte("write-only")); err != nil || m != AccessWriteOnly {
		t.Errorf("UnmarshalText = %v, %v", m, err)
	}
	if b, _ := AccessReadOnly.MarshalText(); string(b) != "read-only" {
		t.Errorf("MarshalText = %q", b)
	}
}
