package wire

import (
	"bytes"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
		ok   bool
	}{
		{"0x0102", []byte{1, 2}, true},
		{"de:ad-be ef", []byte{0xde, 0xad, 0xbe, 0xef}, true},
		{" 0Xff\n", []byte{0xff}, true},
		{"", []byte{}, true},
		{"abc", nil, false},
		{"xyz0", nil, false},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParseHex(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && !bytes.Equal(got, tt.want) {
			t.Errorf("ParseHex(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}
