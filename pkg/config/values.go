package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Number is an unsigned integer written as a decimal number or a string
// such as "0x20000000".
type Number uint64

// parseNumber reads 0x, 0b and 0o prefixed values in their base and
// everything else as decimal, so "010" is ten.
func parseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'b', 'B', 'o', 'O':
			base = 0
		}
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return Number(v), nil
}

func numberFrom(v any) (Number, error) {
	switch x := v.(type) {
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative number %d", x)
		}
		return Number(x), nil
	case string:
		return parseNumber(x)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected number", node.Line)
	}
	v, err := parseNumber(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*n = v
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (n *Number) UnmarshalTOML(data any) error {
	v, err := numberFrom(data)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func (n Number) uint8(field string) (uint8, error) {
	if n > 0xFF {
		return 0, fmt.Errorf("%s: 0x%x does not fit in 8 bits", field, uint64(n))
	}
	return uint8(n), nil
}

func (n Number) uint32(field string) (uint32, error) {
	if n > 0xFFFFFFFF {
		return 0, fmt.Errorf("%s: 0x%x does not fit in 32 bits", field, uint64(n))
	}
	return uint32(n), nil
}

// Path is a SpaceWire path address: a list of numbers, or one string of
// space or comma separated numbers.
type Path []byte

func parsePathString(s string) (Path, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	p := make(Path, 0, len(fields))
	for _, f := range fields {
		v, err := parseNumber(f)
		if err != nil {
			return nil, err
		}
		if v > 0xFF {
			return nil, fmt.Errorf("path byte %s out of range", f)
		}
		p = append(p, byte(v))
	}
	return p, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Path) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := parsePathString(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*p = v
		return nil
	case yaml.SequenceNode:
		var nums []Number
		if err := node.Decode(&nums); err != nil {
			return err
		}
		out := make(Path, len(nums))
		for i, n := range nums {
			b, err := n.uint8("path byte")
			if err != nil {
				return fmt.Errorf("line %d: %w", node.Line, err)
			}
			out[i] = b
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("line %d: expected path list or string", node.Line)
	}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (p *Path) UnmarshalTOML(data any) error {
	switch x := data.(type) {
	case string:
		v, err := parsePathString(x)
		if err != nil {
			return err
		}
		*p = v
		return nil
	case []any:
		out := make(Path, len(x))
		for i, item := range x {
			n, err := numberFrom(item)
			if err != nil {
				return err
			}
			b, err := n.uint8("path byte")
			if err != nil {
				return err
			}
			out[i] = b
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("expected path list or string, got %T", data)
	}
}

// Duration is a time.Duration written as "500ms", "2s" and so on.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by both decoders.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %s", v)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
