package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// Format identifies a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatXML  Format = "xml"
)

// Defaults applied to fields left empty.
const (
	DefaultTimeout        = time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultAddress        = "localhost:10030"
)

// File is the parsed content of a configuration file.
type File struct {
	Initiator InitiatorConfig `yaml:"initiator" toml:"initiator"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Targets   []TargetConfig  `yaml:"targets" toml:"targets"`

	registry *registry.Registry
}

// InitiatorConfig configures the initiator side.
type InitiatorConfig struct {
	// LogicalAddress of the initiator (default 0xFE).
	LogicalAddress *Number `yaml:"logical_address" toml:"logical_address"`

	// Timeout applied when a call does not specify one.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// Retries is the number of extra attempts after a timeout.
	Retries int `yaml:"retries" toml:"retries"`

	// TimeCodeInterval enables periodic time codes when non-zero.
	TimeCodeInterval Duration `yaml:"time_code_interval" toml:"time_code_interval"`
}

// TransportConfig configures the SpaceWire-to-TCP link.
type TransportConfig struct {
	Address        string   `yaml:"address" toml:"address"`
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	MaxPacketSize  Number   `yaml:"max_packet_size" toml:"max_packet_size"`
}

// TargetConfig describes one target node.
type TargetConfig struct {
	ID                      string         `yaml:"id" toml:"id"`
	LogicalAddress          *Number        `yaml:"logical_address" toml:"logical_address"`
	TargetPath              Path           `yaml:"target_path" toml:"target_path"`
	ReplyPath               Path           `yaml:"reply_path" toml:"reply_path"`
	Key                     *Number        `yaml:"key" toml:"key"`
	InitiatorLogicalAddress *Number        `yaml:"initiator_logical_address" toml:"initiator_logical_address"`
	Memory                  []MemoryConfig `yaml:"memory" toml:"memory"`
}

// MemoryConfig describes one memory object of a target node.
type MemoryConfig struct {
	ID              string              `yaml:"id" toml:"id"`
	Address         Number              `yaml:"address" toml:"address"`
	Size            Number              `yaml:"size" toml:"size"`
	Access          registry.AccessMode `yaml:"access" toml:"access"`
	ExtendedAddress Number              `yaml:"extended_address" toml:"extended_address"`
	Key             *Number             `yaml:"key" toml:"key"`
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".xml":
		return FormatXML, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "unknown format", Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := Parse(data, format)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return f, nil
}

// Parse decodes and validates configuration data.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, &LoadError{Message: "failed to parse TOML", Cause: err}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &LoadError{Message: fmt.Sprintf("unknown key %q", undecoded[0].String())}
		}
	case FormatXML:
		if err := decodeXML(data, &f); err != nil {
			return nil, err
		}
	default:
		return nil, &LoadError{Message: fmt.Sprintf("unsupported format %q", format)}
	}

	f.applyDefaults()
	reg, err := f.buildRegistry()
	if err != nil {
		return nil, &LoadError{Message: "invalid target configuration", Cause: err}
	}
	f.registry = reg
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Initiator.Timeout == 0 {
		f.Initiator.Timeout = Duration(DefaultTimeout)
	}
	if f.Transport.Address == "" {
		f.Transport.Address = DefaultAddress
	}
	if f.Transport.ConnectTimeout == 0 {
		f.Transport.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
}

func (f *File) buildRegistry() (*registry.Registry, error) {
	if f.Initiator.Retries < 0 {
		return nil, fmt.Errorf("initiator: negative retries %d", f.Initiator.Retries)
	}
	if _, err := f.initiatorAddress(); err != nil {
		return nil, err
	}

	nodes := make([]registry.TargetNode, 0, len(f.Targets))
	for i, t := range f.Targets {
		node, err := t.node()
		if err != nil {
			return nil, fmt.Errorf("targets[%d] (%s): %w", i, t.ID, err)
		}
		nodes = append(nodes, node)
	}
	return registry.New(nodes...)
}

func (f *File) initiatorAddress() (uint8, error) {
	if f.Initiator.LogicalAddress == nil {
		return wire.DefaultLogicalAddress, nil
	}
	return f.Initiator.LogicalAddress.uint8("initiator logical_address")
}

func (t TargetConfig) node() (registry.TargetNode, error) {
	node := registry.TargetNode{
		ID:             t.ID,
		LogicalAddress: wire.DefaultLogicalAddress,
		TargetPath:     []byte(t.TargetPath),
		ReplyPath:      []byte(t.ReplyPath),
		DefaultKey:     wire.DefaultKey,
	}
	var err error
	if t.LogicalAddress != nil {
		if node.LogicalAddress, err = t.LogicalAddress.uint8("logical_address"); err != nil {
			return node, err
		}
	}
	if t.Key != nil {
		if node.DefaultKey, err = t.Key.uint8("key"); err != nil {
			return node, err
		}
	}
	if t.InitiatorLogicalAddress != nil {
		la, err := t.InitiatorLogicalAddress.uint8("initiator_logical_address")
		if err != nil {
			return node, err
		}
		node.InitiatorLogicalAddress = &la
	}
	for _, m := range t.Memory {
		mem, err := m.object()
		if err != nil {
			return node, fmt.Errorf("memory %s: %w", m.ID, err)
		}
		node.MemoryObjects = append(node.MemoryObjects, mem)
	}
	return node, nil
}

func (m MemoryConfig) object() (registry.MemoryObject, error) {
	obj := registry.MemoryObject{ID: m.ID, Access: m.Access}
	var err error
	if obj.Address, err = m.Address.uint32("address"); err != nil {
		return obj, err
	}
	if obj.Size, err = m.Size.uint32("size"); err != nil {
		return obj, err
	}
	if obj.ExtendedAddress, err = m.ExtendedAddress.uint8("extended_address"); err != nil {
		return obj, err
	}
	if m.Key != nil {
		k, err := m.Key.uint8("key")
		if err != nil {
			return obj, err
		}
		obj.Key = &k
	}
	return obj, nil
}

// Registry returns the target registry described by the file.
func (f *File) Registry() *registry.Registry {
	return f.registry
}

// InitiatorLogicalAddress returns the configured initiator address.
func (f *File) InitiatorLogicalAddress() uint8 {
	// Validated in Parse.
	la, _ := f.initiatorAddress()
	return la
}

// Timeout returns the default call timeout.
func (f *File) Timeout() time.Duration {
	return time.Duration(f.Initiator.Timeout)
}
