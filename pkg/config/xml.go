package config

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/rmap-protocol/rmap-go/pkg/registry"
)

// xmlDocument holds the RMAPTargetNode elements found under the root
// element of an XML node file. The root element name is not checked.
//
//	<Configuration>
//	  <RMAPTargetNode id="SampleRMAPTargetNode">
//	    <TargetLogicalAddress>0xFE</TargetLogicalAddress>
//	    <TargetSpaceWireAddress>0x03 0x05</TargetSpaceWireAddress>
//	    <ReplyAddress>0x07</ReplyAddress>
//	    <Key>0x20</Key>
//	    <RMAPMemoryObject id="SampleRegister">
//	      <ExtendedAddress>0x00</ExtendedAddress>
//	      <MemoryAddress>0x20000000</MemoryAddress>
//	      <Length>4</Length>
//	      <AccessMode>rw</AccessMode>
//	    </RMAPMemoryObject>
//	  </RMAPTargetNode>
//	</Configuration>
type xmlDocument struct {
	Targets []xmlTargetNode   `xml:"RMAPTargetNode"`
	Orphans []xmlMemoryObject `xml:"RMAPMemoryObject"`
}

type xmlTargetNode struct {
	ID                      string            `xml:"id,attr"`
	LogicalAddress          *string           `xml:"TargetLogicalAddress"`
	TargetPath              *string           `xml:"TargetSpaceWireAddress"`
	ReplyPath               *string           `xml:"ReplyAddress"`
	Key                     *string           `xml:"Key"`
	InitiatorLogicalAddress *string           `xml:"InitiatorLogicalAddress"`
	Memory                  []xmlMemoryObject `xml:"RMAPMemoryObject"`
}

type xmlMemoryObject struct {
	ID              string              `xml:"id,attr"`
	ExtendedAddress *string             `xml:"ExtendedAddress"`
	MemoryAddress   *string             `xml:"MemoryAddress"`
	Length          *string             `xml:"Length"`
	AccessMode      registry.AccessMode `xml:"AccessMode"`
	Key             *string             `xml:"Key"`
}

func decodeXML(data []byte, f *File) error {
	var doc xmlDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return &LoadError{Message: "failed to parse XML", Cause: err}
	}
	if len(doc.Orphans) > 0 {
		return &LoadError{Message: fmt.Sprintf("RMAPMemoryObject %q outside an RMAPTargetNode", doc.Orphans[0].ID)}
	}
	for i, n := range doc.Targets {
		t, err := n.target()
		if err != nil {
			return &LoadError{Message: fmt.Sprintf("RMAPTargetNode[%d] (%s)", i, n.ID), Cause: err}
		}
		f.Targets = append(f.Targets, t)
	}
	return nil
}

func xmlNumber(v *string, tag string) (*Number, error) {
	if v == nil {
		return nil, nil
	}
	n, err := parseNumber(*v)
	if err != nil {
		return nil, fmt.Errorf("<%s>: %w", tag, err)
	}
	return &n, nil
}

func xmlRequired(tags map[string]*string) error {
	for tag, v := range tags {
		if v == nil {
			return fmt.Errorf("missing <%s>", tag)
		}
	}
	return nil
}

func (n xmlTargetNode) target() (TargetConfig, error) {
	t := TargetConfig{ID: n.ID}
	if err := xmlRequired(map[string]*string{
		"TargetLogicalAddress":   n.LogicalAddress,
		"TargetSpaceWireAddress": n.TargetPath,
		"ReplyAddress":           n.ReplyPath,
		"Key":                    n.Key,
	}); err != nil {
		return t, err
	}

	var err error
	if t.LogicalAddress, err = xmlNumber(n.LogicalAddress, "TargetLogicalAddress"); err != nil {
		return t, err
	}
	if t.TargetPath, err = parsePathString(*n.TargetPath); err != nil {
		return t, fmt.Errorf("<TargetSpaceWireAddress>: %w", err)
	}
	if t.ReplyPath, err = parsePathString(*n.ReplyPath); err != nil {
		return t, fmt.Errorf("<ReplyAddress>: %w", err)
	}
	if t.Key, err = xmlNumber(n.Key, "Key"); err != nil {
		return t, err
	}
	if t.InitiatorLogicalAddress, err = xmlNumber(n.InitiatorLogicalAddress, "InitiatorLogicalAddress"); err != nil {
		return t, err
	}
	for _, m := range n.Memory {
		mem, err := m.memory()
		if err != nil {
			return t, fmt.Errorf("RMAPMemoryObject %s: %w", m.ID, err)
		}
		t.Memory = append(t.Memory, mem)
	}
	return t, nil
}

func (m xmlMemoryObject) memory() (MemoryConfig, error) {
	mem := MemoryConfig{ID: m.ID, Access: m.AccessMode}
	if err := xmlRequired(map[string]*string{
		"ExtendedAddress": m.ExtendedAddress,
		"MemoryAddress":   m.MemoryAddress,
		"Length":          m.Length,
	}); err != nil {
		return mem, err
	}

	ext, err := xmlNumber(m.ExtendedAddress, "ExtendedAddress")
	if err != nil {
		return mem, err
	}
	addr, err := xmlNumber(m.MemoryAddress, "MemoryAddress")
	if err != nil {
		return mem, err
	}
	length, err := xmlNumber(m.Length, "Length")
	if err != nil {
		return mem, err
	}
	mem.ExtendedAddress, mem.Address, mem.Size = *ext, *addr, *length
	if mem.Key, err = xmlNumber(m.Key, "Key"); err != nil {
		return mem, err
	}
	return mem, nil
}
