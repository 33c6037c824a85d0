package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode serializes an RMAP packet. The header CRC, data CRC and, for
// commands, the reply address length bits are written back into p.
func Encode(p Packet) ([]byte, error) {
	switch v := p.(type) {
	case *Command:
		return encodeCommand(v)
	case *Reply:
		return encodeReply(v)
	default:
		return nil, &EncodeError{Field: "packet", Err: fmt.Errorf("%w: unsupported packet type %T", ErrFieldRange, p)}
	}
}

func checkPath(field string, path []byte, max int) error {
	if len(path) > max {
		return encodeErr(field, ErrPathTooLong, "%d > %d", len(path), max)
	}
	for i, b := range path {
		if b >= MinLogicalAddress {
			return encodeErr(field, ErrInvalidPathByte, "0x%02x at index %d", b, i)
		}
	}
	return nil
}

func checkData(instr Instruction, length uint32, data []byte) error {
	if length > MaxDataLength {
		return encodeErr("data length", ErrFieldRange, "%d > %d", length, MaxDataLength)
	}
	if instr.HasData() {
		if uint32(len(data)) != length {
			return encodeErr("data", ErrDataLengthMismatch, "declared %d, got %d", length, len(data))
		}
		return nil
	}
	if len(data) != 0 {
		return encodeErr("data", ErrDataLengthMismatch, "%s packet carries no data", instr.Operation())
	}
	return nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func encodeCommand(c *Command) ([]byte, error) {
	if err := checkPath("target path", c.TargetPath, MaxTargetPathLength); err != nil {
		return nil, err
	}
	if err := checkPath("reply path", c.ReplyPath, MaxReplyPathLength); err != nil {
		return nil, err
	}
	if len(c.ReplyPath) > 0 && c.ReplyPath[0] == 0 {
		return nil, encodeErr("reply path", ErrInvalidPathByte, "leading zero is indistinguishable from padding")
	}
	if c.TargetLogicalAddress < MinLogicalAddress {
		return nil, encodeErr("target logical address", ErrFieldRange, "0x%02x", c.TargetLogicalAddress)
	}

	units := (len(c.ReplyPath) + 3) / 4
	instr := (c.Instruction | InstructionCommand) &^ InstructionReplyAddressMask
	instr |= Instruction(units)
	if !instr.IsValid() {
		return nil, encodeErr("instruction", ErrUnsupportedInstruction, "0x%02x", uint8(instr))
	}
	if err := checkData(instr, c.DataLength, c.Data); err != nil {
		return nil, err
	}

	ral := units * 4
	hlen := commandHeaderSize + ral
	size := len(c.TargetPath) + hlen
	if instr.HasData() {
		size += len(c.Data) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, c.TargetPath...)

	h := make([]byte, hlen)
	h[0] = c.TargetLogicalAddress
	h[1] = ProtocolID
	h[2] = byte(instr)
	h[3] = c.Key
	copy(h[4+ral-len(c.ReplyPath):4+ral], c.ReplyPath)
	p := 4 + ral
	h[p] = c.InitiatorLogicalAddress
	binary.BigEndian.PutUint16(h[p+1:], c.TransactionID)
	h[p+3] = c.ExtendedAddress
	binary.BigEndian.PutUint32(h[p+4:], c.Address)
	putUint24(h[p+8:], c.DataLength)
	h[hlen-1] = CRC(h[:hlen-1])

	c.Instruction = instr
	c.HeaderCRC = h[hlen-1]
	c.DataCRC = 0
	buf = append(buf, h...)

	if instr.HasData() {
		c.DataCRC = CRC(c.Data)
		buf = append(buf, c.Data...)
		buf = append(buf, c.DataCRC)
	}
	return buf, nil
}

func encodeReply(r *Reply) ([]byte, error) {
	if err := checkPath("reply path", r.ReplyPath, MaxTargetPathLength); err != nil {
		return nil, err
	}
	if r.InitiatorLogicalAddress < MinLogicalAddress {
		return nil, encodeErr("initiator logical address", ErrFieldRange, "0x%02x", r.InitiatorLogicalAddress)
	}
	instr := r.Instruction &^ InstructionCommand
	if !instr.IsValid() {
		return nil, encodeErr("instruction", ErrUnsupportedInstruction, "0x%02x", uint8(instr))
	}
	if !instr.HasReply() {
		return nil, encodeErr("instruction", ErrUnsupportedInstruction, "reply without reply bit 0x%02x", uint8(instr))
	}
	if err := checkData(instr, r.DataLength, r.Data); err != nil {
		return nil, err
	}
	if !instr.HasData() && r.DataLength != 0 {
		return nil, encodeErr("data length", ErrDataLengthMismatch, "write reply declares %d bytes", r.DataLength)
	}

	hlen := writeReplyHeaderSize
	if instr.HasData() {
		hlen = readReplyHeaderSize
	}
	h := make([]byte, hlen)
	h[0] = r.InitiatorLogicalAddress
	h[1] = ProtocolID
	h[2] = byte(instr)
	h[3] = byte(r.Status)
	h[4] = r.TargetLogicalAddress
	binary.BigEndian.PutUint16(h[5:], r.TransactionID)
	if instr.HasData() {
		h[7] = 0x00
		putUint24(h[8:], r.DataLength)
	}
	h[hlen-1] = CRC(h[:hlen-1])

	r.Instruction = instr
	r.HeaderCRC = h[hlen-1]
	r.DataCRC = 0

	buf := make([]byte, 0, len(r.ReplyPath)+hlen+len(r.Data)+1)
	buf = append(buf, r.ReplyPath...)
	buf = append(buf, h...)
	if instr.HasData() {
		r.DataCRC = CRC(r.Data)
		buf = append(buf, r.Data...)
		buf = append(buf, r.DataCRC)
	}
	return buf, nil
}

// Decode parses an RMAP packet. Leading bytes below 0x20 are taken as
// path address bytes.
func Decode(b []byte) (Packet, error) {
	start := 0
	for start < len(b) && b[start] < MinLogicalAddress {
		start++
	}
	if start == len(b) {
		return nil, decodeErr(start, ErrNoLogicalAddress, "%d path bytes", start)
	}
	if len(b)-start < MinPacketLength {
		return nil, decodeErr(len(b), ErrTruncated, "%d bytes", len(b)-start)
	}
	if b[start+1] != ProtocolID {
		return nil, decodeErr(start+1, ErrProtocolID, "protocol id 0x%02x", b[start+1])
	}
	instr := Instruction(b[start+2])
	if !instr.IsValid() {
		return nil, decodeErr(start+2, ErrUnsupportedInstruction, "0x%02x", b[start+2])
	}

	var path []byte
	if start > 0 {
		path = bytes.Clone(b[:start])
	}
	if instr.IsCommand() {
		return decodeCommand(b, start, path, instr)
	}
	return decodeReply(b, start, path, instr)
}

func decodeCommand(b []byte, start int, path []byte, instr Instruction) (*Command, error) {
	h := b[start:]
	ral := instr.ReplyAddressLength()
	hlen := commandHeaderSize + ral
	if len(h) < hlen {
		return nil, decodeErr(len(b), ErrTruncated, "command header needs %d bytes, have %d", hlen, len(h))
	}
	if crc := CRC(h[:hlen-1]); crc != h[hlen-1] {
		return nil, decodeErr(start+hlen-1, ErrHeaderCRC, "computed 0x%02x, packet 0x%02x", crc, h[hlen-1])
	}

	p := 4 + ral
	c := &Command{
		TargetPath:              path,
		TargetLogicalAddress:    h[0],
		Instruction:             instr,
		Key:                     h[3],
		ReplyPath:               trimReplyAddress(h[4:p]),
		InitiatorLogicalAddress: h[p],
		TransactionID:           binary.BigEndian.Uint16(h[p+1:]),
		ExtendedAddress:         h[p+3],
		Address:                 binary.BigEndian.Uint32(h[p+4:]),
		DataLength:              uint24(h[p+8:]),
		HeaderCRC:               h[hlen-1],
	}

	data, dcrc, err := decodeData(instr, h[hlen:], c.DataLength, start+hlen)
	if err != nil {
		return nil, err
	}
	c.Data = data
	c.DataCRC = dcrc
	return c, nil
}

func decodeReply(b []byte, start int, path []byte, instr Instruction) (*Reply, error) {
	if !instr.HasReply() {
		return nil, decodeErr(start+2, ErrUnsupportedInstruction, "reply without reply bit 0x%02x", uint8(instr))
	}
	h := b[start:]
	hlen := writeReplyHeaderSize
	if instr.HasData() {
		hlen = readReplyHeaderSize
	}
	if len(h) < hlen {
		return nil, decodeErr(len(b), ErrTruncated, "reply header needs %d bytes, have %d", hlen, len(h))
	}
	if crc := CRC(h[:hlen-1]); crc != h[hlen-1] {
		return nil, decodeErr(start+hlen-1, ErrHeaderCRC, "computed 0x%02x, packet 0x%02x", crc, h[hlen-1])
	}

	r := &Reply{
		ReplyPath:               path,
		InitiatorLogicalAddress: h[0],
		Instruction:             instr,
		Status:                  Status(h[3]),
		TargetLogicalAddress:    h[4],
		TransactionID:           binary.BigEndian.Uint16(h[5:]),
		HeaderCRC:               h[hlen-1],
	}
	if instr.HasData() {
		r.DataLength = uint24(h[8:])
	}

	data, dcrc, err := decodeData(instr, h[hlen:], r.DataLength, start+hlen)
	if err != nil {
		return nil, err
	}
	r.Data = data
	r.DataCRC = dcrc
	return r, nil
}

// decodeData validates the data field and its CRC. rest must hold exactly
// length data bytes plus the CRC byte.
func decodeData(instr Instruction, rest []byte, length uint32, offset int) ([]byte, uint8, error) {
	if !instr.HasData() {
		if len(rest) != 0 {
			return nil, 0, decodeErr(offset, ErrDataLengthMismatch, "%d unexpected trailing bytes", len(rest))
		}
		return nil, 0, nil
	}
	need := int(length) + 1
	if len(rest) < need {
		return nil, 0, decodeErr(offset+len(rest), ErrTruncated, "data field needs %d bytes, have %d", need, len(rest))
	}
	if len(rest) > need {
		return nil, 0, decodeErr(offset+need, ErrDataLengthMismatch, "declared %d data bytes, have %d", length, len(rest)-1)
	}
	data := rest[:length]
	dcrc := rest[length]
	if crc := CRC(data); crc != dcrc {
		return nil, 0, decodeErr(offset+int(length), ErrDataCRC, "computed 0x%02x, packet 0x%02x", crc, dcrc)
	}
	if length == 0 {
		return nil, dcrc, nil
	}
	return bytes.Clone(data), dcrc, nil
}

// trimReplyAddress drops the zero padding in front of a reply address.
func trimReplyAddress(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	if i == len(b) {
		return nil
	}
	return bytes.Clone(b[i:])
}

// IsCommandPacket reports whether b, after any path bytes, looks like an
// RMAP command. It does not validate CRCs.
func IsCommandPacket(b []byte) bool {
	for i, v := range b {
		if v >= MinLogicalAddress {
			return i+2 < len(b) && Instruction(b[i+2]).IsCommand()
		}
	}
	return false
}
