package wire

import (
	"fmt"
	"strings"
)

// maxDumpData limits the number of data bytes shown by Dump.
const maxDumpData = 64

// Dump returns a multi-line human-readable description of p.
func Dump(p Packet) string {
	var sb strings.Builder
	switch v := p.(type) {
	case *Command:
		fmt.Fprintf(&sb, "RMAP Command\n")
		if len(v.TargetPath) > 0 {
			fmt.Fprintf(&sb, "  Target Path:       %s\n", hexBytes(v.TargetPath))
		}
		fmt.Fprintf(&sb, "  Target LA:         0x%02x\n", v.TargetLogicalAddress)
		fmt.Fprintf(&sb, "  Instruction:       0x%02x (%s)\n", uint8(v.Instruction), v.Instruction)
		fmt.Fprintf(&sb, "  Key:               0x%02x\n", v.Key)
		if len(v.ReplyPath) > 0 {
			fmt.Fprintf(&sb, "  Reply Path:        %s\n", hexBytes(v.ReplyPath))
		}
		fmt.Fprintf(&sb, "  Initiator LA:      0x%02x\n", v.InitiatorLogicalAddress)
		fmt.Fprintf(&sb, "  Transaction ID:    0x%04x (%d)\n", v.TransactionID, v.TransactionID)
		fmt.Fprintf(&sb, "  Extended Address:  0x%02x\n", v.ExtendedAddress)
		fmt.Fprintf(&sb, "  Address:           0x%08x\n", v.Address)
		fmt.Fprintf(&sb, "  Data Length:       %d\n", v.DataLength)
		fmt.Fprintf(&sb, "  Header CRC:        0x%02x\n", v.HeaderCRC)
		if v.Instruction.HasData() {
			dumpData(&sb, v.Data, v.DataCRC)
		}
	case *Reply:
		fmt.Fprintf(&sb, "RMAP Reply\n")
		if len(v.ReplyPath) > 0 {
			fmt.Fprintf(&sb, "  Reply Path:        %s\n", hexBytes(v.ReplyPath))
		}
		fmt.Fprintf(&sb, "  Initiator LA:      0x%02x\n", v.InitiatorLogicalAddress)
		fmt.Fprintf(&sb, "  Instruction:       0x%02x (%s)\n", uint8(v.Instruction), v.Instruction)
		fmt.Fprintf(&sb, "  Status:            0x%02x (%s)\n", uint8(v.Status), v.Status.Description())
		fmt.Fprintf(&sb, "  Target LA:         0x%02x\n", v.TargetLogicalAddress)
		fmt.Fprintf(&sb, "  Transaction ID:    0x%04x (%d)\n", v.TransactionID, v.TransactionID)
		if v.Instruction.HasData() {
			fmt.Fprintf(&sb, "  Data Length:       %d\n", v.DataLength)
		}
		fmt.Fprintf(&sb, "  Header CRC:        0x%02x\n", v.HeaderCRC)
		if v.Instruction.HasData() {
			dumpData(&sb, v.Data, v.DataCRC)
		}
	default:
		fmt.Fprintf(&sb, "unknown packet %T\n", p)
	}
	return sb.String()
}

func dumpData(sb *strings.Builder, data []byte, crc uint8) {
	shown := data
	suffix := ""
	if len(shown) > maxDumpData {
		shown = shown[:maxDumpData]
		suffix = fmt.Sprintf(" ... (%d more)", len(data)-maxDumpData)
	}
	fmt.Fprintf(sb, "  Data:              %s%s\n", hexBytes(shown), suffix)
	fmt.Fprintf(sb, "  Data CRC:          0x%02x\n", crc)
}

func hexBytes(b []byte) string {
	if len(b) == 0 {
		return "(none)"
	}
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
