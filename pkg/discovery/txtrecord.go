package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTargetTXT creates the TXT records of a target.
func EncodeTargetTXT(info *TargetInfo) TXTRecordMap {
	return TXTRecordMap{
		TXTKeyID:             info.ID,
		TXTKeyLogicalAddress: fmt.Sprintf("0x%02x", info.LogicalAddress),
		TXTKeyVersion:        strconv.Itoa(RecordVersion),
	}
}

// DecodeTargetTXT parses the TXT records of a target. A missing version
// is read as version 1.
func DecodeTargetTXT(txt TXTRecordMap) (*TargetInfo, int, error) {
	info := &TargetInfo{}

	var ok bool
	info.ID, ok = txt[TXTKeyID]
	if !ok || info.ID == "" {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}

	laStr, ok := txt[TXTKeyLogicalAddress]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyLogicalAddress)
	}
	la, err := strconv.ParseUint(laStr, 0, 8)
	if err != nil || uint8(la) < wire.MinLogicalAddress {
		return nil, 0, fmt.Errorf("%w: invalid logical address %q", ErrInvalidTXTRecord, laStr)
	}
	info.LogicalAddress = uint8(la)

	version := RecordVersion
	if v, ok := txt[TXTKeyVersion]; ok {
		version, err = strconv.Atoi(v)
		if err != nil || version < 1 {
			return nil, 0, fmt.Errorf("%w: invalid version %q", ErrInvalidTXTRecord, v)
		}
	}
	return info, version, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
