package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of RMAP targets.
	ServiceType = "_spacewire._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default SSDTP port.
	DefaultPort = 10030

	// RecordVersion is the TXT record version written by this package.
	RecordVersion = 1
)

// TXT record keys.
const (
	TXTKeyID             = "id"
	TXTKeyLogicalAddress = "la"
	TXTKeyVersion        = "ver"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrNoAddress           = errors.New("service has no address")
)

// TargetInfo is what a target publishes about itself.
type TargetInfo struct {
	// ID is the target node ID. Used as the instance name.
	ID string

	// LogicalAddress is the target logical address.
	LogicalAddress uint8

	// Port is the SSDTP port (default DefaultPort).
	Port uint16
}

// TargetService is a target found via mDNS.
type TargetService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the hostname (e.g., "bridge-1.local.").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// ID is the target node ID (from TXT "id").
	ID string

	// LogicalAddress is the target logical address (from TXT "la").
	LogicalAddress uint8

	// Version is the record version (from TXT "ver").
	Version int
}

// Address returns host:port for the first resolved address, suitable for
// transport.LinkConfig.Address.
func (s *TargetService) Address() (string, error) {
	if len(s.Addresses) == 0 {
		return "", ErrNoAddress
	}
	return net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port))), nil
}

// ServiceEntry is a raw mDNS service entry, independent of the mDNS
// library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToTargetService converts a ServiceEntry to a TargetService.
func (e *ServiceEntry) ToTargetService() (*TargetService, error) {
	info, version, err := DecodeTargetTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &TargetService{
		InstanceName:   e.Instance,
		Host:           e.Host,
		Port:           e.Port,
		Addresses:      e.Addrs,
		ID:             info.ID,
		LogicalAddress: info.LogicalAddress,
		Version:        version,
	}, nil
}

// FilterFunc filters browse results.
type FilterFunc func(*TargetService) bool

// FilterByID matches the target with the given node ID.
func FilterByID(id string) FilterFunc {
	return func(svc *TargetService) bool {
		return svc.ID == id
	}
}

// FilterByLogicalAddress matches targets with the given logical address.
func FilterByLogicalAddress(la uint8) FilterFunc {
	return func(svc *TargetService) bool {
		return svc.LogicalAddress == la
	}
}

// FilterBrowseResults filters a channel of target services.
func FilterBrowseResults(in <-chan *TargetService, filter FilterFunc) <-chan *TargetService {
	out := make(chan *TargetService)
	go func() {
		defer close(out)
		for svc := range in {
			if filter(svc) {
				out <- svc
			}
		}
	}()
	return out
}
