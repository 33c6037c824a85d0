package discovery

import (
	"context"
	"time"
)

// Advertiser publishes targets via mDNS.
type Advertiser interface {
	// Advertise starts advertising a target. Advertising an ID again
	// replaces the previous record.
	Advertise(ctx context.Context, info *TargetInfo) error

	// Update replaces the TXT records of an advertised target.
	Update(info *TargetInfo) error

	// Stop stops advertising the target with the given ID.
	Stop(id string) error

	// StopAll stops all advertisements.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}
