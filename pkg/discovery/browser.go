package discovery

import (
	"context"
	"time"
)

// Browser finds targets via mDNS.
type Browser interface {
	// Browse searches for targets. The channel is closed when ctx is done.
	Browse(ctx context.Context) (<-chan *TargetService, error)

	// Find returns the target with the given node ID.
	// Returns when found or when ctx is cancelled.
	Find(ctx context.Context, id string) (*TargetService, error)

	// FindAll collects every target seen until ctx is done.
	FindAll(ctx context.Context) ([]*TargetService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find and FindAll when ctx has no deadline.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}
