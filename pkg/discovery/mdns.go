package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server // keyed by target ID
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}, nil
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising a target.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *TargetInfo) error {
	if err := ValidateInstanceName(info.ID); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[info.ID]; exists {
		server.Shutdown()
		delete(a.servers, info.ID)
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.ID,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeTargetTXT(info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register target service: %w", err)
	}

	a.servers[info.ID] = server
	return nil
}

// Update replaces the TXT records of an advertised target.
func (a *MDNSAdvertiser) Update(info *TargetInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[info.ID]
	if !exists {
		return ErrNotFound
	}
	server.SetText(TXTRecordsToStrings(EncodeTargetTXT(info)))
	return nil
}

// Stop stops advertising a target.
func (a *MDNSAdvertiser) Stop(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[id]
	if !exists {
		return ErrNotFound
	}
	server.Shutdown()
	delete(a.servers, id)
	return nil
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, server := range a.servers {
		server.Shutdown()
		delete(a.servers, id)
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	nextID  int
	cancels map[int]context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{
		config:  config,
		cancels: make(map[int]context.CancelFunc),
	}, nil
}

// Browse searches for targets. Services are aggregated by instance name:
// addresses seen on several interfaces are combined into one entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *TargetService, error) {
	ctx, done := b.track(ctx)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan *TargetService)

	go func() {
		defer close(out)
		defer done()
		aggregate(ctx, entries, removed, out)
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// aggregate turns zeroconf entries into services and emits each instance
// once.
func aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *TargetService) {
	services := make(map[string]*TargetService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := fromZeroconf(entry).ToTargetService()
			if err != nil {
				continue
			}

			existing, found := services[svc.InstanceName]
			if found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			raw := fromZeroconf(entry)
			if existing, found := services[raw.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, raw.Addrs)
				if len(existing.Addresses) == 0 {
					delete(services, raw.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// Find returns the target with the given node ID.
func (b *MDNSBrowser) Find(ctx context.Context, id string) (*TargetService, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if svc.ID == id {
			return svc, nil
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// FindAll collects every target seen until ctx is done. Running out of
// time is not an error.
func (b *MDNSBrowser) FindAll(ctx context.Context) ([]*TargetService, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	found := []*TargetService{}
	for svc := range results {
		found = append(found, svc)
	}
	return found, nil
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

func (b *MDNSBrowser) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.config.BrowseTimeout)
}

// track registers a cancellable browse so Stop can end it.
func (b *MDNSBrowser) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.cancels[id] = cancel
	b.mu.Unlock()

	return ctx, func() {
		cancel()
		b.mu.Lock()
		delete(b.cancels, id)
		b.mu.Unlock()
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// fromZeroconf converts a zeroconf entry to a ServiceEntry.
func fromZeroconf(entry *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance: entry.Instance,
		Service:  ServiceType,
		Domain:   Domain,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
