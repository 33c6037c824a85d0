package transport

import (
	"context"
	"sync"
	"time"
)

// Time code constants.
const (
	// DefaultTimeCodeInterval is the default period between time codes.
	DefaultTimeCodeInterval = 1 * time.Second

	// DefaultMaxSendFailures is the number of consecutive failed sends
	// after which the link is reported dead.
	DefaultMaxSendFailures = 3

	// timeCodeModulo is the number of distinct 6-bit time code values.
	timeCodeModulo = 64
)

// TimeCodeConfig configures periodic time code emission.
type TimeCodeConfig struct {
	// Interval between time codes.
	Interval time.Duration

	// MaxSendFailures is the number of consecutive send failures before
	// OnLinkFailure is called.
	MaxSendFailures int
}

// DefaultTimeCodeConfig returns the default time code configuration.
func DefaultTimeCodeConfig() TimeCodeConfig {
	return TimeCodeConfig{
		Interval:        DefaultTimeCodeInterval,
		MaxSendFailures: DefaultMaxSendFailures,
	}
}

// TimeCodeGenerator periodically sends SpaceWire time codes over a link,
// incrementing the 6-bit counter on every tick. Repeated send failures
// are reported as a link failure.
type TimeCodeGenerator struct {
	config TimeCodeConfig

	send          func(tc uint8) error
	onLinkFailure func()

	mu       sync.Mutex
	next     uint8
	sent     uint64
	failures int
	lastSent time.Time
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTimeCodeGenerator creates a generator that calls send for every tick.
func NewTimeCodeGenerator(config TimeCodeConfig, send func(tc uint8) error, onLinkFailure func()) *TimeCodeGenerator {
	if config.Interval <= 0 {
		config.Interval = DefaultTimeCodeInterval
	}
	if config.MaxSendFailures <= 0 {
		config.MaxSendFailures = DefaultMaxSendFailures
	}
	return &TimeCodeGenerator{
		config:        config,
		send:          send,
		onLinkFailure: onLinkFailure,
	}
}

// Start begins emitting time codes until Stop is called or ctx is done.
func (g *TimeCodeGenerator) Start(ctx context.Context) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.stopCh = make(chan struct{})
	g.doneCh = make(chan struct{})
	stopCh, doneCh := g.stopCh, g.doneCh
	g.mu.Unlock()

	go g.loop(ctx, stopCh, doneCh)
}

// Stop halts emission and waits for the generator goroutine to exit.
func (g *TimeCodeGenerator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stopCh)
	doneCh := g.doneCh
	g.mu.Unlock()

	<-doneCh
}

// IsRunning returns true while the generator is active.
func (g *TimeCodeGenerator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// TimeCodeStats contains generator statistics.
type TimeCodeStats struct {
	Sent     uint64
	Next     uint8
	Failures int
	LastSent time.Time
}

// Stats returns current generator statistics.
func (g *TimeCodeGenerator) Stats() TimeCodeStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return TimeCodeStats{
		Sent:     g.sent,
		Next:     g.next,
		Failures: g.failures,
		LastSent: g.lastSent,
	}
}

func (g *TimeCodeGenerator) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if g.tick() {
				if g.onLinkFailure != nil {
					g.onLinkFailure()
				}
				return
			}
		}
	}
}

// tick sends one time code and reports whether the failure limit was reached.
func (g *TimeCodeGenerator) tick() bool {
	g.mu.Lock()
	tc := g.next
	g.mu.Unlock()

	err := g.send(tc)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.failures++
		return g.failures >= g.config.MaxSendFailures
	}
	g.failures = 0
	g.sent++
	g.lastSent = time.Now()
	g.next = (tc + 1) % timeCodeModulo
	return false
}
