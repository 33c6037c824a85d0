package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Manager errors.
var (
	ErrClosed           = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// State is the link state seen by the Manager.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes the link, for example engine.Start.
type ConnectFunc func(ctx context.Context) error

// DefaultAttemptTimeout bounds each reconnection attempt.
const DefaultAttemptTimeout = 30 * time.Second

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Connect establishes the link. Required.
	Connect ConnectFunc

	// Backoff spaces reconnection attempts (default: 1s doubling to 60s).
	Backoff BackoffConfig

	// AttemptTimeout bounds one reconnection attempt.
	AttemptTimeout time.Duration

	// MaxAttempts stops reconnecting after this many failures (0 = unlimited).
	MaxAttempts int

	// DisableAutoReconnect leaves the link down after a failure.
	DisableAutoReconnect bool

	// OnStateChange is called after every state transition.
	OnStateChange func(oldState, newState State)

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Manager connects a link and reconnects it after failures.
type Manager struct {
	config  ManagerConfig
	backoff *Backoff

	mu    sync.Mutex
	state State

	ctx         context.Context
	cancel      context.CancelFunc
	reconnectCh chan struct{}
	wg          sync.WaitGroup
}

// NewManager creates a Manager and starts its reconnect goroutine.
// Close stops it.
func NewManager(config ManagerConfig) *Manager {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}
	backoffCfg := config.Backoff
	if backoffCfg == (BackoffConfig{}) {
		backoffCfg.Jitter = JitterFactor
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:      config,
		backoff:     NewBackoffWithConfig(backoffCfg),
		ctx:         ctx,
		cancel:      cancel,
		reconnectCh: make(chan struct{}, 1),
	}
	m.wg.Add(1)
	go m.reconnectLoop()
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the link is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Attempts returns the number of reconnection attempts since the last
// successful connect.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}

// transition moves from one of the allowed states to next. It reports
// false, leaving the state alone, if the current state is not allowed.
func (m *Manager) transition(next State, allowed ...State) (State, bool) {
	m.mu.Lock()
	old := m.state
	ok := false
	for _, s := range allowed {
		if old == s {
			ok = true
			break
		}
	}
	if ok {
		m.state = next
	}
	m.mu.Unlock()

	if ok && old != next {
		m.debugLog("link state", "old", old.String(), "new", next.String())
		if m.config.OnStateChange != nil {
			m.config.OnStateChange(old, next)
		}
	}
	return old, ok
}

// Connect establishes the link once. It does not retry; after a failure
// the state is DISCONNECTED.
func (m *Manager) Connect(ctx context.Context) error {
	old, ok := m.transition(StateConnecting, StateDisconnected, StateReconnecting)
	if !ok {
		switch old {
		case StateClosed:
			return ErrClosed
		default:
			return ErrAlreadyConnected
		}
	}

	if err := m.config.Connect(ctx); err != nil {
		m.transition(StateDisconnected, StateConnecting)
		return err
	}
	if _, ok := m.transition(StateConnected, StateConnecting); ok {
		m.backoff.Reset()
	}
	return nil
}

// NotifyConnectionLost records a link failure and, unless disabled,
// schedules reconnection. It matches engine.Config.OnDisconnect.
func (m *Manager) NotifyConnectionLost(err error) {
	next := StateReconnecting
	if m.config.DisableAutoReconnect {
		next = StateDisconnected
	}
	if _, ok := m.transition(next, StateConnected); !ok {
		return
	}
	if m.config.Logger != nil {
		m.config.Logger.Warn("link lost", "error", err)
	}
	if next == StateReconnecting {
		select {
		case m.reconnectCh <- struct{}{}:
		default:
		}
	}
}

// Close stops reconnecting and waits for the reconnect goroutine.
func (m *Manager) Close() {
	m.transition(StateClosed, StateDisconnected, StateConnecting, StateConnected, StateReconnecting)
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.reconnect()
		}
	}
}

func (m *Manager) reconnect() {
	for m.State() == StateReconnecting {
		if m.config.MaxAttempts > 0 && m.backoff.Attempts() >= m.config.MaxAttempts {
			m.transition(StateDisconnected, StateReconnecting)
			return
		}
		m.debugLog("reconnect scheduled", "attempt", m.backoff.Attempts()+1, "delay", m.backoff.Current())
		if err := m.backoff.Wait(m.ctx); err != nil {
			return
		}
		if m.State() != StateReconnecting {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.config.AttemptTimeout)
		err := m.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		m.debugLog("reconnect failed", "error", err)
		m.transition(StateReconnecting, StateDisconnected)
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
