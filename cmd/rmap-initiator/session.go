package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/config"
	"github.com/rmap-protocol/rmap-go/pkg/connection"
	"github.com/rmap-protocol/rmap-go/pkg/engine"
	"github.com/rmap-protocol/rmap-go/pkg/initiator"
	rmaplog "github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/monitor"
	"github.com/rmap-protocol/rmap-go/pkg/transport"
)

var errTimeCodeFailure = errors.New("time codes could not be sent")

// session owns the link, the engine and everything built on top of them.
type session struct {
	link      *transport.Link
	engine    *engine.Engine
	manager   *connection.Manager
	timecodes *transport.TimeCodeGenerator
	initiator *initiator.Initiator
	history   *monitor.History
	monitor   *monitor.Server
	timeout   time.Duration
	logger    *slog.Logger

	// monitorAddr is the configured listen address; after start it is
	// the bound address.
	monitorAddr string

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(file *config.File, o Options, logger *slog.Logger, protoLog rmaplog.Logger) (*session, error) {
	s := &session{timeout: file.Timeout(), logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if o.HistoryPath != "" || o.MonitorAddr != "" {
		path := o.HistoryPath
		if path == "" {
			path = ":memory:"
		}
		h, err := monitor.NewHistory(path)
		if err != nil {
			s.cancel()
			return nil, err
		}
		h.SetLogger(logger)
		s.history = h
		if protoLog == nil {
			protoLog = h
		} else {
			protoLog = rmaplog.NewMultiLogger(protoLog, h)
		}
	}

	s.link = transport.NewLink(transport.LinkConfig{
		Address:        file.Transport.Address,
		ConnectTimeout: time.Duration(file.Transport.ConnectTimeout),
		MaxPacketSize:  uint64(file.Transport.MaxPacketSize),
		Logger:         protoLog,
		OnTimeCode: func(tc uint8) {
			logger.Debug("time code received", "value", tc)
		},
	})

	s.engine = engine.New(engine.Config{
		Transport:      s.link,
		DefaultTimeout: s.timeout,
		Logger:         logger,
		ProtocolLogger: protoLog,
		OnDisconnect: func(err error) {
			s.manager.NotifyConnectionLost(err)
		},
	})

	s.manager = connection.NewManager(connection.ManagerConfig{
		Connect:       s.engine.Start,
		MaxAttempts:   o.MaxReconnects,
		Logger:        logger,
		OnStateChange: s.onStateChange,
	})

	if interval := time.Duration(file.Initiator.TimeCodeInterval); interval > 0 {
		cfg := transport.DefaultTimeCodeConfig()
		cfg.Interval = interval
		s.timecodes = transport.NewTimeCodeGenerator(cfg, s.link.SendTimeCode, s.onTimeCodeFailure)
	}

	in, err := initiator.New(initiator.Config{
		Registry:       file.Registry(),
		Engine:         s.engine,
		LogicalAddress: file.InitiatorLogicalAddress(),
		DefaultTimeout: s.timeout,
		Retries:        file.Initiator.Retries,
		Logger:         logger,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.initiator = in

	if o.MonitorAddr != "" {
		srv, err := monitor.NewServer(monitor.Config{
			Address: o.MonitorAddr,
			Memory:  in,
			Stats:   s.engine,
			History: s.history,
			Timeout: s.timeout,
			Logger:  logger,
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.monitor = srv
		s.monitorAddr = o.MonitorAddr
	}
	return s, nil
}

// start connects the link and serves the monitor, if configured.
func (s *session) start(ctx context.Context) error {
	if err := s.manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if s.monitor == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.monitorAddr)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	s.monitorAddr = ln.Addr().String()
	s.logger.Info("monitor listening", "addr", s.monitorAddr)
	go func() {
		if err := s.monitor.Serve(ln); err != nil {
			s.logger.Warn("monitor stopped", "error", err)
		}
	}()
	return nil
}

func (s *session) onStateChange(oldState, newState connection.State) {
	s.logger.Info("link state", "old", oldState.String(), "new", newState.String())
	if s.timecodes != nil && newState == connection.StateConnected {
		// The generator exits after a link failure; restart it.
		s.timecodes.Stop()
		s.timecodes.Start(s.ctx)
	}
}

func (s *session) onTimeCodeFailure() {
	if !s.manager.IsConnected() {
		return
	}
	s.logger.Warn("time code emission failed, resetting link")
	s.engine.Stop()
	s.manager.NotifyConnectionLost(errTimeCodeFailure)
}

// close stops everything in reverse order of construction.
func (s *session) close() {
	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.monitor.Shutdown(ctx)
		cancel()
	}
	s.cancel()
	if s.timecodes != nil {
		s.timecodes.Stop()
	}
	s.manager.Close()
	s.engine.Stop()
	if s.history != nil {
		s.history.Close()
	}
}
