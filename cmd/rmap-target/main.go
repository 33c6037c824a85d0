// Command rmap-target runs a simulated RMAP target behind a
// SpaceWire-to-TCP bridge endpoint.
//
// The target node, its logical address, key and memory map are taken from
// the same configuration file the initiator uses.
//
// Usage:
//
//	rmap-target [flags]
//
// Flags:
//
//	-config string         Configuration file (YAML or TOML)
//	-target string         Target node to simulate (default: first node)
//	-listen string         Listen address (default ":10030")
//	-verify-buffer int     Verify buffer size in bytes (0 = unlimited)
//	-image string          Memory image file, restored on start and saved on exit
//	-reset                 Discard the memory image before starting
//	-advertise             Advertise the target via mDNS
//	-interface string      Network interface for mDNS (default: all)
//	-protocol-log string   Protocol capture file (CBOR)
//	-log-level string      Log level: debug, info, warn, error
//	-env-file string       Environment file providing RMAP_* defaults
//
// Examples:
//
//	# Simulate the first node of targets.yaml
//	rmap-target -config targets.yaml
//
//	# Keep memory across restarts and announce the target on the LAN
//	rmap-target -config targets.yaml -image /var/lib/rmap/sim.img -advertise
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rmap-protocol/rmap-go/pkg/config"
	"github.com/rmap-protocol/rmap-go/pkg/discovery"
	rmaplog "github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/transport"
)

// Options holds the command line configuration.
type Options struct {
	ConfigFile   string
	TargetID     string
	Listen       string
	VerifyBuffer int
	ImagePath    string
	Reset        bool
	Advertise    bool
	Interface    string
	ProtocolLog  string
	LogLevel     string
	EnvFile      string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file (YAML or TOML)")
	flag.StringVar(&opts.TargetID, "target", "", "Target node to simulate (default: first node)")
	flag.StringVar(&opts.Listen, "listen", fmt.Sprintf(":%d", transport.DefaultPort), "Listen address")
	flag.IntVar(&opts.VerifyBuffer, "verify-buffer", 0, "Verify buffer size in bytes (0 = unlimited)")
	flag.StringVar(&opts.ImagePath, "image", "", "Memory image file, restored on start and saved on exit")
	flag.BoolVar(&opts.Reset, "reset", false, "Discard the memory image before starting")
	flag.BoolVar(&opts.Advertise, "advertise", false, "Advertise the target via mDNS")
	flag.StringVar(&opts.Interface, "interface", "", "Network interface for mDNS (default: all)")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Protocol capture file (CBOR)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.EnvFile, "env-file", ".env", "Environment file providing RMAP_* defaults")
}

func main() {
	flag.Parse()

	// A missing environment file is not an error.
	_ = godotenv.Load(opts.EnvFile)
	applyEnv(&opts, flagsSet())

	logger := newLogger(opts.LogLevel)
	if err := run(logger); err != nil {
		logger.Error("rmap-target failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if opts.ConfigFile == "" {
		return fmt.Errorf("-config or RMAP_CONFIG is required")
	}
	file, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	var protoLog rmaplog.Logger
	if opts.ProtocolLog != "" {
		fl, err := rmaplog.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		protoLog = fl
		logger.Info("protocol capture enabled", "path", fl.Path())
	}

	sim, err := newSimulator(file, opts, logger, protoLog)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := sim.target.Serve(ctx, transport.ServerConfig{
		Address:       opts.Listen,
		MaxPacketSize: uint64(file.Transport.MaxPacketSize),
		Logger:        protoLog,
		OnConnect: func(conn *transport.ServerConn) {
			logger.Info("initiator connected", "remote", conn.RemoteAddr(), "conn", conn.ConnID())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			logger.Info("initiator disconnected", "remote", conn.RemoteAddr(), "conn", conn.ConnID())
		},
		OnTimeCode: func(conn *transport.ServerConn, tc uint8) {
			logger.Debug("time code", "value", tc, "conn", conn.ConnID())
		},
		OnError: func(conn *transport.ServerConn, err error) {
			logger.Warn("link error", "error", err)
		},
	})
	if err != nil {
		return err
	}
	logger.Info("target listening",
		"target", sim.target.ID(),
		"la", fmt.Sprintf("0x%02x", sim.target.LogicalAddress()),
		"addr", srv.Addr().String())

	var advertiser *discovery.MDNSAdvertiser
	if opts.Advertise {
		advertiser, err = advertise(ctx, sim, srv.Addr())
		if err != nil {
			logger.Warn("mDNS advertising unavailable", "error", err)
		} else {
			logger.Info("advertising via mDNS", "service", discovery.ServiceType)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if advertiser != nil {
		advertiser.StopAll()
	}
	if err := srv.Stop(); err != nil {
		logger.Warn("stopping server", "error", err)
	}

	stats := sim.target.Stats()
	logger.Info("target stats",
		"commands", stats.Commands, "reads", stats.Reads, "writes", stats.Writes,
		"errors", stats.Errors, "discarded", stats.Discarded)

	return sim.save()
}

func advertise(ctx context.Context, sim *simulator, addr net.Addr) (*discovery.MDNSAdvertiser, error) {
	cfg := discovery.DefaultAdvertiserConfig()
	cfg.Interface = opts.Interface
	adv, err := discovery.NewMDNSAdvertiser(cfg)
	if err != nil {
		return nil, err
	}

	port := uint16(transport.DefaultPort)
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = uint16(tcp.Port)
	}
	info := &discovery.TargetInfo{
		ID:             sim.target.ID(),
		LogicalAddress: sim.target.LogicalAddress(),
		Port:           port,
	}
	if err := adv.Advertise(ctx, info); err != nil {
		return nil, err
	}
	return adv, nil
}

// flagsSet returns the names of the flags given on the command line.
func flagsSet() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyEnv fills options not given as flags from RMAP_* variables.
func applyEnv(o *Options, set map[string]bool) {
	if v := os.Getenv("RMAP_CONFIG"); v != "" && !set["config"] {
		o.ConfigFile = v
	}
	if v := os.Getenv("RMAP_TARGET"); v != "" && !set["target"] {
		o.TargetID = v
	}
	if v := os.Getenv("RMAP_LISTEN"); v != "" && !set["listen"] {
		o.Listen = v
	}
	if v := os.Getenv("RMAP_IMAGE"); v != "" && !set["image"] {
		o.ImagePath = v
	}
	if v := os.Getenv("RMAP_VERIFY_BUFFER"); v != "" && !set["verify-buffer"] {
		if n, err := strconv.Atoi(v); err == nil {
			o.VerifyBuffer = n
		}
	}
	if v := os.Getenv("RMAP_LOG_LEVEL"); v != "" && !set["log-level"] {
		o.LogLevel = v
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
