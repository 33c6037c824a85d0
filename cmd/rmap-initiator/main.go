// Command rmap-initiator connects to an RMAP target through a
// SpaceWire-to-TCP bridge and reads or writes its memory.
//
// Without arguments it starts an interactive shell. With arguments it
// runs one shell command and exits.
//
// Usage:
//
//	rmap-initiator [flags] [command args...]
//
// Flags:
//
//	-config string         Configuration file (YAML or TOML)
//	-discover string       Find the bridge of this target node via mDNS
//	-interface string      Network interface for mDNS (default: all)
//	-monitor string        Serve the HTTP monitor on this address
//	-history string        Transaction history database (SQLite)
//	-max-reconnects int    Give up after this many failed reconnects (0 = never)
//	-protocol-log string   Protocol capture file (CBOR)
//	-log-level string      Log level: debug, info, warn, error
//	-env-file string       Environment file providing RMAP_* defaults
//
// Examples:
//
//	# Interactive shell
//	rmap-initiator -config targets.yaml
//
//	# Read one register
//	rmap-initiator -config targets.yaml read SampleRMAPTargetNode SampleRegister
//
//	# Serve the monitor and keep a history on disk
//	rmap-initiator -config targets.yaml -monitor 127.0.0.1:8080 -history rmap.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rmap-protocol/rmap-go/pkg/config"
	"github.com/rmap-protocol/rmap-go/pkg/discovery"
	rmaplog "github.com/rmap-protocol/rmap-go/pkg/log"
)

// Options holds the command line configuration.
type Options struct {
	ConfigFile    string
	Discover      string
	Interface     string
	MonitorAddr   string
	HistoryPath   string
	MaxReconnects int
	ProtocolLog   string
	LogLevel      string
	EnvFile       string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file (YAML or TOML)")
	flag.StringVar(&opts.Discover, "discover", "", "Find the bridge of this target node via mDNS")
	flag.StringVar(&opts.Interface, "interface", "", "Network interface for mDNS (default: all)")
	flag.StringVar(&opts.MonitorAddr, "monitor", "", "Serve the HTTP monitor on this address")
	flag.StringVar(&opts.HistoryPath, "history", "", "Transaction history database (SQLite)")
	flag.IntVar(&opts.MaxReconnects, "max-reconnects", 0, "Give up after this many failed reconnects (0 = never)")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Protocol capture file (CBOR)")
	flag.StringVar(&opts.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.EnvFile, "env-file", ".env", "Environment file providing RMAP_* defaults")
}

func main() {
	flag.Parse()

	// A missing environment file is not an error.
	_ = godotenv.Load(opts.EnvFile)
	applyEnv(&opts, flagsSet())

	logger := newLogger(opts.LogLevel)
	if err := run(logger, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "rmap-initiator: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, args []string) error {
	if opts.ConfigFile == "" {
		return errors.New("-config or RMAP_CONFIG is required")
	}
	file, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Discover != "" {
		addr, err := discover(ctx, opts.Discover, opts.Interface)
		if err != nil {
			return err
		}
		logger.Info("target discovered", "target", opts.Discover, "addr", addr)
		file.Transport.Address = addr
	}

	var protoLog rmaplog.Logger
	if opts.ProtocolLog != "" {
		fl, err := rmaplog.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		protoLog = fl
	}

	s, err := newSession(file, opts, logger, protoLog)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.start(ctx); err != nil {
		return err
	}

	shell := NewShell(s.initiator, s.engine.Stats, s.history, s.timeout, os.Stdout)
	if len(args) > 0 {
		err := shell.Exec(ctx, strings.Join(args, " "))
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}
	return shell.Run(ctx)
}

// discover resolves the bridge address of a target node via mDNS.
func discover(ctx context.Context, id, iface string) (string, error) {
	cfg := discovery.DefaultBrowserConfig()
	cfg.Interface = iface
	browser, err := discovery.NewMDNSBrowser(cfg)
	if err != nil {
		return "", err
	}
	defer browser.Stop()

	svc, err := browser.Find(ctx, id)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", id, err)
	}
	return svc.Address()
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
	if v := os.Getenv("RMAP_DISCOVER"); v != "" && !set["discover"] {
		o.Discover = v
	}
	if v := os.Getenv("RMAP_MONITOR"); v != "" && !set["monitor"] {
		o.MonitorAddr = v
	}
	if v := os.Getenv("RMAP_HISTORY"); v != "" && !set["history"] {
		o.HistoryPath = v
	}
	if v := os.Getenv("RMAP_MAX_RECONNECTS"); v != "" && !set["max-reconnects"] {
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxReconnects = n
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
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
