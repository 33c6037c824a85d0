package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/rmap-protocol/rmap-go/pkg/engine"
	"github.com/rmap-protocol/rmap-go/pkg/initiator"
	"github.com/rmap-protocol/rmap-go/pkg/monitor"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// errQuit ends the interactive loop.
var errQuit = errors.New("quit")

// memoryAccess is the part of *initiator.Initiator the shell uses.
type memoryAccess interface {
	Registry() *registry.Registry
	Read(ctx context.Context, targetID, memoryID string, timeout time.Duration, opts ...initiator.Option) ([]byte, error)
	Write(ctx context.Context, targetID, memoryID string, data []byte, timeout time.Duration, opts ...initiator.Option) error
	ReadAt(ctx context.Context, targetID string, address, length uint32, timeout time.Duration, opts ...initiator.Option) ([]byte, error)
	WriteAt(ctx context.Context, targetID string, address uint32, data []byte, timeout time.Duration, opts ...initiator.Option) error
}

var _ memoryAccess = (*initiator.Initiator)(nil)

// Shell executes initiator commands typed by the operator.
type Shell struct {
	mem     memoryAccess
	stats   func() engine.Stats
	history *monitor.History
	timeout time.Duration
	out     io.Writer
}

// NewShell creates a shell writing to out. history may be nil.
func NewShell(mem memoryAccess, stats func() engine.Stats, history *monitor.History, timeout time.Duration, out io.Writer) *Shell {
	return &Shell{mem: mem, stats: stats, history: history, timeout: timeout, out: out}
}

// Run reads commands with line editing until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rmap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.out = rl.Stdout()
	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
		return nil
	case "targets", "t":
		return s.cmdTargets(args)
	case "read", "r":
		return s.cmdRead(ctx, args)
	case "write", "w":
		return s.cmdWrite(ctx, args)
	case "readat":
		return s.cmdReadAt(ctx, args)
	case "writeat":
		return s.cmdWriteAt(ctx, args)
	case "stats":
		return s.cmdStats()
	case "history", "h":
		return s.cmdHistory(args)
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
RMAP Initiator Commands:
  targets [target]                      - List target nodes and memory objects
  read <target> <memory>                - Read a memory object
  write <target> <memory> <hex>         - Write a memory object
  readat <target> <addr> <len> [ext]    - Read raw memory
  writeat <target> <addr> <hex> [ext]   - Write raw memory
  stats                                 - Show engine statistics
  history [n]                           - Show the last n transactions
  quit                                  - Exit`)
}

func usage(format string) error {
	return fmt.Errorf("usage: %s", format)
}

func (s *Shell) cmdTargets(args []string) error {
	reg := s.mem.Registry()
	nodes := reg.Targets()
	if len(args) == 1 {
		node, err := reg.Target(args[0])
		if err != nil {
			return err
		}
		nodes = []registry.TargetNode{node}
	}
	for _, n := range nodes {
		fmt.Fprintf(s.out, "%s  la=0x%02x key=0x%02x", n.ID, n.LogicalAddress, n.DefaultKey)
		if len(n.TargetPath) > 0 {
			fmt.Fprintf(s.out, " path=%s", hex.EncodeToString(n.TargetPath))
		}
		fmt.Fprintln(s.out)
		for _, m := range n.MemoryObjects {
			fmt.Fprintf(s.out, "  %-20s 0x%02x:%08x  %6d bytes  %s\n", m.ID, m.ExtendedAddress, m.Address, m.Size, m.Access)
		}
	}
	return nil
}

func (s *Shell) cmdRead(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("read <target> <memory>")
	}
	data, err := s.mem.Read(ctx, args[0], args[1], s.timeout)
	if err != nil {
		return err
	}
	s.printData(args[0]+"/"+args[1], data)
	return nil
}

func (s *Shell) cmdWrite(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("write <target> <memory> <hex>")
	}
	data, err := wire.ParseHex(strings.Join(args[2:], ""))
	if err != nil {
		return err
	}
	if err := s.mem.Write(ctx, args[0], args[1], data, s.timeout); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s/%s: wrote %d bytes\n", args[0], args[1], len(data))
	return nil
}

func (s *Shell) cmdReadAt(ctx context.Context, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return usage("readat <target> <addr> <len> [ext]")
	}
	addr, err := parseUint(args[1], 32, "address")
	if err != nil {
		return err
	}
	length, err := parseUint(args[2], 24, "length")
	if err != nil {
		return err
	}
	opts, err := extOption(args[3:])
	if err != nil {
		return err
	}
	data, err := s.mem.ReadAt(ctx, args[0], uint32(addr), uint32(length), s.timeout, opts...)
	if err != nil {
		return err
	}
	s.printData(fmt.Sprintf("%s@0x%08x", args[0], addr), data)
	return nil
}

func (s *Shell) cmdWriteAt(ctx context.Context, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return usage("writeat <target> <addr> <hex> [ext]")
	}
	addr, err := parseUint(args[1], 32, "address")
	if err != nil {
		return err
	}
	data, err := wire.ParseHex(args[2])
	if err != nil {
		return err
	}
	opts, err := extOption(args[3:])
	if err != nil {
		return err
	}
	if err := s.mem.WriteAt(ctx, args[0], uint32(addr), data, s.timeout, opts...); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s@0x%08x: wrote %d bytes\n", args[0], addr, len(data))
	return nil
}

func (s *Shell) cmdStats() error {
	st := s.stats()
	fmt.Fprintf(s.out, "sent=%d fulfilled=%d timed_out=%d aborted=%d pending=%d\n",
		st.Sent, st.Fulfilled, st.TimedOut, st.Aborted, st.Pending)
	fmt.Fprintf(s.out, "discarded=%d unexpected_replies=%d\n", st.DiscardedPackets, st.UnexpectedReplies)
	return nil
}

func (s *Shell) cmdHistory(args []string) error {
	if s.history == nil {
		return errors.New("history is disabled (use -history or -monitor)")
	}
	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage("history [n]")
		}
		limit = n
	}
	records, err := s.history.Recent(limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		status := "-"
		if r.Status != nil {
			status = r.Status.String()
		}
		fmt.Fprintf(s.out, "%s tid=%-5d la=0x%02x %-5s 0x%02x:%08x len=%-6d %-9s %-24s %s\n",
			r.CompletedAt.Format("15:04:05.000"), r.TransactionID, r.TargetLogicalAddress, r.Operation,
			r.ExtendedAddress, r.Address, r.Length, r.State, status, r.Latency)
	}
	return nil
}

// printData shows short values on one line and longer ones as a hex dump.
func (s *Shell) printData(label string, data []byte) {
	if len(data) <= 16 {
		fmt.Fprintf(s.out, "%s: % x\n", label, data)
		return
	}
	fmt.Fprintf(s.out, "%s: %d bytes\n%s", label, len(data), hex.Dump(data))
}

func parseUint(s string, bits int, what string) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return n, nil
}

func extOption(args []string) ([]initiator.Option, error) {
	if len(args) == 0 {
		return nil, nil
	}
	ext, err := parseUint(args[0], 8, "extended address")
	if err != nil {
		return nil, err
	}
	return []initiator.Option{initiator.WithExtendedAddress(uint8(ext))}, nil
}
