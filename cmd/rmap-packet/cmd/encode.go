package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// commandFlags are shared by the encode subcommands.
type commandFlags struct {
	targetLA    uint8
	initiatorLA uint8
	key         uint8
	tid         uint16
	ext         uint8
	addr        uint32
	targetPath  string
	replyPath   string
	noIncrement bool
	dump        bool
}

func (f *commandFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Uint8Var(&f.targetLA, "la", 0xFE, "Target logical address")
	fs.Uint8Var(&f.initiatorLA, "initiator", 0xFE, "Initiator logical address")
	fs.Uint8Var(&f.key, "key", 0, "Access key")
	fs.Uint16Var(&f.tid, "tid", 0, "Transaction ID")
	fs.Uint8Var(&f.ext, "ext", 0, "Extended address")
	fs.Uint32Var(&f.addr, "addr", 0, "Memory address")
	fs.StringVar(&f.targetPath, "target-path", "", "Target path address bytes (hex)")
	fs.StringVar(&f.replyPath, "reply-path", "", "Reply path address bytes (hex)")
	fs.BoolVar(&f.noIncrement, "no-increment", false, "Clear the increment flag")
	fs.BoolVar(&f.dump, "dump", false, "Print the decoded packet after the hex")
}

// apply copies the shared fields into c.
func (f *commandFlags) apply(c *wire.Command) error {
	var err error
	if c.TargetPath, err = wire.ParseHex(f.targetPath); err != nil {
		return fmt.Errorf("target path: %w", err)
	}
	if c.ReplyPath, err = wire.ParseHex(f.replyPath); err != nil {
		return fmt.Errorf("reply path: %w", err)
	}
	c.TransactionID = f.tid
	if f.noIncrement {
		c.Instruction &^= wire.InstructionIncrement
	}
	return nil
}

func (f *commandFlags) print(cmd *cobra.Command, c *wire.Command) error {
	b, err := wire.Encode(c)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, hex.EncodeToString(b))
	if f.dump {
		p, err := wire.Decode(b)
		if err != nil {
			return err
		}
		fmt.Fprint(out, wire.Dump(p))
	}
	return nil
}

func newEncodeCmd() *cobra.Command {
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Encode a command packet",
	}
	encode.AddCommand(newEncodeReadCmd(), newEncodeWriteCmd())
	return encode
}

func newEncodeReadCmd() *cobra.Command {
	var (
		f      commandFlags
		length uint32
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Encode a read command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wire.NewReadCommand(f.targetLA, f.initiatorLA, f.key, f.ext, f.addr, length)
			if err := f.apply(c); err != nil {
				return err
			}
			return f.print(cmd, c)
		},
	}
	f.register(cmd)
	cmd.Flags().Uint32Var(&length, "len", 4, "Number of bytes to read")
	return cmd
}

func newEncodeWriteCmd() *cobra.Command {
	var (
		f        commandFlags
		data     string
		noVerify bool
		noReply  bool
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Encode a write command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := wire.ParseHex(data)
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			c := wire.NewWriteCommand(f.targetLA, f.initiatorLA, f.key, f.ext, f.addr, payload)
			if noVerify {
				c.Instruction &^= wire.InstructionVerify
			}
			if noReply {
				c.Instruction &^= wire.InstructionReply
			}
			if err := f.apply(c); err != nil {
				return err
			}
			return f.print(cmd, c)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&data, "data", "", "Data to write (hex)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Write without verifying first")
	cmd.Flags().BoolVar(&noReply, "no-reply", false, "Request no reply")
	return cmd
}
