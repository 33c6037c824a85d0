// Package cmd implements the rmap-packet commands.
package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// NewRootCmd builds the rmap-packet command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rmap-packet",
		Short: "Encode, decode and check RMAP packets",
		Long: `rmap-packet works on raw RMAP packets given as hex.

Hex input may contain whitespace, ':' or '-' separators and a 0x prefix.
Use '-' as the only argument to read hex from standard input.`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newDecodeCmd(), newEncodeCmd(), newCRCCmd(), newStatusCmd())
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// hexArgs joins the arguments into one hex string and decodes it.
func hexArgs(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return wire.ParseHex(string(b))
	}
	return wire.ParseHex(strings.Join(args, ""))
}
