package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// lastStandardStatus is the highest status code ECSS-E-ST-50-52C assigns.
const lastStandardStatus = wire.StatusInvalidLogicalAddress

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [code]",
		Short: "Describe reply status codes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 0, 8)
				if err != nil {
					return fmt.Errorf("invalid status code %q: %w", args[0], err)
				}
				s := wire.Status(n)
				fmt.Fprintf(out, "0x%02x %s: %s\n", uint8(s), s, s.Description())
				return nil
			}
			for s := wire.StatusSuccess; s <= lastStandardStatus; s++ {
				fmt.Fprintf(out, "0x%02x %-28s %s\n", uint8(s), s, s.Description())
			}
			return nil
		},
	}
}
