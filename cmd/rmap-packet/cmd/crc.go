package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func newCRCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crc <hex>...",
		Short: "Compute the RMAP CRC-8 of the given bytes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexArgs(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%02x\n", wire.CRC(data))
			return nil
		},
	}
}
