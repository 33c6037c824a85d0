package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode a command or reply packet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexArgs(cmd, args)
			if err != nil {
				return err
			}
			p, err := wire.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %d bytes: %w", len(data), err)
			}
			fmt.Fprint(cmd.OutOrStdout(), wire.Dump(p))
			return nil
		},
	}
}
