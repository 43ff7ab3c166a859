package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	var opkCount int
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireDirectory(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}

			// Rotates the signed prekey and mints a fresh batch of
			// one-time prekeys.
			bundle, err := appCtx.Prekeys.GenerateAndStore(passphrase, local, opkCount)
			if err != nil {
				return err
			}
			if err := appCtx.Directory.Register(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Printf("Published bundle for %s (%d one-time prekeys)\n", local, len(bundle.OneTimePrekeys))
			return nil
		},
	}
	cmd.Flags().IntVar(&opkCount, "opk-count", 10, "number of one-time prekeys to publish")
	return cmd
}
