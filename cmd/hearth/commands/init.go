package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}
			id, err := appCtx.Identity.GetOrCreateLocalIdentity(passphrase)
			if err != nil {
				return err
			}
			fp := appCtx.Verify.ComputeFingerprint(local.UserID, id.PublicKey)
			fmt.Printf("Identity ready for %s.\nFingerprint: %s\n", local, fp)
			return nil
		},
	}
}
