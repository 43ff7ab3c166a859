package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

// fingerprint [peer]: with no argument print the local fingerprint;
// with a peer print both halves plus the combined safety number.
func fingerprintCmd() *cobra.Command {
	var qrOut string
	cmd := &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print identity fingerprints for comparison",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}
			localFP, err := appCtx.Verify.LocalFingerprint(passphrase, local.UserID)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Printf("Fingerprint: %s\n", localFP)
				return nil
			}

			peer, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			remote, ok, err := appCtx.Identity.GetRemoteIdentity(peer)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no identity known for %s: %w", peer, domain.ErrUnknownIdentity)
			}
			remoteFP := appCtx.Verify.ComputeFingerprint(peer.UserID, remote.PublicKey)

			fmt.Printf("You:      %s\n", localFP)
			fmt.Printf("%s: %s\n", peer, remoteFP)
			fmt.Printf("Combined: %s\n", appCtx.Verify.CombinedFingerprint(localFP, remoteFP))

			if qrOut != "" {
				png, err := appCtx.Verify.QRCodePNG(localFP, remoteFP)
				if err != nil {
					return err
				}
				if err := os.WriteFile(qrOut, png, 0o600); err != nil {
					return err
				}
				fmt.Printf("QR code written to %s\n", qrOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&qrOut, "qr", "", "also write a QR code PNG to this path")
	return cmd
}
