package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

// verify <peer> <fingerprint...>: compare the peer's stored key against
// the fingerprint they read out, and mark them verified on a match.
// The fingerprint may be passed as one quoted string or as the
// individual groups.
func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <peer> <fingerprint...>",
		Short: "Compare fingerprints and mark a peer verified",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}
			peer, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			expected := domain.Fingerprint(strings.ToUpper(strings.Join(args[1:], " ")))

			remote, ok, err := appCtx.Identity.GetRemoteIdentity(peer)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no identity known for %s: %w", peer, domain.ErrUnknownIdentity)
			}

			localFP, err := appCtx.Verify.LocalFingerprint(passphrase, local.UserID)
			if err != nil {
				return err
			}
			remoteFP := appCtx.Verify.ComputeFingerprint(peer.UserID, remote.PublicKey)

			if appCtx.Verify.VerifyByComparison(localFP, remoteFP, expected) != domain.VerificationMatch {
				fmt.Printf("MISMATCH for %s.\nExpected: %s\nStored:   %s\nDo not trust this key.\n", peer, expected, remoteFP)
				return fmt.Errorf("fingerprint mismatch for %s", peer)
			}
			if err := appCtx.Verify.MarkVerified(peer); err != nil {
				return err
			}
			fmt.Printf("%s verified\n", peer)
			return nil
		},
	}
}
