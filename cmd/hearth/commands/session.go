package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// session <peer>: fetch the peer's bundle and run the handshake,
// persisting a ready-to-send session.
func sessionCmd() *cobra.Command {
	var destroy bool
	cmd := &cobra.Command{
		Use:   "session <peer>",
		Short: "Establish (or destroy) a secure session with a peer device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			if destroy {
				if err := appCtx.Sessions.DestroySession(peer); err != nil {
					return err
				}
				fmt.Printf("Session with %s destroyed\n", peer)
				return nil
			}

			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireDirectory(); err != nil {
				return err
			}
			bundle, err := appCtx.Directory.FetchBundle(cmd.Context(), peer)
			if err != nil {
				return err
			}
			remote, _, err := appCtx.Identity.UpsertRemoteIdentity(peer, bundle.IdentityKey, bundle.SigningKey)
			if err != nil {
				return err
			}
			sess, err := appCtx.Sessions.EstablishSession(cmd.Context(), passphrase, remote, bundle)
			if err != nil {
				return fmt.Errorf("starting session with %s: %w", peer, err)
			}
			if sess.PendingPrekey != nil {
				fmt.Printf("Session established with %s (signed prekey %s)\n", peer, sess.PendingPrekey.SignedPrekeyID)
			} else {
				fmt.Printf("Session with %s already established\n", peer)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&destroy, "destroy", false, "tear down the session instead of establishing one")
	return cmd
}
