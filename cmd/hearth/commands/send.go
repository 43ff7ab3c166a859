package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

// send <peer>... <message>: encrypt and queue a message for each peer
// device. Multiple peers get pairwise envelopes via the fanout
// coordinator.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> [peer...] <message>",
		Short: "Encrypt and send a message to one or more peers",
		Args:  cobra.MinimumNArgs(2),
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

			peers := make([]domain.Address, len(args)-1)
			for i, a := range args[:len(args)-1] {
				if peers[i], err = parseAddress(a); err != nil {
					return err
				}
			}
			plaintext := []byte(args[len(args)-1])

			envs, err := appCtx.Fanout.EncryptForAll(cmd.Context(), passphrase, local, peers, plaintext)
			if err != nil {
				return err
			}
			for _, env := range envs {
				if err := appCtx.Directory.SendEnvelope(cmd.Context(), env); err != nil {
					return err
				}
			}
			fmt.Printf("sent to %d device(s)\n", len(envs))
			return nil
		},
	}
}
