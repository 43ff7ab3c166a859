package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

// recv: fetch queued envelopes, decrypt them, then ack what was
// processed. A decrypt failure is reported inline and still acked so a
// poisoned envelope cannot wedge the queue.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
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

			envs, err := appCtx.Directory.FetchEnvelopes(cmd.Context(), local, limit)
			if err != nil {
				return err
			}
			for _, env := range envs {
				plaintext, err := appCtx.Messages.Decrypt(cmd.Context(), passphrase, local, env)
				switch {
				case errors.Is(err, domain.ErrIdentityBlocked):
					fmt.Printf("[%s] (blocked sender, message dropped)\n", env.From)
				case err != nil:
					fmt.Printf("[%s] decrypt failed: %v\n", env.From, err)
				default:
					fmt.Printf("[%s] %s\n", env.From, plaintext)
				}
			}
			if len(envs) > 0 {
				if err := appCtx.Directory.AckEnvelopes(cmd.Context(), local, len(envs)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max messages to fetch (0 = all)")
	return cmd
}
