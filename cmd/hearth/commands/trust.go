package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

// trust <peer> [action]: show or change a peer's trust state. Actions:
// accept (trust a changed key), block, unblock.
func trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <peer> [show|accept|block|unblock]",
		Short: "Inspect or resolve a peer's trust state",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			action := "show"
			if len(args) == 2 {
				action = args[1]
			}

			switch action {
			case "show":
				state, err := appCtx.Verify.GetTrustState(peer)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", peer, state)
				return nil
			case "accept":
				if err := appCtx.Verify.ResolveKeyChange(peer, domain.TrustNewKey); err != nil {
					return err
				}
				fmt.Printf("%s: new key accepted, verification reset\n", peer)
				return nil
			case "block":
				if err := appCtx.Verify.ResolveKeyChange(peer, domain.Block); err != nil {
					return err
				}
				fmt.Printf("%s blocked\n", peer)
				return nil
			case "unblock":
				if err := appCtx.Verify.Unblock(peer); err != nil {
					return err
				}
				fmt.Printf("%s unblocked\n", peer)
				return nil
			default:
				return fmt.Errorf("unknown action %q", action)
			}
		},
	}
}
