package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hearth/internal/domain"
)

func attachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Encrypt or decrypt a file attachment",
	}
	cmd.AddCommand(attachEncryptCmd(), attachDecryptCmd())
	return cmd
}

// attach encrypt <file> --to peer...: encrypt a file once and wrap its
// content key for every recipient. The ciphertext goes to --out and the
// wrapped keys to --keys as JSON; send the relevant key to each peer
// alongside the blob.
func attachEncryptCmd() *cobra.Command {
	var out, keysOut, mimeType string
	var to []string
	cmd := &cobra.Command{
		Use:   "encrypt <file>",
		Short: "Encrypt a file for a set of recipients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}
			recipients := make([]domain.Address, len(to))
			for i, a := range to {
				if recipients[i], err = parseAddress(a); err != nil {
					return err
				}
			}

			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			if out == "" {
				out = args[0] + ".enc"
			}
			dst, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer dst.Close()

			wrapped, err := appCtx.Media.EncryptAttachment(cmd.Context(), passphrase, dst, src, mimeType, local, recipients)
			if err != nil {
				return err
			}
			if err := dst.Close(); err != nil {
				return err
			}

			blob, err := json.MarshalIndent(wrapped, "", "  ")
			if err != nil {
				return err
			}
			if keysOut == "" {
				keysOut = out + ".keys"
			}
			if err := os.WriteFile(keysOut, blob, 0o600); err != nil {
				return err
			}
			fmt.Printf("Encrypted %s -> %s (%d wrapped keys in %s)\n", args[0], out, len(wrapped), keysOut)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient device addresses")
	cmd.Flags().StringVar(&out, "out", "", "ciphertext output path (default <file>.enc)")
	cmd.Flags().StringVar(&keysOut, "keys", "", "wrapped-keys output path (default <out>.keys)")
	cmd.Flags().StringVar(&mimeType, "mime", "application/octet-stream", "attachment MIME type")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// attach decrypt <file> --keys keys.json: unwrap our key, verify the
// ciphertext digest and write the plaintext. Nothing is written on an
// integrity failure.
func attachDecryptCmd() *cobra.Command {
	var out, keysIn string
	cmd := &cobra.Command{
		Use:   "decrypt <file>",
		Short: "Decrypt a received attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			local, err := localAddress()
			if err != nil {
				return err
			}

			blob, err := os.ReadFile(keysIn)
			if err != nil {
				return err
			}
			var wrapped []domain.WrappedMediaKey
			if err := json.Unmarshal(blob, &wrapped); err != nil {
				return err
			}
			var mine *domain.WrappedMediaKey
			for i := range wrapped {
				if wrapped[i].Recipient == local {
					mine = &wrapped[i]
					break
				}
			}
			if mine == nil {
				return fmt.Errorf("no wrapped key for %s in %s", local, keysIn)
			}

			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer dst.Close()

			if err := appCtx.Media.DecryptAttachment(cmd.Context(), passphrase, dst, src, local, *mine); err != nil {
				return err
			}
			fmt.Printf("Decrypted %s -> %s\n", args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVar(&keysIn, "keys", "", "wrapped-keys JSON path")
	cmd.Flags().StringVar(&out, "out", "", "plaintext output path")
	_ = cmd.MarkFlagRequired("keys")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
