package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hearth/internal/app"
	"hearth/internal/domain"
)

var (
	home       string
	passphrase string
	dirURL     string
	logLevel   string
	user       string
	device     uint32

	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:          "hearth",
		Short:        "End-to-end encrypted messaging CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".hearth")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			if dirURL != "" {
				cfg.DirectoryURL = dirURL
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			appCtx, err = app.New(cfg, os.Stderr)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx != nil {
				return appCtx.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.hearth)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local identity")
	root.PersistentFlags().StringVar(&dirURL, "directory", "", "prekey directory base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (off, error, warn, info, debug, trace)")
	root.PersistentFlags().StringVar(&user, "user", "", "your user ID")
	root.PersistentFlags().Uint32Var(&device, "device", 1, "your device ID")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		sessionCmd(),
		sendCmd(),
		recvCmd(),
		verifyCmd(),
		trustCmd(),
		attachCmd(),
	)
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

func localAddress() (domain.Address, error) {
	if user == "" {
		return domain.Address{}, fmt.Errorf("--user required")
	}
	return domain.Address{UserID: domain.UserID(user), DeviceID: domain.DeviceID(device)}, nil
}

// parseAddress accepts "user" or "user/device"; a bare user defaults to
// device 1.
func parseAddress(s string) (domain.Address, error) {
	name, dev := s, uint64(1)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		var err error
		dev, err = strconv.ParseUint(s[i+1:], 10, 32)
		if err != nil {
			return domain.Address{}, fmt.Errorf("bad device in %q: %w", s, err)
		}
		name = s[:i]
	}
	if name == "" {
		return domain.Address{}, fmt.Errorf("empty user in %q", s)
	}
	return domain.Address{UserID: domain.UserID(name), DeviceID: domain.DeviceID(dev)}, nil
}

func requireDirectory() error {
	if appCtx.Directory == nil {
		return fmt.Errorf("no directory configured. use --directory or set directory_url in %s", app.ConfigFileName)
	}
	return nil
}
