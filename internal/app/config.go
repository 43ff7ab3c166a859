package app

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"hearth/internal/protocol/ratchet"
)

// ConfigFileName is looked up under the home directory.
const ConfigFileName = "hearth.toml"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home         string       `toml:"-"`             // config directory, e.g. $HOME/.hearth
	DirectoryURL string       `toml:"directory_url"` // prekey directory base URL
	SkipWindow   uint32       `toml:"skip_window"`   // max out-of-order messages cached per chain
	LogLevel     string       `toml:"log_level"`     // off, error, warn, info, debug, trace
	HTTP         *http.Client `toml:"-"`             // optional; defaults to http.DefaultClient
}

// DefaultConfig returns the configuration used when no file or flags
// override it.
func DefaultConfig(home string) Config {
	return Config{
		Home:       home,
		SkipWindow: ratchet.DefaultSkipWindow,
		LogLevel:   "info",
	}
}

// LoadConfig reads home/hearth.toml over the defaults. A missing file
// is not an error; a malformed one is.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	path := filepath.Join(home, ConfigFileName)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
