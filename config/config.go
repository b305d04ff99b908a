// Package config loads the wallet backend configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/errors"

	"github.com/saif727/hedera-wallet-backend/ledger"
)

// Networks accepted by Validate. "demo" runs the in-memory ledger.
const (
	NetworkMainnet    = "mainnet"
	NetworkTestnet    = "testnet"
	NetworkPreviewnet = "previewnet"
	NetworkDemo       = "demo"
)

// Config holds application configuration
type Config struct {
	Network         string        `toml:"network"`
	MirrorURL       string        `toml:"mirror_url"`
	MirrorRateLimit float64       `toml:"mirror_rate_limit"`
	MirrorTimeout   time.Duration `toml:"mirror_timeout"`
	ListenAddr      string        `toml:"listen_addr"`
	DataDir         string        `toml:"data_dir"`
	Passphrase      string        `toml:"-"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
	LogLevel        string        `toml:"log_level"`

	// Bootstrap credentials, used when nothing is stored yet.
	AccountID  string `toml:"-"`
	PrivateKey string `toml:"-"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Network:         NetworkTestnet,
		MirrorRateLimit: 10,
		MirrorTimeout:   15 * time.Second,
		ListenAddr:      ":8080",
		DataDir:         "data",
		RefreshInterval: 30 * time.Second,
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, the optional TOML file at path
// and the environment, in that order.
func Load(path string) (Config, error) {
	config := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	config.applyEnv(os.Getenv)
	return config, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Network, "HEDERA_NETWORK")
	set(&c.MirrorURL, "HEDERA_MIRROR_URL")
	set(&c.ListenAddr, "WALLET_LISTEN_ADDR")
	set(&c.DataDir, "WALLET_DATA_DIR")
	set(&c.Passphrase, "WALLET_PASSPHRASE")
	set(&c.AccountID, "HEDERA_ACCOUNT_ID")
	set(&c.PrivateKey, "HEDERA_PRIVATE_KEY")
	set(&c.LogLevel, "LOG_LEVEL")
}

// Validate checks the configuration and fills in the mirror node URL
func (c *Config) Validate() error {
	switch c.Network {
	case NetworkMainnet, NetworkTestnet, NetworkPreviewnet:
		if c.MirrorURL == "" {
			c.MirrorURL, _ = ledger.DefaultMirrorURL(c.Network)
		}
	case NetworkDemo:
	default:
		return errors.Errorf("unknown network %q", c.Network)
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.DataDir == "" {
		return errors.New("data directory is required")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.MirrorRateLimit <= 0 {
		return errors.New("mirror rate limit must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if (c.AccountID == "") != (c.PrivateKey == "") {
		return errors.New("HEDERA_ACCOUNT_ID and HEDERA_PRIVATE_KEY must be set together")
	}
	return nil
}

// CredentialsPath is where the credential database lives
func (c Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials")
}
