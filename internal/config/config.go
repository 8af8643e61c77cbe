package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/unlock"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrivateKey      = "BSC_WALLET_PRIVATE_KEY"
	EnvAddress         = "BSC_WALLET_ADDRESS"
	EnvKeyFile         = "WALLETGUARD_KEY_FILE"
	EnvLogLevel        = "WALLETGUARD_LOG_LEVEL"
	EnvMetricsTextfile = "WALLETGUARD_METRICS_TEXTFILE"
	EnvMaxAttempts     = "WALLETGUARD_MAX_FAILED_ATTEMPTS"
	EnvSessionTTL      = "WALLETGUARD_SESSION_TTL"

	DefaultEnvFile = ".env"
)

type Config struct {
	Wallet  WalletConfig
	Unlock  unlock.Config
	Logging LoggingConfig
	Metrics MetricsConfig
}

type WalletConfig struct {
	EncryptedKey     string
	EncryptedKeyFile string
	Address          string
}

type LoggingConfig struct {
	Level string
}

type MetricsConfig struct {
	Textfile string
}

type FileConfig struct {
	Wallet  FileWalletConfig  `yaml:"wallet"`
	Unlock  FileUnlockConfig  `yaml:"unlock"`
	Logging FileLoggingConfig `yaml:"logging"`
	Metrics FileMetricsConfig `yaml:"metrics"`
}

type FileWalletConfig struct {
	EncryptedKey     string `yaml:"encryptedKey"`
	EncryptedKeyFile string `yaml:"encryptedKeyFile"`
	Address          string `yaml:"address"`
}

type FileUnlockConfig struct {
	MaxFailedAttempts int            `yaml:"maxFailedAttempts"`
	LockoutCooldown   time.Duration  `yaml:"lockoutCooldown"`
	SessionTTL        time.Duration  `yaml:"sessionTTL"`
	AttemptInterval   *time.Duration `yaml:"attemptInterval"`
	AttemptBurst      int            `yaml:"attemptBurst"`
}

type FileLoggingConfig struct {
	Level string `yaml:"level"`
}

type FileMetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func Default() Config {
	return Config{
		Unlock:  unlock.DefaultConfig(),
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the yaml file (configPath, or the first default candidate that
// exists), then the env file, then process env. Variables already set in the
// environment win over the env file.
func Load(configPath, envFile string) (Config, error) {
	cfg := Default()

	candidates := []string{"configs/walletguard.yaml", "walletguard.yaml"}
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

func Merge(dst *Config, src FileConfig) {
	if v := strings.TrimSpace(src.Wallet.EncryptedKey); v != "" {
		dst.Wallet.EncryptedKey = v
	}
	if v := strings.TrimSpace(src.Wallet.EncryptedKeyFile); v != "" {
		dst.Wallet.EncryptedKeyFile = v
	}
	if v := strings.TrimSpace(src.Wallet.Address); v != "" {
		dst.Wallet.Address = v
	}
	if src.Unlock.MaxFailedAttempts > 0 {
		dst.Unlock.MaxFailedAttempts = src.Unlock.MaxFailedAttempts
	}
	if src.Unlock.LockoutCooldown > 0 {
		dst.Unlock.LockoutCooldown = src.Unlock.LockoutCooldown
	}
	if src.Unlock.SessionTTL > 0 {
		dst.Unlock.SessionTTL = src.Unlock.SessionTTL
	}
	if src.Unlock.AttemptInterval != nil {
		dst.Unlock.AttemptInterval = *src.Unlock.AttemptInterval
	}
	if src.Unlock.AttemptBurst > 0 {
		dst.Unlock.AttemptBurst = src.Unlock.AttemptBurst
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = v
	}
	if v := strings.TrimSpace(src.Metrics.Textfile); v != "" {
		dst.Metrics.Textfile = v
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvPrivateKey)); v != "" {
		cfg.Wallet.EncryptedKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddress)); v != "" {
		cfg.Wallet.Address = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKeyFile)); v != "" {
		cfg.Wallet.EncryptedKeyFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsTextfile)); v != "" {
		cfg.Metrics.Textfile = v
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvMaxAttempts))); err == nil && n > 0 {
		cfg.Unlock.MaxFailedAttempts = n
	}
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(EnvSessionTTL))); err == nil && d > 0 {
		cfg.Unlock.SessionTTL = d
	}
}

// LoadBlob resolves the encrypted key: the inline value wins, otherwise the key
// file is read. The result is also stored in cfg.Unlock.
func (c *Config) LoadBlob() (string, error) {
	blob := strings.TrimSpace(c.Wallet.EncryptedKey)
	if blob == "" && c.Wallet.EncryptedKeyFile != "" {
		fromFile, err := securestore.ReadBlobFile(c.Wallet.EncryptedKeyFile)
		switch {
		case err == nil:
			blob = fromFile
		case errors.Is(err, os.ErrNotExist), errors.Is(err, securestore.ErrEmptyBlobFile):
		default:
			return "", err
		}
	}
	if blob == "" {
		return "", fmt.Errorf("%w: set %s or %s", unlock.ErrMissingConfig, EnvPrivateKey, EnvKeyFile)
	}
	c.Unlock.EncryptedKey = blob
	return blob, nil
}

// GateConfig returns the unlock settings with the key and address filled in.
func (c *Config) GateConfig() (unlock.Config, error) {
	if _, err := c.LoadBlob(); err != nil {
		return unlock.Config{}, err
	}
	if strings.TrimSpace(c.Wallet.Address) == "" {
		return unlock.Config{}, fmt.Errorf("%w: set %s", unlock.ErrMissingConfig, EnvAddress)
	}
	out := c.Unlock
	out.ExpectedAddress = c.Wallet.Address
	return out, nil
}
