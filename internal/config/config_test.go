package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/unlock"
)

const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

var allEnv = []string{
	EnvPrivateKey, EnvAddress, EnvKeyFile, EnvLogLevel,
	EnvMetricsTextfile, EnvMaxAttempts, EnvSessionTTL,
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv failed: %v", err)
		}
	}
}

func durPtr(d time.Duration) *time.Duration {
	return &d
}

func TestMergeOverridesOnlySetFields(t *testing.T) {
	dst := Default()
	Merge(&dst, FileConfig{
		Wallet: FileWalletConfig{Address: " " + testAddress + " "},
		Unlock: FileUnlockConfig{
			MaxFailedAttempts: 5,
			SessionTTL:        10 * time.Minute,
			AttemptInterval:   durPtr(0),
		},
		Logging: FileLoggingConfig{Level: "debug"},
	})

	if dst.Wallet.Address != testAddress {
		t.Fatalf("expected trimmed address, got %q", dst.Wallet.Address)
	}
	if dst.Unlock.MaxFailedAttempts != 5 {
		t.Fatalf("expected maxFailedAttempts=5, got %d", dst.Unlock.MaxFailedAttempts)
	}
	if dst.Unlock.SessionTTL != 10*time.Minute {
		t.Fatalf("expected sessionTTL=10m, got %s", dst.Unlock.SessionTTL)
	}
	if dst.Unlock.AttemptInterval != 0 {
		t.Fatalf("expected pacing disabled, got %s", dst.Unlock.AttemptInterval)
	}
	if dst.Unlock.LockoutCooldown != unlock.DefaultLockoutCooldown {
		t.Fatalf("unset cooldown must keep default, got %s", dst.Unlock.LockoutCooldown)
	}
	if dst.Unlock.AttemptBurst != unlock.DefaultAttemptBurst {
		t.Fatalf("unset burst must keep default, got %d", dst.Unlock.AttemptBurst)
	}
	if dst.Logging.Level != "debug" {
		t.Fatalf("expected level=debug, got %s", dst.Logging.Level)
	}
}

func TestLoadReadsYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "walletguard.yaml")
	yamlDoc := `
wallet:
  encryptedKey: from-yaml
  address: "0x0000000000000000000000000000000000000001"
unlock:
  maxFailedAttempts: 4
  lockoutCooldown: 2h
  sessionTTL: 15m
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	t.Setenv(EnvAddress, testAddress)
	t.Setenv(EnvSessionTTL, "5m")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Wallet.EncryptedKey != "from-yaml" {
		t.Fatalf("expected blob from yaml, got %q", cfg.Wallet.EncryptedKey)
	}
	if cfg.Wallet.Address != testAddress {
		t.Fatalf("env address must win, got %q", cfg.Wallet.Address)
	}
	if cfg.Unlock.MaxFailedAttempts != 4 || cfg.Unlock.LockoutCooldown != 2*time.Hour {
		t.Fatalf("unexpected unlock limits: %+v", cfg.Unlock)
	}
	if cfg.Unlock.SessionTTL != 5*time.Minute {
		t.Fatalf("env TTL must win, got %s", cfg.Unlock.SessionTTL)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected level=warn, got %s", cfg.Logging.Level)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	body := EnvPrivateKey + "=blob-from-dotenv\n" + EnvAddress + "=" + testAddress + "\n"
	if err := os.WriteFile(envFile, []byte(body), 0o600); err != nil {
		t.Fatalf("write env failed: %v", err)
	}

	if _, err := Load(filepath.Join(dir, "none.yaml"), envFile); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}

	t.Chdir(dir)
	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	gate, err := cfg.GateConfig()
	if err != nil {
		t.Fatalf("gate config failed: %v", err)
	}
	if gate.EncryptedKey != "blob-from-dotenv" || gate.ExpectedAddress != testAddress {
		t.Fatalf("unexpected gate config: %+v", gate)
	}
	if gate.MaxFailedAttempts != unlock.DefaultMaxFailedAttempts {
		t.Fatalf("expected default limits, got %d", gate.MaxFailedAttempts)
	}
}

func TestLoadBlobFromKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "keys", "wallet.key")
	if err := securestore.WriteBlobFile(keyFile, "blob-from-file"); err != nil {
		t.Fatalf("write blob failed: %v", err)
	}

	cfg := Default()
	cfg.Wallet.EncryptedKeyFile = keyFile
	cfg.Wallet.Address = testAddress
	blob, err := cfg.LoadBlob()
	if err != nil {
		t.Fatalf("load blob failed: %v", err)
	}
	if blob != "blob-from-file" || cfg.Unlock.EncryptedKey != blob {
		t.Fatalf("unexpected blob %q", blob)
	}

	cfg.Wallet.EncryptedKey = "inline"
	if blob, _ := cfg.LoadBlob(); blob != "inline" {
		t.Fatalf("inline blob must win, got %q", blob)
	}
}

func TestGateConfigMissingValues(t *testing.T) {
	cfg := Default()
	if _, err := cfg.GateConfig(); !errors.Is(err, unlock.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig without blob, got %v", err)
	}

	cfg.Wallet.EncryptedKeyFile = filepath.Join(t.TempDir(), "absent.key")
	if _, err := cfg.GateConfig(); !errors.Is(err, unlock.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig for absent key file, got %v", err)
	}

	cfg.Wallet.EncryptedKey = "blob"
	if _, err := cfg.GateConfig(); !errors.Is(err, unlock.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig without address, got %v", err)
	}
}
