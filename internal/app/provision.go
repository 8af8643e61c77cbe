package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"walletguard/go-backend/internal/config"
	"walletguard/go-backend/internal/keycache"
	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/wallet"

	"github.com/joho/godotenv"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

type ProvisionInput struct {
	// PrivateKey is hex, with or without 0x.
	PrivateKey string
	Password   string
	Confirm    string
	// Cost overrides the bcrypt cost; zero uses securestore.DefaultCost.
	Cost int
}

type ProvisionResult struct {
	Blob    string `json:"-"`
	Address string `json:"address"`
	Cost    int    `json:"cost"`
}

// Provision checks the password policy and encrypts the key for storage.
func Provision(in ProvisionInput) (ProvisionResult, error) {
	if in.Password != in.Confirm {
		return ProvisionResult{}, ErrPasswordMismatch
	}
	if err := securestore.ValidatePassword(in.Password); err != nil {
		return ProvisionResult{}, err
	}
	input := []byte(strings.TrimSpace(in.PrivateKey))
	raw, err := wallet.NormalizePrivateKey(input)
	keycache.Wipe(input)
	if err != nil {
		return ProvisionResult{}, err
	}
	defer keycache.Wipe(raw)

	address, err := wallet.AddressFromKey(raw)
	if err != nil {
		return ProvisionResult{}, err
	}
	cost := in.Cost
	if cost == 0 {
		cost = securestore.DefaultCost
	}
	blob, err := securestore.EncryptPrivateKeyWithCost(raw, in.Password, cost)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("encrypt private key: %w", err)
	}
	return ProvisionResult{Blob: blob, Address: address, Cost: cost}, nil
}

// WriteEnvFile stores the blob and address in a dotenv file, keeping any other
// variables already present. The file is left readable by its owner only.
func WriteEnvFile(path string, res ProvisionResult) error {
	values := map[string]string{}
	existing, err := godotenv.Read(path)
	switch {
	case err == nil:
		values = existing
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	values[config.EnvPrivateKey] = res.Blob
	values[config.EnvAddress] = res.Address
	if err := os.Chmod(path, 0o600); err != nil {
		return err
	}
	return godotenv.Write(values, path)
}
