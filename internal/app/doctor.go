package app

import (
	"fmt"
	"strings"
	"time"

	"walletguard/go-backend/internal/config"
	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/wallet"
)

// MinRecommendedCost is the lowest bcrypt cost doctor accepts for a stored blob.
const MinRecommendedCost = 10

type DoctorCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type DoctorReport struct {
	Ready     bool          `json:"ready"`
	Checks    []DoctorCheck `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Doctor inspects the configuration without asking for the password. Nothing
// is decrypted.
func Doctor(cfg config.Config, now time.Time) DoctorReport {
	report := DoctorReport{
		Ready:     true,
		Checks:    make([]DoctorCheck, 0, 6),
		CheckedAt: now.UTC(),
	}
	appendCheck := func(name string, pass bool, reason string) {
		report.Checks = append(report.Checks, DoctorCheck{Name: name, Pass: pass, Reason: reason})
		if !pass {
			report.Ready = false
		}
	}

	addr := strings.TrimSpace(cfg.Wallet.Address)
	appendCheck("address_configured", addr != "", failReason(addr == "", "set "+config.EnvAddress))
	if addr != "" {
		valid := wallet.ValidAddress(addr)
		appendCheck("address_valid", valid, failReason(!valid, "address is not a 20-byte hex account"))
	}

	if path := strings.TrimSpace(cfg.Wallet.EncryptedKeyFile); path != "" && strings.TrimSpace(cfg.Wallet.EncryptedKey) == "" {
		private, err := securestore.FileIsPrivate(path)
		switch {
		case err != nil:
			appendCheck("key_file_private", false, err.Error())
		default:
			appendCheck("key_file_private", private, failReason(!private, fmt.Sprintf("%s is readable by group or others", path)))
		}
	}

	blob, err := cfg.LoadBlob()
	if err != nil {
		appendCheck("blob_configured", false, err.Error())
		return report
	}
	appendCheck("blob_configured", true, "")

	info, err := securestore.InspectBlob(blob)
	if err != nil {
		appendCheck("blob_layout", false, err.Error())
		return report
	}
	appendCheck("blob_layout", true, "")
	costOK := info.Cost >= MinRecommendedCost
	appendCheck("bcrypt_cost", costOK, failReason(!costOK, fmt.Sprintf("cost=%d < %d", info.Cost, MinRecommendedCost)))
	return report
}

func failReason(failed bool, reason string) string {
	if !failed {
		return ""
	}
	return reason
}
