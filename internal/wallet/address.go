package wallet

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const PrivateKeySize = 32

var (
	ErrInvalidPrivateKey = errors.New("wallet: invalid private key")
	ErrInvalidAddress    = errors.New("wallet: invalid address")
)

// NormalizePrivateKey accepts 32 raw bytes or their hex text, with or without a
// 0x prefix, and returns a fresh 32-byte slice.
func NormalizePrivateKey(b []byte) ([]byte, error) {
	if len(b) == PrivateKeySize {
		return append([]byte(nil), b...), nil
	}
	text := strings.TrimSpace(string(b))
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text) != PrivateKeySize*2 {
		return nil, ErrInvalidPrivateKey
	}
	out := make([]byte, PrivateKeySize)
	if _, err := hex.Decode(out, []byte(text)); err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return out, nil
}

// AddressFromKey derives the EIP-55 checksummed account address of a secp256k1
// private key.
func AddressFromKey(key []byte) (string, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return "", ErrInvalidPrivateKey
	}
	return crypto.PubkeyToAddress(priv.PublicKey).Hex(), nil
}

func ValidAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}

// SameAddress compares two hex addresses by value, ignoring checksum casing.
func SameAddress(a, b string) bool {
	if !ValidAddress(a) || !ValidAddress(b) {
		return false
	}
	return common.HexToAddress(strings.TrimSpace(a)) == common.HexToAddress(strings.TrimSpace(b))
}

// ChecksumAddress returns addr in EIP-55 form.
func ChecksumAddress(addr string) (string, error) {
	if !ValidAddress(addr) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(strings.TrimSpace(addr)).Hex(), nil
}
