package securestore

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blowfish"
)

const (
	// SaltSize is the length of a bcrypt salt string: "$2b$12$" plus 22 salt chars.
	SaltSize = 29
	// KeySize is the length of a derived symmetric key.
	KeySize = sha256.Size

	DefaultCost = 12
	// MaxAcceptedCost bounds the cost read back from a stored salt.
	MaxAcceptedCost = 20

	maxPasswordBytes = 72
	rawSaltBytes     = 16
	hashedBytes      = 23
)

var (
	bcryptEncoding    = base64.NewEncoding("./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789").WithPadding(base64.NoPadding)
	magicCipherData   = []byte("OrpheanBeholderScryDoubt")
	supportedVersions = map[string]struct{}{"2a": {}, "2b": {}, "2y": {}}
)

// DeriveKey turns a password into a 32-byte key. With an empty salt a fresh one is
// generated at DefaultCost; otherwise the supplied 29-byte salt string is reused.
func DeriveKey(password []byte, salt string) ([]byte, string, error) {
	if salt == "" {
		return DeriveKeyWithCost(password, DefaultCost)
	}
	hash, err := bcryptWithSalt(password, salt)
	if err != nil {
		return nil, "", err
	}
	defer zeroBytes(hash)
	return digest(hash), salt, nil
}

// DeriveKeyWithCost generates a fresh bcrypt salt at cost and derives the key.
func DeriveKeyWithCost(password []byte, cost int) ([]byte, string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), cost)
	if err != nil {
		return nil, "", err
	}
	defer zeroBytes(hash)
	return digest(hash), string(hash[:SaltSize]), nil
}

func digest(hash []byte) []byte {
	sum := sha256.Sum256(hash)
	return sum[:]
}

func truncatePassword(password []byte) []byte {
	if len(password) > maxPasswordBytes {
		return password[:maxPasswordBytes]
	}
	return password
}

type parsedSalt struct {
	version string
	cost    int
	raw     []byte
}

func parseSalt(salt string) (parsedSalt, error) {
	if len(salt) != SaltSize || salt[0] != '$' || salt[3] != '$' || salt[6] != '$' {
		return parsedSalt{}, ErrInvalid
	}
	version := salt[1:3]
	if _, ok := supportedVersions[version]; !ok {
		return parsedSalt{}, ErrInvalid
	}
	cost, err := strconv.Atoi(salt[4:6])
	if err != nil || cost < bcrypt.MinCost || cost > MaxAcceptedCost {
		return parsedSalt{}, ErrInvalid
	}
	raw, err := bcryptEncoding.DecodeString(salt[7:])
	if err != nil || len(raw) != rawSaltBytes {
		return parsedSalt{}, ErrInvalid
	}
	return parsedSalt{version: version, cost: cost, raw: raw}, nil
}

// bcryptWithSalt recomputes the full 60-byte bcrypt hash string for password under
// an existing salt. x/crypto/bcrypt only hashes under fresh salts, so the
// EksBlowfish setup is driven directly through x/crypto/blowfish.
func bcryptWithSalt(password []byte, salt string) ([]byte, error) {
	ps, err := parseSalt(salt)
	if err != nil {
		return nil, err
	}
	// The trailing NUL takes part in key expansion, as in C bcrypt.
	password = truncatePassword(password)
	key := make([]byte, 0, len(password)+1)
	key = append(key, password...)
	key = append(key, 0)
	defer zeroBytes(key)

	c, err := blowfish.NewSaltedCipher(key, ps.raw)
	if err != nil {
		return nil, err
	}
	rounds := uint64(1) << uint(ps.cost)
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(key, c)
		blowfish.ExpandKey(ps.raw, c)
	}

	cipherData := append([]byte(nil), magicCipherData...)
	for i := 0; i < len(cipherData); i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(cipherData[i:i+8], cipherData[i:i+8])
		}
	}
	defer zeroBytes(cipherData)

	out := make([]byte, 0, 60)
	out = fmt.Appendf(out, "$%s$%02d$", ps.version, ps.cost)
	out = append(out, bcryptEncoding.EncodeToString(ps.raw)...)
	out = append(out, bcryptEncoding.EncodeToString(cipherData[:hashedBytes])...)
	return out, nil
}
