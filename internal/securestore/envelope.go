package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const (
	NonceSize = 12
	TagSize   = 16
	// HeaderSize is the minimum decoded blob length: salt, nonce and tag.
	HeaderSize = SaltSize + NonceSize + TagSize
)

var (
	// ErrDecryptFailed covers every decrypt failure: wrong password, tampering,
	// bad encoding or a short blob.
	ErrDecryptFailed = errors.New("securestore: unable to decrypt private key")
	// ErrMalformedBlob is reported by InspectBlob only.
	ErrMalformedBlob = errors.New("securestore: encrypted key blob is malformed")
	ErrInvalid       = errors.New("securestore: invalid key derivation salt")
)

// BlobInfo describes the public layout of an encrypted key blob.
type BlobInfo struct {
	SaltVersion   string `json:"salt_version"`
	Cost          int    `json:"cost"`
	CiphertextLen int    `json:"ciphertext_len"`
}

func EncryptPrivateKey(key []byte, password string) (string, error) {
	return EncryptPrivateKeyWithCost(key, password, DefaultCost)
}

func EncryptPrivateKeyWithCost(key []byte, password string, cost int) (string, error) {
	pw := []byte(password)
	defer zeroBytes(pw)
	dk, salt, err := DeriveKeyWithCost(pw, cost)
	if err != nil {
		return "", err
	}
	defer zeroBytes(dk)

	aead, err := newAEAD(dk)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, nonce, key, nil)
	ctLen := len(sealed) - TagSize

	out := make([]byte, 0, HeaderSize+ctLen)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptPrivateKey returns the key bytes sealed in blob. Every failure is reported
// as ErrDecryptFailed so callers cannot tell a wrong password from a damaged blob.
func DecryptPrivateKey(blob, password string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(data) < HeaderSize {
		return nil, ErrDecryptFailed
	}
	salt := string(data[:SaltSize])
	nonce := data[SaltSize : SaltSize+NonceSize]
	tag := data[SaltSize+NonceSize : HeaderSize]
	ciphertext := data[HeaderSize:]

	pw := []byte(password)
	defer zeroBytes(pw)
	dk, _, err := DeriveKey(pw, salt)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	defer zeroBytes(dk)

	aead, err := newAEAD(dk)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// InspectBlob validates the blob layout without a password.
func InspectBlob(blob string) (BlobInfo, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(data) < HeaderSize {
		return BlobInfo{}, ErrMalformedBlob
	}
	ps, err := parseSalt(string(data[:SaltSize]))
	if err != nil {
		return BlobInfo{}, ErrMalformedBlob
	}
	return BlobInfo{
		SaltVersion:   ps.version,
		Cost:          ps.cost,
		CiphertextLen: len(data) - HeaderSize,
	}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
