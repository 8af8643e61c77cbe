package wallet

import (
	"crypto/ecdsa"
	"errors"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyConsumed = errors.New("wallet: key handle already used")

// Key is a one-shot handle to an unlocked private key. The key bytes live in a
// memguard buffer until the first Use or Destroy.
type Key struct {
	mu      sync.Mutex
	buf     *memguard.LockedBuffer
	address string
}

// NewKey moves raw into guarded memory. raw is wiped.
func NewKey(raw []byte, address string) *Key {
	return &Key{
		buf:     memguard.NewBufferFromBytes(raw),
		address: address,
	}
}

func (k *Key) Address() string {
	return k.address
}

// Use hands the private key to fn and destroys it when fn returns.
func (k *Key) Use(fn func(*ecdsa.PrivateKey) error) error {
	return k.UseBytes(func(raw []byte) error {
		priv, err := crypto.ToECDSA(raw)
		if err != nil {
			return ErrInvalidPrivateKey
		}
		defer func() {
			clear(priv.D.Bits())
			priv.D.SetInt64(0)
		}()
		return fn(priv)
	})
}

// UseBytes hands the raw key bytes to fn. fn must not retain the slice.
func (k *Key) UseBytes(fn func([]byte) error) error {
	buf := k.take()
	if buf == nil {
		return ErrKeyConsumed
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Destroy wipes the key without using it. Safe to call more than once.
func (k *Key) Destroy() {
	if buf := k.take(); buf != nil {
		buf.Destroy()
	}
}

func (k *Key) take() *memguard.LockedBuffer {
	k.mu.Lock()
	defer k.mu.Unlock()
	buf := k.buf
	k.buf = nil
	return buf
}
