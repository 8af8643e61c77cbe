// Package keycache keeps an unlocked private key resident only in obfuscated form.
//
// The bytes are XOR-masked and scattered across three randomly pre-filled shards
// at permuted offsets. This raises the cost of casual memory inspection; it is not
// a defence against a privileged reader of the process.
package keycache

import (
	"crypto/rand"
	"errors"
	mrand "math/rand/v2"
	"sync"
)

const (
	shardCount = 3
	saltSize   = 32
)

var ErrInactive = errors.New("keycache: no key is stored")

type ObfuscatedKey struct {
	mu     sync.Mutex
	shards [shardCount][]byte
	salt   []byte
	perm   []int
	length int
	active bool
}

func New() *ObfuscatedKey {
	return &ObfuscatedKey{}
}

// Store replaces the cached key with b. The caller keeps ownership of b.
func (k *ObfuscatedKey) Store(b []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	perm, err := randomPermutation(len(b))
	if err != nil {
		return err
	}
	var shards [shardCount][]byte
	for s := range shards {
		shards[s] = make([]byte, len(b))
		if _, err := rand.Read(shards[s]); err != nil {
			return err
		}
	}
	for i := range b {
		shards[i%shardCount][perm[i]] = b[i] ^ salt[i%saltSize] ^ byte(i&0xFF)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.wipeLocked()
	k.shards = shards
	k.salt = salt
	k.perm = perm
	k.length = len(b)
	k.active = true
	return nil
}

// Reveal reconstructs the stored key into a fresh slice owned by the caller.
func (k *ObfuscatedKey) Reveal() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.active {
		return nil, ErrInactive
	}
	out := make([]byte, k.length)
	for i := range out {
		out[i] = k.shards[i%shardCount][k.perm[i]] ^ k.salt[i%saltSize] ^ byte(i&0xFF)
	}
	return out, nil
}

func (k *ObfuscatedKey) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// Zeroize wipes every shard, the salt and the permutation. Reveal fails afterwards.
func (k *ObfuscatedKey) Zeroize() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.wipeLocked()
}

func (k *ObfuscatedKey) wipeLocked() {
	for s := range k.shards {
		scrub(k.shards[s])
		k.shards[s] = nil
	}
	Wipe(k.salt)
	for i := range k.perm {
		k.perm[i] = 0
	}
	k.salt = nil
	k.perm = nil
	k.length = 0
	k.active = false
}

// randomPermutation returns a uniform permutation of [0, n) from a ChaCha8 stream
// seeded by crypto/rand.
func randomPermutation(n int) ([]int, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	r := mrand.New(mrand.NewChaCha8(seed))
	Wipe(seed[:])
	return r.Perm(n), nil
}
