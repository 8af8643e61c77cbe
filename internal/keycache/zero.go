package keycache

import (
	"crypto/rand"
	"crypto/subtle"
	"runtime"
)

// Wipe overwrites b with zeros through subtle.ConstantTimeCopy so the store is not
// dropped as dead.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// scrub runs the four-pass overwrite: zeros, random bytes, 0xFF, zeros.
func scrub(b []byte) {
	if len(b) == 0 {
		return
	}
	Wipe(b)
	_, _ = rand.Read(b)
	ones := make([]byte, len(b))
	for i := range ones {
		ones[i] = 0xFF
	}
	subtle.ConstantTimeCopy(1, b, ones)
	Wipe(b)
}
