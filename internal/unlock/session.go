package unlock

import (
	"sync"
	"time"

	"walletguard/go-backend/internal/keycache"
)

const (
	DefaultMaxFailedAttempts = 10
	DefaultLockoutCooldown   = 24 * time.Hour
	DefaultSessionTTL        = time.Hour
)

type stopper interface {
	Stop() bool
}

type afterFunc func(time.Duration, func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// SessionStatus is a point-in-time view of the unlock state.
type SessionStatus struct {
	FailedAttempts int       `json:"failed_attempts"`
	LockedUntil    time.Time `json:"locked_until,omitempty"`
	Cached         bool      `json:"cached"`
	CacheExpiry    time.Time `json:"cache_expiry,omitempty"`
}

// Session holds retry, lockout and cached-key state for one wallet. All fields are
// guarded by mu; key derivation never runs under it.
type Session struct {
	mu             sync.Mutex
	maxFailed      int
	cooldown       time.Duration
	ttl            time.Duration
	now            func() time.Time
	after          afterFunc
	onExpire       func()
	failedAttempts int
	lockedUntil    time.Time
	cache          *keycache.ObfuscatedKey
	cacheAddress   string
	cacheExpiry    time.Time
	timer          stopper
	generation     uint64
	closed         bool
}

func NewSession(maxFailed int, cooldown, ttl time.Duration) *Session {
	return newSessionWithClock(maxFailed, cooldown, ttl, time.Now, realAfterFunc)
}

func newSessionWithClock(maxFailed int, cooldown, ttl time.Duration, now func() time.Time, after afterFunc) *Session {
	if maxFailed <= 0 {
		maxFailed = DefaultMaxFailedAttempts
	}
	if cooldown <= 0 {
		cooldown = DefaultLockoutCooldown
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Session{
		maxFailed: maxFailed,
		cooldown:  cooldown,
		ttl:       ttl,
		now:       now,
		after:     after,
		cache:     keycache.New(),
	}
}

func (s *Session) ensureUnlocked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureUnlockedLocked()
}

func (s *Session) ensureUnlockedLocked() error {
	if s.lockedUntil.IsZero() {
		return nil
	}
	if s.now().Before(s.lockedUntil) {
		return &LockoutError{Until: s.lockedUntil}
	}
	s.lockedUntil = time.Time{}
	return nil
}

// onFailedAttempt records a wrong guess. It returns the attempts used so far, or a
// LockoutError once the threshold is reached.
func (s *Session) onFailedAttempt() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureUnlockedLocked(); err != nil {
		return 0, err
	}
	s.failedAttempts++
	if s.failedAttempts < s.maxFailed {
		return s.failedAttempts, nil
	}
	attempts := s.failedAttempts
	s.lockedUntil = s.now().Add(s.cooldown)
	s.failedAttempts = 0
	s.clearLocked()
	return attempts, &LockoutError{Until: s.lockedUntil}
}

// onSuccess resets the counter unless a concurrent attempt engaged the lockout.
func (s *Session) onSuccess() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureUnlockedLocked(); err != nil {
		return err
	}
	s.failedAttempts = 0
	return nil
}

// remember caches raw and replaces any pending expiry with a fresh one.
func (s *Session) remember(raw []byte, address string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, ErrSessionClosed
	}
	s.clearLocked()
	if err := s.cache.Store(raw); err != nil {
		return time.Time{}, err
	}
	s.generation++
	gen := s.generation
	s.cacheAddress = address
	s.cacheExpiry = s.now().Add(s.ttl)
	s.timer = s.after(s.ttl, func() { s.expire(gen) })
	return s.cacheExpiry, nil
}

// cached returns a fresh copy of the cached key when one is live.
func (s *Session) cached() ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cache.Active() {
		return nil, "", false
	}
	if !s.now().Before(s.cacheExpiry) {
		s.clearLocked()
		return nil, "", false
	}
	raw, err := s.cache.Reveal()
	if err != nil {
		return nil, "", false
	}
	return raw, s.cacheAddress, true
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.cache.Active() {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	hook := s.onExpire
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Clear drops the cached key right away.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) clearLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cache.Zeroize()
	s.cacheAddress = ""
	s.cacheExpiry = time.Time{}
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStatus{FailedAttempts: s.failedAttempts}
	if !s.lockedUntil.IsZero() && s.now().Before(s.lockedUntil) {
		st.LockedUntil = s.lockedUntil
	}
	if s.cache.Active() && s.now().Before(s.cacheExpiry) {
		st.Cached = true
		st.CacheExpiry = s.cacheExpiry
	}
	return st
}

// Close zeroizes the cache and refuses further caching.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.closed = true
}
