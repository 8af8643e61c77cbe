package unlock

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"walletguard/go-backend/internal/securestore"

	"golang.org/x/crypto/bcrypt"
)

const (
	devKeyHex     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherKeyHex   = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	goodPassword  = "CorrectPass1!"
	wrongPassword = "WrongPass1!"
)

func mustBlob(t testing.TB, keyHex, password string) string {
	t.Helper()
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		t.Fatalf("decode key failed: %v", err)
	}
	blob, err := securestore.EncryptPrivateKeyWithCost(key, password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	return blob
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Fire runs the callback as a late timer would, even after Stop.
func (t *fakeTimer) Fire() {
	t.f()
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Timers() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

// scriptedPrompter replays answers in order and repeats the last one.
type scriptedPrompter struct {
	mu       sync.Mutex
	answers  []promptAnswer
	requests []PromptRequest
}

type promptAnswer struct {
	creds Credentials
	err   error
}

func answer(password string, remember bool) promptAnswer {
	return promptAnswer{creds: Credentials{Password: password, RememberForSession: remember}}
}

func cancelled() promptAnswer {
	return promptAnswer{err: ErrPromptCancelled}
}

func (p *scriptedPrompter) Prompt(_ context.Context, req PromptRequest) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.requests)
	p.requests = append(p.requests, req)
	if idx >= len(p.answers) {
		idx = len(p.answers) - 1
	}
	a := p.answers[idx]
	return a.creds, a.err
}

func (p *scriptedPrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedPrompter) Requests() []PromptRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PromptRequest(nil), p.requests...)
}

func (p *scriptedPrompter) Script(answers ...promptAnswer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = answers
	p.requests = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gateFixture struct {
	gate     *Gate
	prompter *scriptedPrompter
	clock    *fakeClock
	timers   *fakeScheduler
}

func newGateFixture(t testing.TB, blob string, opts ...Option) *gateFixture {
	t.Helper()
	clock := newFakeClock()
	timers := &fakeScheduler{}
	cfg := DefaultConfig()
	cfg.EncryptedKey = blob
	cfg.ExpectedAddress = devAddress
	cfg.AttemptInterval = 0
	session := newSessionWithClock(cfg.MaxFailedAttempts, cfg.LockoutCooldown, cfg.SessionTTL, clock.Now, timers.AfterFunc)
	prompter := &scriptedPrompter{}
	all := append([]Option{withSession(session), WithLogger(discardLogger())}, opts...)
	g := NewGate(cfg, prompter, all...)
	t.Cleanup(g.Close)
	return &gateFixture{gate: g, prompter: prompter, clock: clock, timers: timers}
}
