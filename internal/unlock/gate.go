// Package unlock turns the encrypted wallet key into a one-shot signing handle.
//
// A Gate prompts for the password, decrypts the stored blob, checks the derived
// address against the configured one and counts wrong guesses. Reaching the
// attempt threshold locks every caller out for the cooldown window, even with
// the right password. On request the unlocked key is kept in an obfuscated cache
// for a fixed TTL.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"walletguard/go-backend/internal/keycache"
	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/wallet"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultAttemptInterval = time.Second
	DefaultAttemptBurst    = 3
)

// AddressFunc derives the account address for raw private key bytes.
type AddressFunc func(key []byte) (string, error)

type Config struct {
	EncryptedKey      string
	ExpectedAddress   string
	MaxFailedAttempts int
	LockoutCooldown   time.Duration
	SessionTTL        time.Duration
	// AttemptInterval spaces out prompts; zero or negative disables pacing.
	AttemptInterval time.Duration
	AttemptBurst    int
}

// DefaultConfig returns the production limits with no key configured.
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		LockoutCooldown:   DefaultLockoutCooldown,
		SessionTTL:        DefaultSessionTTL,
		AttemptInterval:   DefaultAttemptInterval,
		AttemptBurst:      DefaultAttemptBurst,
	}
}

type Gate struct {
	cfg      Config
	prompter Prompter
	address  AddressFunc
	session  *Session
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithAddressFunc(f AddressFunc) Option {
	return func(g *Gate) {
		if f != nil {
			g.address = f
		}
	}
}

// withSession swaps in a session built with a test clock.
func withSession(s *Session) Option {
	return func(g *Gate) { g.session = s }
}

func NewGate(cfg Config, prompter Prompter, opts ...Option) *Gate {
	cfg.EncryptedKey = strings.TrimSpace(cfg.EncryptedKey)
	cfg.ExpectedAddress = strings.TrimSpace(cfg.ExpectedAddress)
	limit := rate.Inf
	if cfg.AttemptInterval > 0 {
		limit = rate.Every(cfg.AttemptInterval)
	}
	burst := cfg.AttemptBurst
	if burst <= 0 {
		burst = 1
	}
	g := &Gate{
		cfg:      cfg,
		prompter: prompter,
		address:  wallet.AddressFromKey,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.session == nil {
		g.session = NewSession(cfg.MaxFailedAttempts, cfg.LockoutCooldown, cfg.SessionTTL)
	}
	g.logger = g.logger.With("component", "unlock", "session_id", uuid.NewString())
	g.session.onExpire = func() {
		g.metrics.setCached(false)
		g.logger.Info("cached wallet key expired")
	}
	return g
}

// Unlock returns a one-shot handle to the wallet key. A live session cache is
// served without prompting; otherwise the user is prompted until the password
// is right, the prompt is cancelled, or the lockout engages.
func (g *Gate) Unlock(ctx context.Context) (*wallet.Key, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}
	if err := g.session.ensureUnlocked(); err != nil {
		g.metrics.observe(resultLockedOut)
		return nil, err
	}
	if raw, addr, ok := g.session.cached(); ok {
		g.metrics.observe(resultCacheHit)
		return wallet.NewKey(raw, addr), nil
	}

	req := PromptRequest{Message: firstPromptMessage}
	for {
		if err := g.session.ensureUnlocked(); err != nil {
			g.metrics.observe(resultLockedOut)
			return nil, err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			g.metrics.observe(resultCancelled)
			return nil, errors.Join(ErrPromptCancelled, err)
		}
		creds, err := g.prompter.Prompt(ctx, req)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, ErrPromptCancelled) {
				err = errors.Join(ErrPromptCancelled, err)
			}
			if errors.Is(err, ErrPromptCancelled) {
				g.metrics.observe(resultCancelled)
				g.logger.Info("unlock prompt cancelled")
				return nil, err
			}
			return nil, fmt.Errorf("prompt for wallet password: %w", err)
		}

		raw, addr, err := g.verify(creds.Password)
		creds.Password = ""
		if err != nil {
			if !countsAsFailedAttempt(err) {
				return nil, err
			}
			g.metrics.observe(failureResult(err))
			attempts, lockErr := g.session.onFailedAttempt()
			if lockErr != nil {
				if attempts > 0 {
					g.metrics.lockout()
					g.metrics.setCached(false)
					g.logger.Warn("wallet locked after repeated wrong passwords", "attempts", attempts, "locked_until", lockoutUntil(lockErr))
				}
				return nil, lockErr
			}
			g.logger.Warn("wallet unlock attempt failed", "attempts", attempts)
			req = PromptRequest{
				Retry:     true,
				Message:   retryPromptMessage,
				Remaining: g.session.maxFailed - attempts,
			}
			continue
		}

		if err := g.session.onSuccess(); err != nil {
			keycache.Wipe(raw)
			g.metrics.observe(resultLockedOut)
			return nil, err
		}
		g.metrics.observe(resultSuccess)
		if creds.RememberForSession {
			expiry, err := g.session.remember(raw, addr)
			if err != nil {
				g.logger.Warn("wallet key not cached", "error", err)
			} else {
				g.metrics.setCached(true)
				g.logger.Info("wallet unlocked", "cached", true, "cache_expiry", expiry)
			}
		} else {
			g.logger.Info("wallet unlocked", "cached", false)
		}
		return wallet.NewKey(raw, addr), nil
	}
}

func (g *Gate) checkConfig() error {
	if g.cfg.EncryptedKey == "" || g.cfg.ExpectedAddress == "" {
		return ErrMissingConfig
	}
	if !wallet.ValidAddress(g.cfg.ExpectedAddress) {
		return fmt.Errorf("%w: expected address is not a hex account address", ErrMissingConfig)
	}
	return nil
}

// verify decrypts the blob and checks the account. Decrypt problems of any kind
// come back as ErrDecryptFailed.
func (g *Gate) verify(password string) ([]byte, string, error) {
	plain, err := securestore.DecryptPrivateKey(g.cfg.EncryptedKey, password)
	if err != nil {
		return nil, "", ErrDecryptFailed
	}
	raw, err := wallet.NormalizePrivateKey(plain)
	keycache.Wipe(plain)
	if err != nil {
		return nil, "", ErrDecryptFailed
	}
	addr, err := g.address(raw)
	if err != nil || !wallet.SameAddress(addr, g.cfg.ExpectedAddress) {
		keycache.Wipe(raw)
		return nil, "", ErrAddressMismatch
	}
	return raw, addr, nil
}

// Lock drops any cached key immediately.
func (g *Gate) Lock() {
	g.session.Clear()
	g.metrics.setCached(false)
	g.logger.Info("cached wallet key cleared")
}

func (g *Gate) Status() SessionStatus {
	return g.session.Status()
}

// Close tears down the session; the gate must not be used afterwards.
func (g *Gate) Close() {
	g.session.Close()
	g.metrics.setCached(false)
}

func failureResult(err error) string {
	if errors.Is(err, ErrAddressMismatch) {
		return resultAddressMismatch
	}
	return resultDecryptFailed
}

func lockoutUntil(err error) time.Time {
	var le *LockoutError
	if errors.As(err, &le) {
		return le.Until
	}
	return time.Time{}
}
