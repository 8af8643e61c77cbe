package app

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"walletguard/go-backend/internal/unlock"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const sessionPromptLabel = "walletguard>"

// LineReader yields one command line per call and io.EOF when input ends.
type LineReader interface {
	ReadLine(ctx context.Context, label string) (string, error)
}

// SessionReply is written as one JSON line per command.
type SessionReply struct {
	Command   string                `json:"command"`
	OK        bool                  `json:"ok"`
	Address   string                `json:"address,omitempty"`
	Cached    bool                  `json:"cached,omitempty"`
	Signature string                `json:"signature,omitempty"`
	Status    *unlock.SessionStatus `json:"status,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Serve reads commands from in until quit, end of input or ctx ends. Every
// request goes through the same gate, so retry counters, lockout and the
// session cache carry over between commands.
//
//	unlock        unlock and report the wallet address
//	sign <digest> sign a 32-byte hex digest with the wallet key
//	lock          drop the cached key
//	status        report failed attempts, lockout and cache state
//	quit          end the session
func (r *Runtime) Serve(ctx context.Context, in LineReader, out io.Writer) error {
	enc := json.NewEncoder(out)
	for {
		line, err := in.ReadLine(ctx, sessionPromptLabel)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		r.Logger.Debug("session command", "command", cmd)
		reply := r.handle(ctx, cmd, args)
		if err := r.WriteMetrics(); err != nil {
			r.Logger.Warn("metrics textfile not written", "error", err)
		}
		if err := enc.Encode(reply); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Runtime) handle(ctx context.Context, cmd string, args []string) SessionReply {
	reply := SessionReply{Command: cmd}
	var err error
	switch cmd {
	case "unlock":
		reply.Address, err = r.unlockAddress(ctx)
		reply.Cached = r.Gate.Status().Cached
	case "sign":
		if len(args) != 1 {
			err = errors.New("usage: sign <32-byte hex digest>")
			break
		}
		reply.Address, reply.Signature, err = r.sign(ctx, args[0])
		reply.Cached = r.Gate.Status().Cached
	case "lock":
		r.Gate.Lock()
	case "status":
		st := r.Gate.Status()
		reply.Status = &st
		reply.Cached = st.Cached
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}

// unlockAddress unlocks and uses the handle once to derive the signer address.
func (r *Runtime) unlockAddress(ctx context.Context) (string, error) {
	key, err := r.Gate.Unlock(ctx)
	if err != nil {
		return "", err
	}
	var addr string
	err = key.Use(func(priv *ecdsa.PrivateKey) error {
		addr = crypto.PubkeyToAddress(priv.PublicKey).Hex()
		return nil
	})
	return addr, err
}

func (r *Runtime) sign(ctx context.Context, rawDigest string) (string, string, error) {
	if !strings.HasPrefix(rawDigest, "0x") && !strings.HasPrefix(rawDigest, "0X") {
		rawDigest = "0x" + rawDigest
	}
	digest, err := hexutil.Decode(rawDigest)
	if err != nil || len(digest) != crypto.DigestLength {
		return "", "", fmt.Errorf("digest must be %d hex-encoded bytes", crypto.DigestLength)
	}

	key, err := r.Gate.Unlock(ctx)
	if err != nil {
		return "", "", err
	}
	var sig []byte
	err = key.Use(func(priv *ecdsa.PrivateKey) error {
		var signErr error
		sig, signErr = crypto.Sign(digest, priv)
		return signErr
	})
	if err != nil {
		return "", "", err
	}
	return key.Address(), hexutil.Encode(sig), nil
}
