package unlock

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	firstPromptMessage = "Enter your Wallet Password:"
	retryPromptMessage = "Wrong password, please try again:"
	rememberQuestion   = "You will stay signed in for the next hour. Continue signed in? [y/N]:"
)

type PromptRequest struct {
	Retry   bool
	Message string
	// Remaining is the number of wrong guesses left before lockout.
	Remaining int
}

type Credentials struct {
	Password           string
	RememberForSession bool
}

// Prompter asks the user for the wallet password. It returns ErrPromptCancelled
// when the user aborts.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (Credentials, error)
}

type PromptFunc func(ctx context.Context, req PromptRequest) (Credentials, error)

func (f PromptFunc) Prompt(ctx context.Context, req PromptRequest) (Credentials, error) {
	return f(ctx, req)
}

// TerminalPrompter reads the password without echo when In is a terminal and
// falls back to plain line reads otherwise. At most one read on In is in
// flight; a read left behind by a cancelled call hands its answer to the next
// call.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
	// SkipRemember leaves out the stay-signed-in question.
	SkipRemember bool

	once    sync.Once
	turn    chan struct{}
	pending chan promptResult
	reader  *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

type promptResult struct {
	creds Credentials
	err   error
}

// Prompt blocks on the terminal. If ctx ends first the prompt is reported as
// cancelled and the read stays pending for the next call.
func (p *TerminalPrompter) Prompt(ctx context.Context, req PromptRequest) (Credentials, error) {
	res := p.await(ctx, func() promptResult {
		creds, err := p.read(req)
		return promptResult{creds: creds, err: err}
	})
	return res.creds, res.err
}

// ReadSecret prints label and reads one line without echo.
func (p *TerminalPrompter) ReadSecret(ctx context.Context, label string) (string, error) {
	res := p.await(ctx, func() promptResult {
		if _, err := fmt.Fprint(p.Out, label+" "); err != nil {
			return promptResult{err: err}
		}
		secret, err := p.readSecret()
		return promptResult{creds: Credentials{Password: secret}, err: err}
	})
	return res.creds.Password, res.err
}

// ReadLine prints label and reads one visible line. io.EOF is returned once
// the input is exhausted.
func (p *TerminalPrompter) ReadLine(ctx context.Context, label string) (string, error) {
	res := p.await(ctx, func() promptResult {
		if label != "" {
			if _, err := fmt.Fprint(p.Out, label+" "); err != nil {
				return promptResult{err: err}
			}
		}
		line, err := p.readLine()
		return promptResult{creds: Credentials{Password: line}, err: err}
	})
	return res.creds.Password, res.err
}

// await runs read in the background unless an earlier read is still pending,
// in which case it waits for that one instead.
func (p *TerminalPrompter) await(ctx context.Context, read func() promptResult) promptResult {
	p.once.Do(func() { p.turn = make(chan struct{}, 1) })
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return promptResult{err: errors.Join(ErrPromptCancelled, ctx.Err())}
	}
	defer func() { <-p.turn }()

	if p.pending == nil {
		ch := make(chan promptResult, 1)
		go func() { ch <- read() }()
		p.pending = ch
	}
	select {
	case <-ctx.Done():
		return promptResult{err: errors.Join(ErrPromptCancelled, ctx.Err())}
	case res := <-p.pending:
		p.pending = nil
		return res
	}
}

func (p *TerminalPrompter) read(req PromptRequest) (Credentials, error) {
	msg := req.Message
	if msg == "" {
		msg = firstPromptMessage
	}
	if req.Retry && req.Remaining > 0 {
		msg = fmt.Sprintf("%s (%d attempts left)", msg, req.Remaining)
	}
	if _, err := fmt.Fprint(p.Out, msg+" "); err != nil {
		return Credentials{}, err
	}
	password, err := p.readSecret()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Credentials{}, ErrPromptCancelled
		}
		return Credentials{}, err
	}
	if p.SkipRemember {
		return Credentials{Password: password}, nil
	}
	if _, err := fmt.Fprint(p.Out, rememberQuestion+" "); err != nil {
		return Credentials{}, err
	}
	answer, err := p.readLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return Credentials{}, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return Credentials{
		Password:           password,
		RememberForSession: answer == "y" || answer == "yes",
	}, nil
}

func (p *TerminalPrompter) readSecret() (string, error) {
	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.readLine()
}

func (p *TerminalPrompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
