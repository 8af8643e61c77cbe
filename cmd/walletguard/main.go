package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"walletguard/go-backend/internal/app"
	"walletguard/go-backend/internal/config"
	"walletguard/go-backend/internal/securestore"
	"walletguard/go-backend/internal/unlock"
	"walletguard/go-backend/internal/wallet"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

const (
	exitOK           = 0
	exitInvalidInput = 10
	exitConfig       = 20
	exitUnlockFailed = 30
	exitLockedOut    = 40
	exitCancelled    = 50
	exitNotReady     = 60
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	restore := saveTerminal()

	var code int
	switch os.Args[1] {
	case "init":
		code = runInit(ctx, os.Args[2:])
	case "unlock":
		code = runUnlock(ctx, os.Args[2:])
	case "session":
		code = runSession(ctx, os.Args[2:])
	case "address":
		code = runAddress(os.Args[2:])
	case "doctor":
		code = runDoctor(os.Args[2:])
	case "version", "--version":
		writeStdoutf("walletguard version=%s commit=%s build_date=%s\n", version, commit, buildDate)
	default:
		printUsage()
		code = exitInvalidInput
	}

	restore()
	stop()
	memguard.Purge()
	os.Exit(code)
}

func runInit(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file to write the encrypted key and address to")
	keyFile := fs.String("key-file", "", "write the encrypted key to this file instead of the env file")
	cost := fs.Int("cost", securestore.DefaultCost, "bcrypt cost for the key derivation")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	if *cost < app.MinRecommendedCost || *cost > securestore.MaxAcceptedCost {
		writeStderrln(fmt.Sprintf("cost must be in [%d..%d]", app.MinRecommendedCost, securestore.MaxAcceptedCost))
		return exitInvalidInput
	}

	tp := unlock.NewTerminalPrompter()
	in, err := readProvisionInput(ctx, tp)
	if err != nil {
		writeStderrln(err.Error())
		return exitCancelled
	}
	in.Cost = *cost
	res, err := app.Provision(in)
	in.PrivateKey, in.Password, in.Confirm = "", "", ""
	if err != nil {
		writeStderrln(err.Error())
		return exitInvalidInput
	}

	out := map[string]any{
		"address": res.Address,
		"cost":    res.Cost,
	}
	if *keyFile != "" {
		if err := securestore.WriteBlobFile(*keyFile, res.Blob); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
		out["key_file"] = *keyFile
		writeStderrln(fmt.Sprintf("set %s=%s and %s=%s", config.EnvKeyFile, *keyFile, config.EnvAddress, res.Address))
	} else {
		if err := app.WriteEnvFile(*envFile, res); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
		out["env_file"] = *envFile
	}

	if *asJSON {
		if err := printJSON(out); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
	} else {
		writeStdoutf("wallet key encrypted for %s\n", res.Address)
	}
	return exitOK
}

// readProvisionInput reads the key and the password twice on the terminal.
func readProvisionInput(ctx context.Context, tp *unlock.TerminalPrompter) (app.ProvisionInput, error) {
	var in app.ProvisionInput
	var err error
	if in.PrivateKey, err = tp.ReadSecret(ctx, "Private key (hex):"); err != nil {
		return app.ProvisionInput{}, err
	}
	if in.Password, err = tp.ReadSecret(ctx, "New wallet password:"); err != nil {
		return app.ProvisionInput{}, err
	}
	if in.Confirm, err = tp.ReadSecret(ctx, "Repeat wallet password:"); err != nil {
		return app.ProvisionInput{}, err
	}
	return in, nil
}

func runUnlock(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("unlock", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to walletguard.yaml (optional)")
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file to load")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	// One-shot runs never cache the key; see the session command.
	tp := unlock.NewTerminalPrompter()
	tp.SkipRemember = true
	rt, err := app.NewRuntime(cfg, tp, nil)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	defer rt.Close()
	defer func() {
		if err := rt.WriteMetrics(); err != nil {
			rt.Logger.Warn("metrics textfile not written", "error", err)
		}
	}()

	key, err := rt.Gate.Unlock(ctx)
	if err != nil {
		writeStderrln(err.Error())
		return unlockExitCode(err)
	}
	defer key.Destroy()

	out := map[string]any{
		"address":  key.Address(),
		"unlocked": true,
	}
	if *asJSON {
		if err := printJSON(out); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
		return exitOK
	}
	writeStdoutf("unlocked %s\n", key.Address())
	return exitOK
}

func runSession(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to walletguard.yaml (optional)")
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file to load")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	tp := unlock.NewTerminalPrompter()
	rt, err := app.NewRuntime(cfg, tp, nil)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	defer rt.Close()

	if err := rt.Serve(ctx, tp, os.Stdout); err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	return exitOK
}

func unlockExitCode(err error) int {
	switch {
	case errors.Is(err, unlock.ErrLockedOut):
		return exitLockedOut
	case errors.Is(err, unlock.ErrPromptCancelled):
		return exitCancelled
	case errors.Is(err, unlock.ErrMissingConfig):
		return exitConfig
	default:
		return exitUnlockFailed
	}
}

func runAddress(args []string) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to walletguard.yaml (optional)")
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file to load")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	addr, err := wallet.ChecksumAddress(cfg.Wallet.Address)
	if err != nil {
		writeStderrln(fmt.Sprintf("%s: %v", config.EnvAddress, err))
		return exitConfig
	}
	out := map[string]any{"address": addr}
	if blob, err := cfg.LoadBlob(); err == nil {
		if info, err := securestore.InspectBlob(blob); err == nil {
			out["blob"] = info
		} else {
			out["blob_error"] = err.Error()
		}
	}

	if *asJSON {
		if err := printJSON(out); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
		return exitOK
	}
	writeStdoutln(addr)
	return exitOK
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to walletguard.yaml (optional)")
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file to load")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		writeStderrln(err.Error())
		return exitConfig
	}
	report := app.Doctor(cfg, time.Now())
	if *asJSON {
		if err := printJSON(report); err != nil {
			writeStderrln(err.Error())
			return exitConfig
		}
	} else {
		writeStdoutf("ready=%v checks=%d\n", report.Ready, len(report.Checks))
		for _, c := range report.Checks {
			if c.Pass {
				writeStdoutf("[PASS] %s\n", c.Name)
			} else {
				writeStdoutf("[FAIL] %s: %s\n", c.Name, c.Reason)
			}
		}
	}
	if report.Ready {
		return exitOK
	}
	return exitNotReady
}

// saveTerminal returns a func restoring stdin's terminal mode, for the case
// where a hidden read is abandoned on interrupt.
func saveTerminal() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, state) }
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	writeStdoutln("walletguard <command> [flags]")
	writeStdoutln("commands:")
	writeStdoutln("  init     [--env-file path | --key-file path] [--cost n] [--json]")
	writeStdoutln("  unlock   [--config path] [--env-file path] [--json]")
	writeStdoutln("  session  [--config path] [--env-file path]   (stdin: unlock | sign <digest> | lock | status | quit)")
	writeStdoutln("  address  [--config path] [--env-file path] [--json]")
	writeStdoutln("  doctor   [--config path] [--env-file path] [--json]")
	writeStdoutln("  version")
}

func writeStdoutln(line string) {
	_, _ = fmt.Fprintln(os.Stdout, strings.TrimRight(line, "\n"))
}

func writeStdoutf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stdout, format, args...)
}

func writeStderrln(line string) {
	_, _ = fmt.Fprintln(os.Stderr, line)
}
