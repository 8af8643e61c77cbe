package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFingerprintIsStableWithinProcess(t *testing.T) {
	a := FingerprintID("0xabc")
	if a != FingerprintID(" 0xabc ") {
		t.Fatal("fingerprint must ignore surrounding space")
	}
	if a == FingerprintID("0xabd") {
		t.Fatal("distinct values must not share a fingerprint")
	}
	if FingerprintID("") != "" {
		t.Fatal("empty value must stay empty")
	}
}

func TestSanitizingHandlerRedactsKeyMaterial(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("test",
		"address", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"password", "CorrectPass1!",
		"encrypted_blob", "JDJhJDA0JC4uLg==",
		"private_key", "ac0974be",
		"status", "ok",
	)

	out := buf.String()
	for _, leaked := range []string{"CorrectPass1!", "JDJhJDA0JC4uLg==", "ac0974be", "0xf39Fd6e5"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log leaked %q: %s", leaked, out)
		}
	}
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["address_fp"]; !ok {
		t.Fatal("address_fp should be present")
	}
	if got, _ := payload["password"].(string); got != redactedValue {
		t.Fatalf("expected redacted password, got %q", got)
	}
	if got, _ := payload["status"].(string); got != "ok" {
		t.Fatalf("expected untouched status, got %q", got)
	}
}

func TestSanitizingHandlerSanitizesBoundAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(h).With("session_id", "abc")
	logger.Info("grouped", slog.Group("wallet", slog.String("secret_hint", "x"), slog.Int("cost", 12)))

	out := buf.String()
	if !strings.Contains(out, "session_id_fp") || strings.Contains(out, `"abc"`) {
		t.Fatalf("bound session_id not fingerprinted: %s", out)
	}
	if strings.Contains(out, `"x"`) {
		t.Fatalf("group secret leaked: %s", out)
	}
}

func TestSanitizingHandlerImplementsSlogHandlerContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("expected_address", "0x01"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "expected_address_fp") {
		t.Fatalf("expected sanitized address key, got %s", buf.String())
	}
}
