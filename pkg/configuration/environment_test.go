package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnv_LoadsExistingFiles(t *testing.T) {
	tmp := t.TempDir()
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "PLACEMENT_TEST_ENV_LOAD=ok\n")

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("PLACEMENT_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("PLACEMENT_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded, got %q", got)
	}
}

func TestScoringOptions_Validate(t *testing.T) {
	opts := ScoringOptions{
		HeadroomWeight:   0.35,
		SuccessWeight:    0.30,
		PreferenceWeight: 0.20,
		RecencyWeight:    0.15,
		RecencyHorizon:   30 * 24 * time.Hour,
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("expected valid weights, got %v", err)
	}

	opts.SuccessWeight = -1
	if err := opts.Validate(); err == nil {
		t.Fatal("expected negative weight to be rejected")
	}

	opts = ScoringOptions{}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected all-zero weights to be rejected")
	}
}

func TestLedgerOptions_Validate(t *testing.T) {
	opts := LedgerOptions{MaxAttempts: 5, BaseBackoff: 5 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
	if err := opts.Validate(); err != nil {
		t.Fatalf("expected valid ledger options, got %v", err)
	}

	opts.MaxAttempts = 0
	if err := opts.Validate(); err == nil {
		t.Fatal("expected zero attempts to be rejected")
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
