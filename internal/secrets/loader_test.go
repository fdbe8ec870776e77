package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  file-secret \n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secret, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "file-secret" {
		t.Fatalf("expected trimmed file secret, got %q", secret)
	}
}

func TestLoadFilePrecedesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("RFP_TEST_SECRET", "from-env")

	secret, err := Load(Source{File: path, Env: "RFP_TEST_SECRET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-file" {
		t.Fatalf("expected file to win, got %q", secret)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RFP_TEST_SECRET", " from-env ")

	secret, err := Load(Source{Env: "RFP_TEST_SECRET", Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "from-env" {
		t.Fatalf("expected env to win over inline, got %q", secret)
	}
}

func TestLoadFallsBackToValue(t *testing.T) {
	t.Setenv("RFP_TEST_SECRET", "")

	secret, err := Load(Source{Env: "RFP_TEST_SECRET", Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "inline" {
		t.Fatalf("expected inline value, got %q", secret)
	}
}

func TestLoadEmptyFileIsAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := Load(Source{Name: "api key", File: path})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected an empty file error, got %v", err)
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestLoadNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api key"})
	if err == nil || !strings.Contains(err.Error(), "api key is not configured") {
		t.Fatalf("expected a not-configured error, got %v", err)
	}
}
