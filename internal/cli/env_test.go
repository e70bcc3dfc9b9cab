package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(path, []byte("TARIQI_TEST_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvFileVar, "")
	t.Setenv("TARIQI_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	got, err := loader.Load()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got != path {
		t.Fatalf("unexpected loaded path: got %q want %q", got, path)
	}
	if value := os.Getenv("TARIQI_TEST_VALUE"); value != "loaded" {
		t.Fatalf("unexpected env value: %q", value)
	}
}

func TestEnvLoaderMissingFileReturnsError(t *testing.T) {
	t.Setenv(EnvFileVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "missing.env"), "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected missing env file error")
	}
}

func TestEnvLoaderNil(t *testing.T) {
	t.Parallel()

	var loader *EnvLoader
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected nil loader error")
	}
}
