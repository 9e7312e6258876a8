package homelabqr

import (
	"flag"
	"io"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("homelabqr", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.Storage != "sqlite" {
		t.Fatalf("Storage = %q, want sqlite", cfg.Storage)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOMELABQR_DB_PATH", "/var/lib/homelabqr/env.db")

	fs := flag.NewFlagSet("homelabqr", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "127.0.0.1:9002", "-db-path", "/tmp/flag.db"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9002" {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:9002")
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Fatalf("DBPath = %q, want %q", cfg.DBPath, "/tmp/flag.db")
	}
}

func TestParseConfigEnvDefaultsFlags(t *testing.T) {
	t.Setenv("HOMELABQR_STORAGE", "dynamodb")

	fs := flag.NewFlagSet("homelabqr", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Storage != "dynamodb" {
		t.Fatalf("Storage = %q, want dynamodb", cfg.Storage)
	}
}

func TestParseConfigUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("homelabqr", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected flag error")
	}
}
