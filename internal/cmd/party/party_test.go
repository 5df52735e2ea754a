package party

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("party", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8087" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.CatalogDBPath != "catalog.db" {
		t.Fatalf("expected default catalog db path, got %q", cfg.CatalogDBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("SOUNDLEAF_PARTY_HTTP_ADDR", "env-party")
	t.Setenv("SOUNDLEAF_PARTY_CATALOG_DB_PATH", "env-catalog.db")

	fs := flag.NewFlagSet("party", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-party",
		"-catalog-db-path", "flag-catalog.db",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-party" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.CatalogDBPath != "flag-catalog.db" {
		t.Fatalf("expected flag catalog db path, got %q", cfg.CatalogDBPath)
	}
}

func TestParseConfigEnvOnly(t *testing.T) {
	t.Setenv("SOUNDLEAF_PARTY_HTTP_ADDR", "env-party")

	fs := flag.NewFlagSet("party", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "env-party" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
}
