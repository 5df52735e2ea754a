package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"
)

func setValidTokenEnv(t *testing.T) {
	t.Helper()
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("SOUNDLEAF_AUTH_ISSUER", testIssuer)
	t.Setenv("SOUNDLEAF_AUTH_AUDIENCE", testAudience)
	t.Setenv("SOUNDLEAF_AUTH_PUBLIC_KEY", base64.StdEncoding.EncodeToString(public))
}

func TestNewServerValidatesConfig(t *testing.T) {
	setValidTokenEnv(t)

	if _, err := NewServer(Config{CatalogDBPath: "catalog.db"}); err == nil {
		t.Fatal("expected missing http addr error")
	}
	if _, err := NewServer(Config{HTTPAddr: ":0"}); err == nil {
		t.Fatal("expected missing catalog db path error")
	}
}

func TestNewServerRequiresTokenEnv(t *testing.T) {
	t.Setenv("SOUNDLEAF_AUTH_ISSUER", "")
	t.Setenv("SOUNDLEAF_AUTH_AUDIENCE", "")
	t.Setenv("SOUNDLEAF_AUTH_PUBLIC_KEY", "")

	if _, err := NewServer(Config{HTTPAddr: ":0", CatalogDBPath: "catalog.db"}); err == nil {
		t.Fatal("expected token env error")
	}
}

func TestServerServesUntilCanceled(t *testing.T) {
	setValidTokenEnv(t)

	server, err := NewServer(Config{
		HTTPAddr:      "127.0.0.1:0",
		CatalogDBPath: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.ListenAndServe(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
