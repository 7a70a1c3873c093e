package blob_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/irsalhamdi/selfcrafted/blob"
	"google.golang.org/api/option"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := blob.NewMemory("http://files.test", []byte("secret"))

	if _, err := m.SignedURL(ctx, "u1/missing.stl", time.Minute); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := m.Put(ctx, "u1/cube.stl", strings.NewReader("solid cube"), "model/stl"); err != nil {
		t.Fatalf("putting object: %s", err)
	}

	data, ct, err := m.Get("u1/cube.stl")
	if err != nil {
		t.Fatalf("getting object: %s", err)
	}
	if string(data) != "solid cube" || ct != "model/stl" {
		t.Fatalf("wrong object %q %q", data, ct)
	}

	raw, err := m.SignedURL(ctx, "u1/cube.stl", 10*time.Minute)
	if err != nil {
		t.Fatalf("signing url: %s", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing url: %s", err)
	}
	if u.Path != "/u1/cube.stl" {
		t.Fatalf("wrong path %s", u.Path)
	}

	exp, sig := u.Query().Get("expires"), u.Query().Get("signature")
	if !m.Valid("u1/cube.stl", exp, sig, time.Now()) {
		t.Fatal("expected the link to be valid now")
	}
	if m.Valid("u1/cube.stl", exp, sig, time.Now().Add(11*time.Minute)) {
		t.Fatal("expected the link to expire after ten minutes")
	}
	if m.Valid("u1/other.stl", exp, sig, time.Now()) {
		t.Fatal("expected the link to be bound to its key")
	}
}

// TestGCS runs against a storage emulator, e.g. fake-gcs-server.
func TestGCS(t *testing.T) {
	host := os.Getenv("STORAGE_EMULATOR_HOST")
	if host == "" || testing.Short() {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	g, err := blob.NewGCS(ctx, "models", option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("building client: %s", err)
	}
	defer g.Close()

	if err := g.Put(ctx, "u1/cube.stl", strings.NewReader("solid cube"), "model/stl"); err != nil {
		t.Fatalf("putting object: %s", err)
	}
}
