// Package blob stores uploaded model files and hands out short-lived
// download links for them.
package blob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// GCS keeps objects in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("building storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing upload of %s: %w", key, err)
	}
	return nil
}

// SignedURL signs a V4 GET link with the credentials the client runs with.
func (g *GCS) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("signing url for %s: %w", key, err)
	}
	return u, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// Memory keeps objects in process. Its links are signed with an HMAC so
// tests can check them.
type Memory struct {
	base   string
	secret []byte

	mu      sync.Mutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

func NewMemory(base string, secret []byte) *Memory {
	return &Memory{base: base, secret: secret, objects: make(map[string]object)}
}

func (m *Memory) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: buf.Bytes(), contentType: contentType}
	return nil
}

func (m *Memory) Get(key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return o.data, o.contentType, nil
}

func (m *Memory) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	_, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	exp := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", exp)
	q.Set("signature", m.sign(key, exp))
	return m.base + "/" + key + "?" + q.Encode(), nil
}

// Valid reports whether a link produced by SignedURL is authentic and
// unexpired at now.
func (m *Memory) Valid(key, expires, signature string, now time.Time) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || now.Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(m.sign(key, expires)), []byte(signature))
}

func (m *Memory) sign(key, expires string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
