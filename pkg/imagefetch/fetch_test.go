package imagefetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Smallest payload mimetype still detects as image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return New(cfg)
}

func TestFetchLocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	c := newTestClient(t, Config{})
	data, err := c.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)
}

func TestFetchLocalPathRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0o644))

	c := newTestClient(t, Config{})
	_, err := c.Fetch(context.Background(), path)
	require.ErrorIs(t, err, ErrNotImage)
}

func TestFetchRemoteSendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("User-Agent"))
		require.Equal(t, "https://example.com/", r.Header.Get("Referer"))
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	c := newTestClient(t, Config{Referer: "https://example.com/"})
	data, err := c.Fetch(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)
}

func TestFetchUsesDiskCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	c := newTestClient(t, Config{CacheDir: t.TempDir()})
	url := server.URL + "/img.png"

	_, err := c.Fetch(context.Background(), url)
	require.NoError(t, err)
	data, err := c.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)
	require.Equal(t, int32(1), hits.Load(), "second fetch must come from cache")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	c := newTestClient(t, Config{MaxRetries: 2})
	_, err := c.Fetch(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, Config{MaxRetries: 3})
	_, err := c.Fetch(context.Background(), server.URL+"/missing.png")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchRejectsOversizedPayload(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), make([]byte, 128)...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer server.Close()

	c := newTestClient(t, Config{MaxBytes: 64})
	_, err := c.Fetch(context.Background(), server.URL+"/huge.png")
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	c := newTestClient(t, Config{})
	_, err := c.Fetch(context.Background(), "ftp://example.com/a.png")
	require.Error(t, err)

	_, err = c.Fetch(context.Background(), "   ")
	require.Error(t, err)
}
