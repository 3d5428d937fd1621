package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url+"/", "service-key", "")
	require.NoError(t, err)
	c.convertToWebP = func(b []byte, q float32) ([]byte, error) { return append([]byte("webp:"), b...), nil }
	c.now = func() time.Time { return time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC) }
	return c
}

func TestArchiveUploadsWebP(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"attachments/x"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	path, err := c.Archive(context.Background(), "job-1", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, "style-results/2026-03-09/job-1.webp", path)
	assert.Equal(t, "/storage/v1/object/attachments/style-results/2026-03-09/job-1.webp", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "image/webp", gotType)
	assert.Equal(t, []byte("webp:png"), gotBody)
}

func TestArchiveErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Bucket not found"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Archive(context.Background(), "job-1", []byte("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "Bucket not found")

	c.convertToWebP = func([]byte, float32) ([]byte, error) { return nil, errors.New("bad png") }
	_, err = c.Archive(context.Background(), "job-1", []byte("png"))
	assert.ErrorContains(t, err, "bad png")
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "key", "bucket")
	assert.Error(t, err)
}
