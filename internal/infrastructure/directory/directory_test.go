package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewStaticDirectory([]string{"alice", "bob"})

	exists, err := dir.Exists(ctx, "alice")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = dir.Exists(ctx, "mallory")
	assert.NoError(t, err)
	assert.False(t, exists)

	dir.Add("mallory")
	exists, err = dir.Exists(ctx, "mallory")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestHTTPDirectory_Exists(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	t.Run("known user", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/users/alice", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"exists": true}`))
		}))
		defer server.Close()

		dir := NewHTTPDirectory(server.URL, time.Second, logger)
		exists, err := dir.Exists(ctx, "alice")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("explicit exists false", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"exists": false}`))
		}))
		defer server.Close()

		dir := NewHTTPDirectory(server.URL, time.Second, logger)
		exists, err := dir.Exists(ctx, "alice")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("bare user record means exists", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"username": "alice", "id": 42}`))
		}))
		defer server.Close()

		dir := NewHTTPDirectory(server.URL, time.Second, logger)
		exists, err := dir.Exists(ctx, "alice")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown user", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		dir := NewHTTPDirectory(server.URL, time.Second, logger)
		exists, err := dir.Exists(ctx, "ghost")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("failing service degrades to unknown", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		dir := NewHTTPDirectory(server.URL, time.Second, logger)
		exists, err := dir.Exists(ctx, "alice")

		// Degraded, never erroring: a dead user service must not take
		// the signaling plane down with it.
		assert.NoError(t, err)
		assert.False(t, exists)
		assert.Greater(t, calls.Load(), int32(1), "server errors should be retried")
	})
}
