package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

func newPostServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(postHTML))
	})
	mux.HandleFunc("/login-wall", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="u_0_d">Log in</div></body></html>`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStaticRenderer(t *testing.T) {
	server := newPostServer(t)
	renderer, err := NewStaticRenderer("#content_container", "")
	require.NoError(t, err)
	ctx := context.Background()

	markup, err := renderer.Render(ctx, server.URL+"/ready", time.Second)
	require.NoError(t, err)
	assert.Contains(t, markup, "Weekend sale")

	_, err = renderer.Render(ctx, server.URL+"/login-wall", time.Second)
	assert.ErrorIs(t, err, scrapeerrors.ErrFetchTimeout)

	_, err = renderer.Render(ctx, server.URL+"/slow", 100*time.Millisecond)
	assert.ErrorIs(t, err, scrapeerrors.ErrFetchTimeout)

	_, err = renderer.Render(ctx, server.URL+"/limited", time.Second)
	assert.ErrorIs(t, err, scrapeerrors.ErrRateLimit)

	_, err = renderer.Render(ctx, server.URL+"/gone", time.Second)
	assert.ErrorIs(t, err, scrapeerrors.ErrNavigation)
}

func TestStaticRendererBadProxy(t *testing.T) {
	_, err := NewStaticRenderer("#content_container", "://nope")
	assert.ErrorIs(t, err, scrapeerrors.ErrConfiguration)
}
