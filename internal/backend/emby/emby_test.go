package emby

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(&models.Connection{BaseURL: baseURL, Kind: models.BackendEmby}, backend.Deps{})
	require.NoError(t, err)
	return a.(*Adapter)
}

func TestTestConnection_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	assert.False(t, newTestAdapter(t, addr).TestConnection(context.Background()))
}

func TestTestConnection_Prefixed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emby/System/Info/Public" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"Id":"srv"}`))
	}))
	defer server.Close()

	assert.True(t, newTestAdapter(t, server.URL).TestConnection(context.Background()))
}

func TestAuthenticateWithCredentials_FormShape(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/emby/Users/AuthenticateByName", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Emby-Authorization"))
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "bob", r.PostForm.Get("Username"))
		_, _ = w.Write([]byte(`{"User":{"Id":"u9","Name":"bob"},"AccessToken":"tok-9"}`))
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	res := a.AuthenticateWithCredentials(context.Background(), "bob", "pw")
	require.NotNil(t, res)
	assert.Equal(t, "u9", res.UserID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAuthenticateWithCredentials_UnprefixedShape(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/Users/AuthenticateByName" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"User":{"Id":"u1"},"AccessToken":"tok"}`))
	}))
	defer server.Close()

	res := newTestAdapter(t, server.URL).AuthenticateWithCredentials(context.Background(), "bob", "pw")
	require.NotNil(t, res)
	assert.Equal(t, []string{
		"/emby/Users/AuthenticateByName",
		"/emby/Users/AuthenticateByName",
		"/Users/AuthenticateByName",
	}, paths)
}

func TestAuthenticateWithKey_NoKey(t *testing.T) {
	assert.Nil(t, newTestAdapter(t, "http://127.0.0.1:1").AuthenticateWithKey(context.Background()))
}

func TestListLibraryItems_EstimatedTotal(t *testing.T) {
	body := `{"Items":[{"Id":"a","Name":"A","Type":"Movie"},{"Id":"b","Name":"B","Type":"Movie"}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emby/Users/u1/Items", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)

	items, total := a.ListLibraryItems(context.Background(), "u1", "lib", 2, 10)
	assert.Len(t, items, 2)
	assert.Equal(t, 13, total)

	_, total = a.ListLibraryItems(context.Background(), "u1", "lib", 5, 10)
	assert.Equal(t, 12, total)
}

func TestBuildStreamURL(t *testing.T) {
	a := newTestAdapter(t, "http://emby.local:8096")
	a.SetToken("tok")

	u, err := url.Parse(a.BuildStreamURL("item1", "u1", backend.StreamOptions{Mode: backend.StreamDirect, MediaSourceID: "ms"}))
	require.NoError(t, err)
	assert.Equal(t, "/emby/Videos/item1/stream", u.Path)
	q := u.Query()
	assert.Equal(t, "true", q.Get("Static"))
	assert.Equal(t, "-1", q.Get("SubtitleStreamIndex"))
	assert.Equal(t, "ms", q.Get("MediaSourceId"))
	assert.Equal(t, "tok", q.Get("api_key"))

	u, err = url.Parse(a.BuildStreamURL("item1", "u1", backend.StreamOptions{Mode: backend.StreamSegmented}))
	require.NoError(t, err)
	assert.Equal(t, "/emby/Videos/item1/master.m3u8", u.Path)
	assert.Empty(t, u.Query().Get("Static"))
}
