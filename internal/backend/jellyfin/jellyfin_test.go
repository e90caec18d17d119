package jellyfin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(&models.Connection{BaseURL: baseURL, Kind: models.BackendJellyfin, CredentialKey: "key-1"},
		backend.Deps{Identity: mediabrowser.Identity{Client: "mediabridge", DeviceID: "dev-1", Version: "test"}})
	require.NoError(t, err)
	return a.(*Adapter)
}

func TestNew_WrongKind(t *testing.T) {
	_, err := New(&models.Connection{BaseURL: "http://x", Kind: models.BackendEmby}, backend.Deps{})
	assert.ErrorIs(t, err, backend.ErrUnknownBackendKind)
}

func TestTestConnection(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/System/Info/Public", r.URL.Path)
			_, _ = w.Write([]byte(`{"Id":"srv","ServerName":"den"}`))
		}))
		defer server.Close()

		assert.True(t, newTestAdapter(t, server.URL).TestConnection(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		assert.False(t, newTestAdapter(t, addr).TestConnection(context.Background()))
	})
}

func TestAuthenticateWithCredentials_SecondShape(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/AuthenticateByName", r.URL.Path)
		calls.Add(1)
		if r.Header.Get("X-Emby-Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["Username"])
		assert.Equal(t, "secret", body["Pw"])
		_ = json.NewEncoder(w).Encode(mediabrowser.AuthenticationResult{
			User:        mediabrowser.User{ID: "u1", Name: "alice"},
			AccessToken: "tok-1",
			ServerID:    "srv",
		})
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	res := a.AuthenticateWithCredentials(context.Background(), "alice", "secret")
	require.NotNil(t, res)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, "tok-1", a.Token())
	assert.Equal(t, int32(2), calls.Load())
}

func TestAuthenticateWithCredentials_AllRejected(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	assert.Nil(t, a.AuthenticateWithCredentials(context.Background(), "alice", "wrong"))
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, a.Token())
}

func TestAuthenticateWithKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), `Token="key-1"`)
		switch r.URL.Path {
		case "/System/Info":
			_, _ = w.Write([]byte(`{"Id":"srv"}`))
		case "/Users":
			_, _ = w.Write([]byte(`[{"Id":"u1","Name":"guest"},{"Id":"u2","Name":"root","Policy":{"IsAdministrator":true}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	res := newTestAdapter(t, server.URL).AuthenticateWithKey(context.Background())
	require.NotNil(t, res)
	assert.Equal(t, "u2", res.UserID)
	assert.True(t, res.IsAdministrator)
	assert.Equal(t, "srv", res.ServerID)
}

func TestListLibraryItems_TotalFromServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/u1/Items", r.URL.Path)
		assert.Equal(t, "lib", r.URL.Query().Get("ParentId"))
		assert.Equal(t, "SortName", r.URL.Query().Get("SortBy"))
		_, _ = w.Write([]byte(`{"Items":[{"Id":"a","Name":"Alien","Type":"Movie"}],"TotalRecordCount":40}`))
	}))
	defer server.Close()

	items, total := newTestAdapter(t, server.URL).ListLibraryItems(context.Background(), "u1", "lib", 1, 0)
	require.Len(t, items, 1)
	assert.Equal(t, 40, total)
}

func TestListLibraries_FailureIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	libs := newTestAdapter(t, server.URL).ListLibraries(context.Background(), "u1")
	assert.NotNil(t, libs)
	assert.Empty(t, libs)
}

func TestBuildStreamURL(t *testing.T) {
	a := newTestAdapter(t, "http://media.local:8096")
	a.SetToken("tok")
	audio := 2

	t.Run("direct", func(t *testing.T) {
		u, err := url.Parse(a.BuildStreamURL("item1", "u1", backend.StreamOptions{Mode: backend.StreamDirect}))
		require.NoError(t, err)
		assert.Equal(t, "/Videos/item1/stream", u.Path)
		assert.Equal(t, "true", u.Query().Get("static"))
		assert.Equal(t, "tok", u.Query().Get("api_key"))
		assert.Equal(t, "dev-1", u.Query().Get("DeviceId"))
	})

	t.Run("forced transcode", func(t *testing.T) {
		u, err := url.Parse(a.BuildStreamURL("item1", "u1", backend.StreamOptions{
			Mode:             backend.StreamTranscode,
			AudioStreamIndex: &audio,
			Containers:       []string{"mp4"},
			VideoCodecs:      []string{"h264"},
			AudioCodecs:      []string{"aac"},
		}))
		require.NoError(t, err)
		q := u.Query()
		assert.Empty(t, q.Get("static"))
		assert.Equal(t, "2", q.Get("AudioStreamIndex"))
		assert.Equal(t, "Drop", q.Get("SubtitleMethod"))
		assert.Equal(t, "mp4", q.Get("Container"))
	})

	t.Run("segmented", func(t *testing.T) {
		u, err := url.Parse(a.BuildStreamURL("item1", "u1", backend.StreamOptions{Mode: backend.StreamSegmented}))
		require.NoError(t, err)
		assert.Equal(t, "/Videos/item1/master.m3u8", u.Path)
		assert.Equal(t, "ts", u.Query().Get("SegmentContainer"))
	})

	t.Run("audio item", func(t *testing.T) {
		u, err := url.Parse(a.BuildStreamURL("song", "u1", backend.StreamOptions{Mode: backend.StreamDirect, ItemKind: backend.KindAudio}))
		require.NoError(t, err)
		assert.Equal(t, "/Audio/song/stream", u.Path)
	})
}

func TestResolveRelativeURL(t *testing.T) {
	a := newTestAdapter(t, "http://media.local")
	a.SetToken("tok")

	got := a.ResolveRelativeURL("item1", "hls1/main/0.ts", "runtimeTicks=0")
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/Videos/item1/hls1/main/0.ts", u.Path)
	assert.Equal(t, "0", u.Query().Get("runtimeTicks"))
	assert.Equal(t, "tok", u.Query().Get("api_key"))

	assert.Empty(t, a.ResolveRelativeURL("item1", "../../Users/x", ""))
}

func TestBuildImageURL(t *testing.T) {
	a := newTestAdapter(t, "http://media.local")
	a.SetToken("tok")

	u, err := url.Parse(a.BuildImageURL("m1", backend.ImageBackdrop, "t1"))
	require.NoError(t, err)
	assert.Equal(t, "/Items/m1/Images/Backdrop", u.Path)
	assert.Equal(t, "t1", u.Query().Get("tag"))
}

func TestEndSession(t *testing.T) {
	var logouts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Sessions/Logout" {
			logouts.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	a.SetToken("session-token")
	a.EndSession(context.Background())
	assert.Empty(t, a.Token())
	assert.Equal(t, int32(1), logouts.Load())

	a.SetToken("key-1")
	a.EndSession(context.Background())
	assert.Equal(t, int32(1), logouts.Load())
}
