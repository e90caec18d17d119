package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/backend"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func newUpstream(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Set-Cookie", "backend=secret")
		http.ServeContent(w, r, "movie.mp4", time.Unix(1700000000, 0), bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRelay_RangeRequest(t *testing.T) {
	data := payload(1000)
	upstream := newUpstream(t, data)
	p := New(Config{BufferSize: 16}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/video-proxy/m1", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := httptest.NewRecorder()

	err := p.Relay(rec, req, Target{URL: upstream.URL + "/Videos/m1/stream?api_key=tok"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 100-199/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
	assert.Equal(t, data[100:200], rec.Body.Bytes())
}

func TestRelay_FullBody(t *testing.T) {
	data := payload(5000)
	upstream := newUpstream(t, data)
	p := New(Config{}, nil, nil)

	rec := httptest.NewRecorder()
	err := p.Relay(rec, httptest.NewRequest(http.MethodGet, "/video-proxy/m1", nil), Target{URL: upstream.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestRelay_Head(t *testing.T) {
	upstream := newUpstream(t, payload(300))
	p := New(Config{}, nil, nil)

	rec := httptest.NewRecorder()
	err := p.Relay(rec, httptest.NewRequest(http.MethodHead, "/video-proxy/m1", nil), Target{URL: upstream.URL})
	require.NoError(t, err)
	assert.Equal(t, "300", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}

func TestRelay_UpstreamUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	rec := httptest.NewRecorder()
	err := New(Config{}, nil, nil).Relay(rec, httptest.NewRequest(http.MethodGet, "/", nil), Target{URL: addr + "/x?api_key=tok"})

	var perr *backend.ProxyStreamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseConnect, perr.Phase)
	assert.NotContains(t, perr.URL, "tok")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRelay_Upstream5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rec := httptest.NewRecorder()
	err := New(Config{}, nil, nil).Relay(rec, httptest.NewRequest(http.MethodGet, "/", nil), Target{URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRelay_Upstream4xxPassesThrough(t *testing.T) {
	upstream := newUpstream(t, payload(10))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=50-60")

	rec := httptest.NewRecorder()
	err := New(Config{}, nil, nil).Relay(rec, req, Target{URL: upstream.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}

type brokenBody struct {
	sent bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func (b *brokenBody) Close() error { return nil }

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestRelay_MidStreamFailure(t *testing.T) {
	p := New(Config{}, doerFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"video/mp4"}},
			Body:       &brokenBody{},
		}, nil
	}), nil)

	rec := httptest.NewRecorder()
	err := p.Relay(rec, httptest.NewRequest(http.MethodGet, "/", nil), Target{URL: "http://backend/x"})

	var perr *backend.ProxyStreamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseStream, perr.Phase)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestRelay_RewritesPlaylist(t *testing.T) {
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-STREAM-INF:BANDWIDTH=1000\nmain.m3u8?DeviceId=d&api_key=tok\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-mpegURL")
		_, _ = io.WriteString(w, playlist)
	}))
	defer server.Close()

	rec := httptest.NewRecorder()
	err := New(Config{}, nil, nil).Relay(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		Target{URL: server.URL + "/Videos/m1/master.m3u8?api_key=tok", ItemID: "m1"})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Contains(t, body, "/video-proxy/m1/hls/main.m3u8?DeviceId=d\n")
	assert.NotContains(t, body, "tok")
	assert.NotContains(t, body, server.URL)
	assert.Equal(t, ContentTypePlaylist, rec.Header().Get("Content-Type"))
}

func TestRewritePlaylist(t *testing.T) {
	base, err := url.Parse("http://emby.local/emby/videos/abc/main.m3u8?api_key=tok")
	require.NoError(t, err)

	in := strings.Join([]string{
		"#EXTM3U",
		`#EXT-X-MAP:URI="hls1/main/init.mp4?api_key=tok"`,
		"#EXTINF:6.0,",
		"hls1/main/0.ts?runtimeTicks=0&api_key=tok",
		"",
		"#EXTINF:6.0,",
		"http://other.host/elsewhere/1.ts",
	}, "\n")

	out := RewritePlaylist(strings.NewReader(in), base, "abc")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, `#EXT-X-MAP:URI="/video-proxy/abc/hls/hls1/main/init.mp4"`, lines[1])
	assert.Equal(t, "/video-proxy/abc/hls/hls1/main/0.ts?runtimeTicks=0", lines[3])
	assert.Equal(t, "/video-proxy/abc/hls/1.ts", lines[5])
}

// cancelOnWrite ends the client request once the first body bytes arrive.
type cancelOnWrite struct {
	*httptest.ResponseRecorder
	cancel context.CancelFunc
}

func (c *cancelOnWrite) Write(p []byte) (int, error) {
	n, err := c.ResponseRecorder.Write(p)
	c.cancel()
	return n, err
}

func TestRelay_ClientDisconnectReleasesUpstream(t *testing.T) {
	released := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload(64))
		http.NewResponseController(w).Flush()
		select {
		case <-r.Context().Done():
			close(released)
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(upstream.Close)

	p := New(Config{BufferSize: 16}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/video-proxy/m1", nil).WithContext(ctx)
	w := &cancelOnWrite{ResponseRecorder: httptest.NewRecorder(), cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- p.Relay(w, req, Target{URL: upstream.URL}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not return after client disconnect")
	}
	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream request was not canceled")
	}
	assert.Equal(t, http.StatusOK, w.Code)
}
