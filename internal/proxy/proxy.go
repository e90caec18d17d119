// Package proxy relays backend streams to clients with byte-range
// semantics intact and rewrites HLS playlists so every URI points back at
// the proxy.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http/httpguts"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/pkg/httpclient"
)

// Defaults.
const (
	DefaultBufferSize      = 32 * 1024
	DefaultConnectTimeout  = 20 * time.Second
	DefaultMaxPlaylistSize = 4 * 1024 * 1024
)

// Phases reported in ProxyStreamError.
const (
	PhaseConnect = "connect"
	PhaseStream  = "stream"
)

// Request headers forwarded upstream.
var forwardedRequestHeaders = []string{"Range", "If-Range", "If-None-Match", "If-Modified-Since", "Accept"}

// Hop-by-hop headers, dropped in both directions.
var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Response headers never relayed to clients.
var droppedResponseHeaders = []string{"Set-Cookie", "Www-Authenticate"}

// Config configures a RangeProxy.
type Config struct {
	BufferSize      int
	ConnectTimeout  time.Duration
	MaxPlaylistSize int64
	UserAgent       string
}

// Doer executes upstream requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Target is one upstream resource to relay.
type Target struct {
	// URL is the absolute, credentialed backend URL.
	URL string
	// ItemID enables playlist rewriting for HLS responses.
	ItemID string
}

// RangeProxy relays upstream responses. Each call opens its own upstream
// request; the only shared state is the buffer pool.
type RangeProxy struct {
	cfg    Config
	client Doer
	pool   sync.Pool
	logger *slog.Logger
}

// New creates a RangeProxy. A nil client gets an uncapped client whose
// only deadlines cover dialing and waiting for response headers.
func New(cfg Config, client Doer, logger *slog.Logger) *RangeProxy {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MaxPlaylistSize <= 0 {
		cfg.MaxPlaylistSize = DefaultMaxPlaylistSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = NewUpstreamClient(cfg, logger)
	}

	p := &RangeProxy{
		cfg:    cfg,
		client: client,
		logger: observability.WithComponent(logger, "proxy"),
	}
	p.pool.New = func() any {
		buf := make([]byte, cfg.BufferSize)
		return &buf
	}
	return p
}

// NewUpstreamClient builds the relay's outbound client: no retries, no
// overall timeout and no transparent decompression.
func NewUpstreamClient(cfg Config, logger *slog.Logger) *httpclient.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = cfg.ConnectTimeout
	transport.DisableCompression = true

	return httpclient.New(httpclient.Config{
		UserAgent:             cfg.UserAgent,
		Logger:                logger,
		AcceptableStatusCodes: httpclient.MustParseStatusCodes("200-499"),
		Transport:             otelhttp.NewTransport(transport),
	}, nil)
}

// Relay streams target to w. Failures before response headers were written
// produce a 502 and a *backend.ProxyStreamError with PhaseConnect. A
// failure after that returns PhaseStream; the caller must abort the
// connection because the status line is already on the wire. A client
// disconnect is not an error.
func (p *RangeProxy) Relay(w http.ResponseWriter, r *http.Request, target Target) error {
	ctx := r.Context()
	logger := p.logger.With(slog.String("upstream", redact(target.URL)))

	method := http.MethodGet
	if r.Method == http.MethodHead {
		method = http.MethodHead
	}
	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		return p.failConnect(w, logger, target, err)
	}
	for _, h := range forwardedRequestHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	observability.ProxyActiveRelays.Inc()
	defer observability.ProxyActiveRelays.Dec()

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("client went away before upstream answered")
			return nil
		}
		return p.failConnect(w, logger, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return p.failConnect(w, logger, target, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	if target.ItemID != "" && isPlaylist(resp, target.URL) {
		return p.relayPlaylist(w, resp, target, logger)
	}

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if method == http.MethodHead {
		return nil
	}
	return p.pipe(ctx, w, resp.Body, target, logger)
}

func (p *RangeProxy) pipe(ctx context.Context, w http.ResponseWriter, body io.Reader, target Target, logger *slog.Logger) error {
	bufp := p.pool.Get().(*[]byte)
	defer p.pool.Put(bufp)
	buf := *bufp

	rc := http.NewResponseController(w)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logger.Debug("client disconnected", slog.Int64("bytes", written))
				return nil
			}
			written += int64(n)
			observability.ProxyBytesTotal.Add(float64(n))
			_ = rc.Flush()
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				logger.Debug("client disconnected", slog.Int64("bytes", written))
				return nil
			}
			observability.ProxyStreamErrorsTotal.WithLabelValues(PhaseStream).Inc()
			logger.Warn("upstream failed mid-stream",
				slog.Int64("bytes", written),
				slog.String("error", rerr.Error()),
			)
			return &backend.ProxyStreamError{Phase: PhaseStream, URL: redact(target.URL), Err: rerr}
		}
	}
}

func (p *RangeProxy) relayPlaylist(w http.ResponseWriter, resp *http.Response, target Target, logger *slog.Logger) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxPlaylistSize+1))
	if err != nil {
		return p.failConnect(w, logger, target, err)
	}
	if int64(len(raw)) > p.cfg.MaxPlaylistSize {
		return p.failConnect(w, logger, target, errors.New("playlist exceeds size limit"))
	}

	base, err := url.Parse(target.URL)
	if err != nil {
		return p.failConnect(w, logger, target, err)
	}
	rewritten := RewritePlaylist(bytes.NewReader(raw), base, target.ItemID)

	w.Header().Set("Content-Type", ContentTypePlaylist)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, rewritten)
	return nil
}

func (p *RangeProxy) failConnect(w http.ResponseWriter, logger *slog.Logger, target Target, err error) error {
	observability.ProxyStreamErrorsTotal.WithLabelValues(PhaseConnect).Inc()
	logger.Warn("upstream unavailable", slog.String("error", err.Error()))
	http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	return &backend.ProxyStreamError{Phase: PhaseConnect, URL: redact(target.URL), Err: err}
}

func copyResponseHeaders(dst, src http.Header) {
	connection := src["Connection"]
	for name, values := range src {
		if isHopHeader(name) || httpguts.HeaderValuesContainsToken(connection, name) {
			continue
		}
		if isDropped(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func isDropped(name string) bool {
	for _, h := range droppedResponseHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// redact strips the query, which carries the access token.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
