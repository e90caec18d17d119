// Package emby implements the backend adapter for Emby servers.
package emby

import (
	"context"
	"net/url"
	"strings"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

// PathPrefix is prepended to every Emby API path.
const PathPrefix = "/emby"

// Adapter talks to an Emby server.
type Adapter struct {
	*backend.Core
}

var _ backend.Adapter = (*Adapter)(nil)

// New creates an Emby adapter for conn.
func New(conn *models.Connection, deps backend.Deps) (backend.Adapter, error) {
	if conn.Kind != models.BackendEmby {
		return nil, backend.ErrUnknownBackendKind
	}
	return &Adapter{
		Core: backend.NewCore(conn, backend.Dialect{
			Kind:                  models.BackendEmby,
			PathPrefix:            PathPrefix,
			HeaderStyle:           mediabrowser.HeaderStyleEmby,
			EstimateMissingTotals: true,
		}, deps),
	}, nil
}

// AuthenticateWithCredentials tries the Emby credential shapes in order.
// Older servers only answer the unprefixed path or the form encoding.
func (a *Adapter) AuthenticateWithCredentials(ctx context.Context, username, password string) *backend.AuthResult {
	pw := map[string]string{"Username": username, "Pw": password}
	return a.Negotiate(ctx, []backend.Attempt{
		a.AuthAttempt("pw_json", mediabrowser.Request{Body: pw}),
		a.AuthAttempt("pw_form", mediabrowser.Request{
			Form: url.Values{"Username": {username}, "Pw": {password}},
		}),
		a.AuthAttempt("pw_json_unprefixed", mediabrowser.Request{Body: pw, NoPrefix: true}),
		a.AuthAttempt("password", mediabrowser.Request{
			Body: map[string]string{"Username": username, "Password": password},
		}),
	})
}

// BuildStreamURL returns a credentialed stream URL in Emby's vocabulary.
func (a *Adapter) BuildStreamURL(itemID, _ string, opts backend.StreamOptions) string {
	q := url.Values{}
	backend.CommonStreamQuery(q, a.DeviceID(), opts)
	q.Set("SubtitleStreamIndex", "-1")

	switch opts.Mode {
	case backend.StreamSegmented:
		q.Set("SegmentContainer", "ts")
	case backend.StreamTranscode:
		if len(opts.Containers) > 0 {
			q.Set("Container", strings.Join(opts.Containers, ","))
		}
	default:
		q.Set("Static", "true")
	}
	return a.Client().URL(backend.StreamPath(itemID, opts), q)
}
