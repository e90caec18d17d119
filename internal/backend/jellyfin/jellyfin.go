// Package jellyfin implements the backend adapter for Jellyfin servers.
package jellyfin

import (
	"context"
	"net/url"
	"strings"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

// Adapter talks to a Jellyfin server.
type Adapter struct {
	*backend.Core
}

var _ backend.Adapter = (*Adapter)(nil)

// New creates a Jellyfin adapter for conn.
func New(conn *models.Connection, deps backend.Deps) (backend.Adapter, error) {
	if conn.Kind != models.BackendJellyfin {
		return nil, backend.ErrUnknownBackendKind
	}
	return &Adapter{
		Core: backend.NewCore(conn, backend.Dialect{
			Kind:        models.BackendJellyfin,
			HeaderStyle: mediabrowser.HeaderStyleMediaBrowser,
		}, deps),
	}, nil
}

// AuthenticateWithCredentials tries the Jellyfin credential shapes in order.
func (a *Adapter) AuthenticateWithCredentials(ctx context.Context, username, password string) *backend.AuthResult {
	pw := map[string]string{"Username": username, "Pw": password}
	return a.Negotiate(ctx, []backend.Attempt{
		a.AuthAttempt("pw_authorization", mediabrowser.Request{
			Body:  pw,
			Style: mediabrowser.HeaderStyleMediaBrowser,
		}),
		a.AuthAttempt("pw_emby_authorization", mediabrowser.Request{
			Body:  pw,
			Style: mediabrowser.HeaderStyleEmby,
		}),
		a.AuthAttempt("password", mediabrowser.Request{
			Body: map[string]string{"Username": username, "Password": password},
		}),
	})
}

// BuildStreamURL returns a credentialed stream URL in Jellyfin's vocabulary.
func (a *Adapter) BuildStreamURL(itemID, _ string, opts backend.StreamOptions) string {
	q := url.Values{}
	backend.CommonStreamQuery(q, a.DeviceID(), opts)

	switch opts.Mode {
	case backend.StreamSegmented:
		q.Set("SegmentContainer", "ts")
		q.Set("SubtitleMethod", "Drop")
		q.Set("TranscodingMaxAudioChannels", "2")
	case backend.StreamTranscode:
		if len(opts.Containers) > 0 {
			q.Set("Container", strings.Join(opts.Containers, ","))
		}
		q.Set("SubtitleMethod", "Drop")
	default:
		q.Set("static", "true")
	}
	return a.Client().URL(backend.StreamPath(itemID, opts), q)
}
