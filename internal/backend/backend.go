// Package backend defines the single contract both media server flavors
// implement, the normalized types handed to callers, the error taxonomy and
// the credential negotiation used by the concrete adapters.
package backend

import (
	"context"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// Adapter is one media server connection. Every method swallows backend
// failures at this boundary: list calls return an empty slice, single
// lookups return nil and boolean calls return false. Failures are logged
// and counted, never returned.
type Adapter interface {
	// Kind returns the backend flavor.
	Kind() models.BackendKind

	// TestConnection reports whether the server answers its public info endpoint.
	TestConnection(ctx context.Context) bool

	// AuthenticateWithCredentials negotiates a token from a username and
	// password. It returns nil when every credential shape was rejected.
	AuthenticateWithCredentials(ctx context.Context, username, password string) *AuthResult

	// AuthenticateWithKey validates the connection's static API key and
	// resolves the user it acts as. It returns nil without a usable key.
	AuthenticateWithKey(ctx context.Context) *AuthResult

	ListLibraries(ctx context.Context, userID string) []Library

	// ListLibraryItems returns one page of a library and the total item count.
	ListLibraryItems(ctx context.Context, userID, libraryID string, limit, offset int) ([]MediaItem, int)

	Search(ctx context.Context, userID, term string, limit int) []MediaItem

	// GetItemDetails returns the item including its media sources.
	GetItemDetails(ctx context.Context, userID, itemID string) *MediaItem

	GetSeriesSeasons(ctx context.Context, userID, seriesID string) []MediaItem
	GetSeasonEpisodes(ctx context.Context, userID, seriesID, seasonID string) []MediaItem

	// Playback reports return whether the server acknowledged them.
	ReportPlaybackStart(ctx context.Context, userID, itemID string, positionTicks int64) bool
	ReportPlaybackProgress(ctx context.Context, userID, itemID string, positionTicks int64) bool
	ReportPlaybackStop(ctx context.Context, userID, itemID string, positionTicks int64) bool

	// BuildStreamURL returns an absolute backend URL carrying the access
	// token. It must only be fetched server-side.
	BuildStreamURL(itemID, userID string, opts StreamOptions) string

	// BuildImageURL returns an absolute, credentialed backend image URL.
	BuildImageURL(itemID string, kind ImageKind, tag string) string

	ListLiveChannels(ctx context.Context, userID string) []LiveChannel
	ListLivePrograms(ctx context.Context, userID string, channelIDs []string) []LiveProgram

	// SampleItems returns up to limit items under parentID in random order.
	SampleItems(ctx context.Context, userID, parentID string, limit int) []MediaItem

	// ResolveRelativeURL resolves a path found in an HLS playlist of itemID
	// to an absolute, credentialed backend URL. It returns "" when rel
	// escapes the item's stream directory.
	ResolveRelativeURL(itemID, rel, rawQuery string) string

	// EndSession ends the server-side session and forgets the token.
	EndSession(ctx context.Context)

	SetToken(token string)
	Token() string
}
