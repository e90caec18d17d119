package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/pkg/httpclient"
	"github.com/jmylchreest/mediabridge/pkg/mediabrowser"
)

// DefaultTimeout is the per-call backend timeout.
const DefaultTimeout = 20 * time.Second

// Item types listed for a library page and for search.
var (
	libraryItemTypes = []string{
		mediabrowser.ItemTypeMovie, mediabrowser.ItemTypeSeries, mediabrowser.ItemTypeMusicAlbum,
		mediabrowser.ItemTypeBoxSet, "Video", mediabrowser.ItemTypeTvChannel,
	}
	searchItemTypes = []string{
		mediabrowser.ItemTypeMovie, mediabrowser.ItemTypeSeries, mediabrowser.ItemTypeEpisode,
		mediabrowser.ItemTypeAudio, mediabrowser.ItemTypeMusicAlbum, mediabrowser.ItemTypeTvChannel,
	}
	sampleItemTypes = []string{
		mediabrowser.ItemTypeMovie, mediabrowser.ItemTypeSeries, mediabrowser.ItemTypeEpisode,
		mediabrowser.ItemTypeMusicAlbum,
	}
)

// Deps are the shared collaborators handed to adapter constructors.
type Deps struct {
	Logger   *slog.Logger
	Breakers *httpclient.CircuitBreakerManager
	// HTTP is the base outbound client configuration; Timeout is overridden
	// per adapter call.
	HTTP     httpclient.Config
	Timeout  time.Duration
	Identity mediabrowser.Identity
}

// Dialect captures the wire differences between the two flavors that the
// shared Core needs to know about.
type Dialect struct {
	Kind        models.BackendKind
	PathPrefix  string
	HeaderStyle mediabrowser.HeaderStyle
	// EstimateMissingTotals estimates a page total when the server omits
	// TotalRecordCount.
	EstimateMissingTotals bool
}

// Core implements the parts of Adapter both flavors share. Concrete
// adapters embed it and add authentication shapes and stream vocabulary.
type Core struct {
	dialect       Dialect
	conn          models.Connection
	client        *mediabrowser.Client
	logger        *slog.Logger
	timeout       time.Duration
	deviceID      string
	credentialKey string
}

// NewCore builds the shared adapter core for conn.
func NewCore(conn *models.Connection, d Dialect, deps Deps) *Core {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	endpoint := conn.Endpoint()
	httpCfg := deps.HTTP
	httpCfg.Logger = logger
	// Each call carries its own deadline; the stream relay reuses this
	// client's transport settings but never its timeout.
	httpCfg.Timeout = 0
	if httpCfg.AcceptableStatusCodes == nil {
		// Rejected credentials and missing items are not server faults.
		httpCfg.AcceptableStatusCodes = httpclient.MustParseStatusCodes("200-499")
	}

	var breaker *httpclient.CircuitBreaker
	if deps.Breakers != nil {
		breaker = deps.Breakers.GetOrCreate(endpoint)
	}
	hc := httpclient.New(httpCfg, breaker)

	client := mediabrowser.NewClient(endpoint,
		mediabrowser.WithHTTPClient(hc.StandardClient()),
		mediabrowser.WithPathPrefix(d.PathPrefix),
		mediabrowser.WithHeaderStyle(d.HeaderStyle),
		mediabrowser.WithIdentity(deps.Identity),
	)

	return &Core{
		dialect:       d,
		conn:          *conn,
		client:        client,
		logger:        observability.WithComponent(logger, "backend").With(slog.String("backend_kind", string(d.Kind))),
		timeout:       timeout,
		deviceID:      deps.Identity.DeviceID,
		credentialKey: conn.CredentialKey,
	}
}

// Kind returns the backend flavor.
func (c *Core) Kind() models.BackendKind { return c.dialect.Kind }

// Client exposes the wire client to the embedding adapter.
func (c *Core) Client() *mediabrowser.Client { return c.client }

// Logger returns the adapter logger.
func (c *Core) Logger() *slog.Logger { return c.logger }

// DeviceID returns the device id presented to the server.
func (c *Core) DeviceID() string { return c.deviceID }

// SetToken replaces the held access token.
func (c *Core) SetToken(token string) { c.client.SetToken(token) }

// Token returns the held access token.
func (c *Core) Token() string { return c.client.Token() }

// Call runs fn under the per-call timeout, records metrics and classifies
// the failure. Transport failures are returned as *ConnectivityError.
func (c *Core) Call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	kind := string(c.dialect.Kind)
	start := time.Now()
	err := fn(ctx)
	observability.BackendCallDuration.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())

	if err == nil {
		observability.BackendCallsTotal.WithLabelValues(kind, op, "ok").Inc()
		return nil
	}

	var se *mediabrowser.StatusError
	if errors.As(err, &se) {
		observability.BackendCallsTotal.WithLabelValues(kind, op, "status_"+strconv.Itoa(se.StatusCode/100)+"xx").Inc()
		c.logger.Warn("backend call rejected",
			slog.String("operation", op),
			slog.Int("status", se.StatusCode),
		)
		return err
	}

	observability.BackendCallsTotal.WithLabelValues(kind, op, "unreachable").Inc()
	cerr := &ConnectivityError{Kind: c.dialect.Kind, Operation: op, Err: err}
	c.logger.Warn("backend call failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return cerr
}

// TestConnection reports whether the public info endpoint answers.
func (c *Core) TestConnection(ctx context.Context) bool {
	err := c.Call(ctx, "test_connection", func(ctx context.Context) error {
		_, err := c.client.PublicSystemInfo(ctx)
		return err
	})
	return err == nil
}

// AuthenticateWithKey validates the connection's API key against
// /System/Info and acts as the first administrator, else the first user.
func (c *Core) AuthenticateWithKey(ctx context.Context) *AuthResult {
	if c.credentialKey == "" {
		return nil
	}

	previous := c.client.Token()
	c.client.SetToken(c.credentialKey)

	var info *mediabrowser.SystemInfo
	var users []mediabrowser.User
	err := c.Call(ctx, "authenticate_key", func(ctx context.Context) error {
		var err error
		if info, err = c.client.SystemInfo(ctx); err != nil {
			return err
		}
		users, err = c.client.Users(ctx)
		return err
	})
	if err != nil || len(users) == 0 {
		c.client.SetToken(previous)
		return nil
	}

	chosen := users[0]
	for _, u := range users {
		if u.IsAdministrator() && (u.Policy == nil || !u.Policy.IsDisabled) {
			chosen = u
			break
		}
	}
	return &AuthResult{
		UserID:          chosen.ID,
		Username:        chosen.Name,
		Token:           c.credentialKey,
		IsAdministrator: chosen.IsAdministrator(),
		ServerID:        info.ID,
	}
}

// AuthAttempt builds a credential shape posting to AuthenticateByName.
func (c *Core) AuthAttempt(name string, req mediabrowser.Request) Attempt {
	req.Method = http.MethodPost
	if req.Path == "" {
		req.Path = "/Users/AuthenticateByName"
	}
	req.Anonymous = true
	return Attempt{
		Name: name,
		Do: func(ctx context.Context) AttemptOutcome {
			var res mediabrowser.AuthenticationResult
			var status int
			err := c.Call(ctx, "authenticate", func(ctx context.Context) error {
				var err error
				status, err = c.client.Do(ctx, req, &res)
				return err
			})
			if err != nil {
				return AttemptOutcome{Status: status, Err: err}
			}
			return AttemptOutcome{Status: status, Result: &AuthResult{
				UserID:          res.User.ID,
				Username:        res.User.Name,
				Token:           res.AccessToken,
				IsAdministrator: res.User.IsAdministrator(),
				ServerID:        res.ServerID,
			}}
		},
	}
}

// Negotiate folds attempts and installs the token on success.
func (c *Core) Negotiate(ctx context.Context, attempts []Attempt) *AuthResult {
	n, err := NewNegotiator(c.dialect.Kind, c.logger).Negotiate(ctx, attempts)
	if err != nil {
		c.logger.Info("authentication rejected",
			slog.Int("attempts", n.Attempts),
			slog.Int("last_status", n.LastStatus),
		)
		return nil
	}
	c.client.SetToken(n.Result.Token)
	c.logger.Info("authenticated",
		slog.String("user_id", n.Result.UserID),
		slog.String("shape", n.Shape),
		slog.Int("attempts", n.Attempts),
	)
	return n.Result
}

// ListLibraries returns the user's library views.
func (c *Core) ListLibraries(ctx context.Context, userID string) []Library {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "list_libraries", func(ctx context.Context) error {
		var err error
		res, err = c.client.Views(ctx, userID)
		return err
	})
	if err != nil {
		return []Library{}
	}
	libs := make([]Library, 0, len(res.Items))
	for _, bi := range res.Items {
		libs = append(libs, NormalizeLibrary(bi))
	}
	return DedupeLibraries(libs)
}

// ListLibraryItems returns one SortName-ordered page and the total count.
func (c *Core) ListLibraryItems(ctx context.Context, userID, libraryID string, limit, offset int) ([]MediaItem, int) {
	if offset < 0 {
		offset = 0
	}
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "list_library_items", func(ctx context.Context) error {
		var err error
		res, err = c.client.Items(ctx, userID, mediabrowser.ItemsQuery{
			ParentID:         libraryID,
			IncludeItemTypes: libraryItemTypes,
			Recursive:        true,
			StartIndex:       offset,
			Limit:            limit,
			SortBy:           "SortName",
			SortOrder:        "Ascending",
		})
		return err
	})
	if err != nil {
		return []MediaItem{}, 0
	}
	return DedupeItems(NormalizeItems(res.Items)), c.totalCount(res, offset, limit)
}

func (c *Core) totalCount(res *mediabrowser.QueryResult, offset, limit int) int {
	if res.TotalRecordCount != nil {
		return *res.TotalRecordCount
	}
	total := offset + len(res.Items)
	if c.dialect.EstimateMissingTotals && limit > 0 && len(res.Items) == limit {
		total++
	}
	return total
}

// Search finds items by name.
func (c *Core) Search(ctx context.Context, userID, term string, limit int) []MediaItem {
	term = strings.TrimSpace(term)
	if term == "" {
		return []MediaItem{}
	}
	return c.items(ctx, "search", userID, mediabrowser.ItemsQuery{
		SearchTerm:       term,
		IncludeItemTypes: searchItemTypes,
		Recursive:        true,
		Limit:            limit,
	})
}

// SampleItems returns up to limit random items under parentID.
func (c *Core) SampleItems(ctx context.Context, userID, parentID string, limit int) []MediaItem {
	return c.items(ctx, "sample_items", userID, mediabrowser.ItemsQuery{
		ParentID:         parentID,
		IncludeItemTypes: sampleItemTypes,
		Recursive:        true,
		Limit:            limit,
		SortBy:           "Random",
		Fields:           "ParentId",
	})
}

func (c *Core) items(ctx context.Context, op, userID string, q mediabrowser.ItemsQuery) []MediaItem {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = c.client.Items(ctx, userID, q)
		return err
	})
	if err != nil {
		return []MediaItem{}
	}
	return NormalizeItems(res.Items)
}

// GetItemDetails returns one item with media sources, or nil.
func (c *Core) GetItemDetails(ctx context.Context, userID, itemID string) *MediaItem {
	var bi *mediabrowser.BaseItem
	err := c.Call(ctx, "get_item", func(ctx context.Context) error {
		var err error
		bi, err = c.client.Item(ctx, userID, itemID)
		return err
	})
	if err != nil || bi == nil || bi.ID == "" {
		return nil
	}
	item := NormalizeItem(*bi)
	return &item
}

// GetSeriesSeasons lists a series' seasons.
func (c *Core) GetSeriesSeasons(ctx context.Context, userID, seriesID string) []MediaItem {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "get_seasons", func(ctx context.Context) error {
		var err error
		res, err = c.client.Seasons(ctx, userID, seriesID)
		return err
	})
	if err != nil {
		return []MediaItem{}
	}
	return NormalizeItems(res.Items)
}

// GetSeasonEpisodes lists a season's episodes.
func (c *Core) GetSeasonEpisodes(ctx context.Context, userID, seriesID, seasonID string) []MediaItem {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "get_episodes", func(ctx context.Context) error {
		var err error
		res, err = c.client.Episodes(ctx, userID, seriesID, seasonID)
		return err
	})
	if err != nil {
		return []MediaItem{}
	}
	return NormalizeItems(res.Items)
}

// ReportPlaybackStart forwards a start report.
func (c *Core) ReportPlaybackStart(ctx context.Context, userID, itemID string, positionTicks int64) bool {
	return c.report(ctx, "report_start", userID, itemID, positionTicks, c.client.ReportPlaying)
}

// ReportPlaybackProgress forwards a progress report.
func (c *Core) ReportPlaybackProgress(ctx context.Context, userID, itemID string, positionTicks int64) bool {
	return c.report(ctx, "report_progress", userID, itemID, positionTicks, c.client.ReportProgress)
}

// ReportPlaybackStop forwards a stop report.
func (c *Core) ReportPlaybackStop(ctx context.Context, userID, itemID string, positionTicks int64) bool {
	return c.report(ctx, "report_stop", userID, itemID, positionTicks, c.client.ReportStopped)
}

func (c *Core) report(ctx context.Context, op, userID, itemID string, ticks int64,
	send func(context.Context, mediabrowser.PlaybackReport) error) bool {
	if ticks < 0 {
		ticks = 0
	}
	err := c.Call(ctx, op, func(ctx context.Context) error {
		return send(ctx, mediabrowser.PlaybackReport{
			ItemID:        itemID,
			PositionTicks: ticks,
			CanSeek:       true,
		})
	})
	if err != nil {
		c.logger.Debug("playback report not acknowledged",
			slog.String("user_id", userID),
			slog.String("item_id", itemID),
			slog.String("operation", op),
		)
		return false
	}
	return true
}

// ListLiveChannels lists live TV channels.
func (c *Core) ListLiveChannels(ctx context.Context, userID string) []LiveChannel {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "list_live_channels", func(ctx context.Context) error {
		var err error
		res, err = c.client.LiveTvChannels(ctx, userID)
		return err
	})
	if err != nil {
		return []LiveChannel{}
	}
	out := make([]LiveChannel, 0, len(res.Items))
	for _, bi := range res.Items {
		ch := LiveChannel{
			ID:     bi.ID,
			Name:   bi.Name,
			Number: firstNonEmpty(bi.ChannelNumber, bi.Number),
		}
		if tag := bi.ImageTags[mediabrowser.ImagePrimary]; tag != "" {
			ch.ImageURL = ImageRef{ItemID: bi.ID, Kind: ImagePrimary, Tag: tag}.Path()
		}
		out = append(out, ch)
	}
	return out
}

// ListLivePrograms lists guide entries, optionally for some channels only.
func (c *Core) ListLivePrograms(ctx context.Context, userID string, channelIDs []string) []LiveProgram {
	var res *mediabrowser.QueryResult
	err := c.Call(ctx, "list_live_programs", func(ctx context.Context) error {
		var err error
		res, err = c.client.LiveTvPrograms(ctx, userID, channelIDs)
		return err
	})
	if err != nil {
		return []LiveProgram{}
	}
	out := make([]LiveProgram, 0, len(res.Items))
	for _, bi := range res.Items {
		if bi.StartDate == nil || bi.EndDate == nil {
			continue
		}
		out = append(out, LiveProgram{
			ID:           bi.ID,
			ChannelID:    bi.ChannelID,
			Name:         bi.Name,
			EpisodeTitle: bi.EpisodeTitle,
			Overview:     bi.Overview,
			Genres:       bi.Genres,
			Start:        bi.StartDate.UTC(),
			End:          bi.EndDate.UTC(),
		})
	}
	return out
}

// BuildImageURL returns a credentialed backend image URL.
func (c *Core) BuildImageURL(itemID string, kind ImageKind, tag string) string {
	q := url.Values{"quality": {"90"}}
	if tag != "" {
		q.Set("tag", tag)
	}
	return c.client.URL("/Items/"+url.PathEscape(itemID)+"/Images/"+kind.RemoteName(), q)
}

// ResolveRelativeURL resolves an HLS playlist reference against the item's
// stream directory.
func (c *Core) ResolveRelativeURL(itemID, rel, rawQuery string) string {
	base := "/Videos/" + url.PathEscape(itemID)
	cleaned := path.Clean(base + "/" + strings.TrimPrefix(rel, "/"))
	if !strings.HasPrefix(cleaned, base+"/") {
		return ""
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return c.client.URL(cleaned, q)
}

// EndSession logs out server-side when a session token is held. Key
// authentication has no session to end.
func (c *Core) EndSession(ctx context.Context) {
	token := c.client.Token()
	if token == "" {
		return
	}
	if token != c.credentialKey {
		_ = c.Call(ctx, "logout", func(ctx context.Context) error {
			return c.client.Logout(ctx)
		})
	}
	c.client.SetToken("")
}

// StreamPath returns the backend resource path for a stream of itemID.
// Audio items use the audio endpoints; segmented streams use master.m3u8.
func StreamPath(itemID string, opts StreamOptions) string {
	root := "/Videos/"
	if opts.ItemKind == KindAudio {
		root = "/Audio/"
	}
	resource := "/stream"
	if opts.Mode == StreamSegmented {
		resource = "/master.m3u8"
	}
	return root + url.PathEscape(itemID) + resource
}

// CommonStreamQuery sets the parameters both flavors name identically.
func CommonStreamQuery(q url.Values, deviceID string, opts StreamOptions) {
	if opts.MediaSourceID != "" {
		q.Set("MediaSourceId", opts.MediaSourceID)
	}
	if opts.DeviceID != "" {
		deviceID = opts.DeviceID
	}
	if deviceID != "" {
		q.Set("DeviceId", deviceID)
	}
	if opts.PlaySessionID != "" {
		q.Set("PlaySessionId", opts.PlaySessionID)
	}
	if opts.AudioStreamIndex != nil {
		q.Set("AudioStreamIndex", strconv.Itoa(*opts.AudioStreamIndex))
	}
	if opts.Mode == StreamDirect {
		return
	}
	if len(opts.VideoCodecs) > 0 && opts.ItemKind != KindAudio {
		q.Set("VideoCodec", strings.Join(opts.VideoCodecs, ","))
	}
	if len(opts.AudioCodecs) > 0 {
		q.Set("AudioCodec", strings.Join(opts.AudioCodecs, ","))
	}
	if opts.MaxBitrate > 0 {
		q.Set("MaxStreamingBitrate", strconv.FormatInt(opts.MaxBitrate, 10))
	}
}
