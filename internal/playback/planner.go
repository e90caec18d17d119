// Package playback turns a playable item into a backend stream plan,
// including audio track language negotiation and the ordered transcode
// fallbacks a client may walk after a playback failure.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/observability"
)

// Fallback variants, in the order a client should request them.
const (
	VariantForcedTranscode Variant = iota
	VariantForcedSegmented
	VariantUnmodified
)

// ReasonItemNotFound is the negotiation failure reason for unknown items.
const ReasonItemNotFound = "item not found"

// MaxVariant is the last fallback variant.
const MaxVariant = VariantUnmodified

// Variant selects one of the deterministic fallback plans.
type Variant int

func (v Variant) String() string {
	switch v {
	case VariantForcedTranscode:
		return "forced-transcode-direct"
	case VariantForcedSegmented:
		return "forced-transcode-segmented"
	case VariantUnmodified:
		return "unmodified-default"
	default:
		return fmt.Sprintf("variant-%d", int(v))
	}
}

// Config holds stream planning preferences.
type Config struct {
	PreferredLanguages []string
	Containers         []string
	VideoCodecs        []string
	AudioCodecs        []string
	MaxBitrate         int64
	// PositionalFallback picks the second audio track when a preferred
	// language is configured but no track carries language metadata.
	PositionalFallback bool
}

// AudioTrack is one selectable audio stream.
type AudioTrack struct {
	Index               int    `json:"index"`
	Language            string `json:"language,omitempty"`
	Title               string `json:"title,omitempty"`
	IsDefault           bool   `json:"isDefault"`
	IsPreferredLanguage bool   `json:"isPreferredLanguage"`
}

// Selection is the audio track choice for a plan.
type Selection struct {
	Index  int
	Forced bool
	// Reason is "language", "title", "positional", "explicit" or "default".
	Reason string
}

// StreamPlan is a resolved playback request.
type StreamPlan struct {
	ItemID        string
	MediaSourceID string
	Kind          backend.ItemKind
	// BackendURL carries the access token and never leaves the server.
	BackendURL      string
	Mode            backend.StreamMode
	ContainerHints  []string
	AudioTrackIndex *int
	TranscodeForced bool
	// Variant is the fallback variant used, or -1 for the negotiated plan.
	Variant int
}

// Request describes one play request.
type Request struct {
	ItemID string
	UserID string
	// AudioIndex is an explicit client track choice.
	AudioIndex *int
	// Variant selects a fallback plan; nil negotiates the default plan.
	Variant       *int
	PlaySessionID string
}

// Planner builds stream plans. It is safe for concurrent use.
type Planner struct {
	cfg     Config
	matcher *LanguageMatcher
	group   singleflight.Group
	logger  *slog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(cfg Config, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		cfg:     cfg,
		matcher: NewLanguageMatcher(cfg.PreferredLanguages),
		logger:  observability.WithComponent(logger, "playback"),
	}
}

// Item fetches item details, coalescing concurrent lookups of the same item.
// The shared fetch is detached from any single caller; each caller waits on
// its own context.
func (p *Planner) Item(ctx context.Context, adapter backend.Adapter, userID, itemID string) (*backend.MediaItem, error) {
	key := fmt.Sprintf("%p/%s/%s", adapter, userID, itemID)
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		item := adapter.GetItemDetails(fetchCtx, userID, itemID)
		if item == nil {
			return nil, &backend.PlaybackNegotiationError{ItemID: itemID, Reason: ReasonItemNotFound, NextVariant: -1}
		}
		return item, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*backend.MediaItem), nil
	}
}

// PrimarySource returns the source plans are built from.
func PrimarySource(item *backend.MediaItem) (*backend.MediaSource, error) {
	if item == nil || len(item.MediaSources) == 0 {
		id := ""
		if item != nil {
			id = item.BackendID
		}
		return nil, &backend.PlaybackNegotiationError{ItemID: id, Reason: "no media sources", NextVariant: -1}
	}
	src := &item.MediaSources[0]
	if !src.HasVideo() && len(src.AudioStreams()) == 0 {
		return nil, &backend.PlaybackNegotiationError{ItemID: item.BackendID, Reason: "no video or audio stream", NextVariant: -1}
	}
	return src, nil
}

// AudioTracks lists the item's audio tracks and the recommended index, or
// nil when the item has no audio.
func (p *Planner) AudioTracks(item *backend.MediaItem) ([]AudioTrack, *int) {
	tracks := []AudioTrack{}
	src, err := PrimarySource(item)
	if err != nil {
		return tracks, nil
	}
	for _, st := range src.AudioStreams() {
		tracks = append(tracks, AudioTrack{
			Index:               st.Index,
			Language:            st.Language,
			Title:               st.Title,
			IsDefault:           st.IsDefault,
			IsPreferredLanguage: p.matcher.Match(st.Language, st.Title),
		})
	}
	if len(tracks) == 0 {
		return tracks, nil
	}
	sel := p.Recommend(src)
	return tracks, &sel.Index
}

// Recommend picks the audio track for a source. A preferred-language match
// pins the track and forces a transcode; otherwise the backend default
// plays unforced.
func (p *Planner) Recommend(src *backend.MediaSource) Selection {
	audio := src.AudioStreams()
	def := defaultAudioIndex(src, audio)
	if len(audio) == 0 || !p.matcher.Enabled() {
		return Selection{Index: def, Reason: "default"}
	}

	for _, st := range audio {
		if p.matcher.MatchTag(st.Language) {
			return Selection{Index: st.Index, Forced: true, Reason: "language"}
		}
		if p.matcher.MatchTitle(st.Title) {
			return Selection{Index: st.Index, Forced: true, Reason: "title"}
		}
	}

	if p.cfg.PositionalFallback && len(audio) >= 2 && !anyLanguageMetadata(audio) {
		return Selection{Index: audio[1].Index, Forced: true, Reason: "positional"}
	}
	return Selection{Index: def, Reason: "default"}
}

// Plan resolves a play request against the adapter.
func (p *Planner) Plan(ctx context.Context, adapter backend.Adapter, req Request) (*StreamPlan, error) {
	item, err := p.Item(ctx, adapter, req.UserID, req.ItemID)
	if err != nil {
		return nil, err
	}
	src, err := PrimarySource(item)
	if err != nil {
		return nil, err
	}

	plan, err := p.build(item, src, req)
	if err != nil {
		return nil, err
	}

	opts := backend.StreamOptions{
		Mode:             plan.Mode,
		ItemKind:         item.Kind,
		MediaSourceID:    src.ID,
		AudioStreamIndex: plan.AudioTrackIndex,
		Containers:       plan.ContainerHints,
		VideoCodecs:      p.cfg.VideoCodecs,
		AudioCodecs:      p.cfg.AudioCodecs,
		MaxBitrate:       p.cfg.MaxBitrate,
		PlaySessionID:    req.PlaySessionID,
	}
	if !plan.TranscodeForced && plan.Mode == backend.StreamDirect {
		// The backend default track plays when nothing is pinned.
		opts.AudioStreamIndex = nil
	}
	plan.BackendURL = adapter.BuildStreamURL(item.BackendID, req.UserID, opts)

	p.logger.Debug("stream planned",
		slog.String("item_id", item.BackendID),
		slog.String("mode", string(plan.Mode)),
		slog.Bool("transcode_forced", plan.TranscodeForced),
		slog.Int("variant", plan.Variant),
	)
	return plan, nil
}

func (p *Planner) build(item *backend.MediaItem, src *backend.MediaSource, req Request) (*StreamPlan, error) {
	audio := src.AudioStreams()
	def := defaultAudioIndex(src, audio)

	plan := &StreamPlan{
		ItemID:         item.BackendID,
		MediaSourceID:  src.ID,
		Kind:           item.Kind,
		Mode:           backend.StreamDirect,
		ContainerHints: p.cfg.Containers,
		Variant:        -1,
	}

	var sel Selection
	switch {
	case req.AudioIndex != nil && !hasStream(audio, *req.AudioIndex):
		// The unmodified variant ignores the track choice and can still play.
		if req.Variant != nil && Variant(*req.Variant) == VariantUnmodified {
			sel = Selection{Index: def, Reason: "default"}
			break
		}
		return nil, &backend.PlaybackNegotiationError{
			ItemID:      item.BackendID,
			Reason:      fmt.Sprintf("unknown audio track %d", *req.AudioIndex),
			NextVariant: int(VariantUnmodified),
		}
	case req.AudioIndex != nil:
		sel = Selection{Index: *req.AudioIndex, Forced: *req.AudioIndex != def, Reason: "explicit"}
	case item.Kind == backend.KindAudio:
		sel = Selection{Index: def, Reason: "default"}
	default:
		sel = p.Recommend(src)
	}
	if len(audio) > 0 {
		idx := sel.Index
		plan.AudioTrackIndex = &idx
	}

	if req.Variant == nil {
		plan.TranscodeForced = sel.Forced
		switch {
		case sel.Forced:
			plan.Mode = backend.StreamTranscode
		case !src.SupportsDirectPlay && src.SupportsTranscoding:
			plan.Mode = backend.StreamTranscode
		}
		return plan, nil
	}

	v := Variant(*req.Variant)
	plan.Variant = *req.Variant
	switch v {
	case VariantForcedTranscode:
		plan.Mode = backend.StreamTranscode
		plan.TranscodeForced = true
	case VariantForcedSegmented:
		plan.Mode = backend.StreamSegmented
		plan.TranscodeForced = true
		plan.ContainerHints = []string{"ts"}
	case VariantUnmodified:
		plan.Mode = backend.StreamDirect
		plan.TranscodeForced = false
		plan.AudioTrackIndex = nil
		if len(audio) > 0 {
			plan.AudioTrackIndex = &def
		}
	default:
		return nil, &backend.PlaybackNegotiationError{
			ItemID:      item.BackendID,
			Reason:      "no fallback variants left",
			NextVariant: -1,
		}
	}
	return plan, nil
}

// Fallback describes one fallback variant for a client.
type Fallback struct {
	Variant    int    `json:"variant"`
	Name       string `json:"name"`
	AudioTrack *int   `json:"audioTrack,omitempty"`
	URL        string `json:"url"`
}

// Fallbacks lists the fallback variants for (itemID, audioIndex) in order.
// The URLs point at the stream proxy.
func Fallbacks(itemID string, audioIndex *int) []Fallback {
	out := make([]Fallback, 0, int(MaxVariant)+1)
	for v := VariantForcedTranscode; v <= MaxVariant; v++ {
		f := Fallback{Variant: int(v), Name: v.String(), URL: ProxyURL(itemID, audioIndex, &v)}
		if audioIndex != nil && v != VariantUnmodified {
			idx := *audioIndex
			f.AudioTrack = &idx
		}
		out = append(out, f)
	}
	return out
}

// NextVariant returns the variant to request after current failed, or -1.
func NextVariant(current *int) int {
	if current == nil {
		return int(VariantForcedTranscode)
	}
	if *current >= int(MaxVariant) {
		return -1
	}
	return *current + 1
}

// ProxyURL builds the relative stream proxy path for a plan request.
func ProxyURL(itemID string, audioIndex *int, variant *Variant) string {
	var params []string
	if audioIndex != nil && (variant == nil || *variant != VariantUnmodified) {
		params = append(params, fmt.Sprintf("audioTrack=%d", *audioIndex))
	}
	if variant != nil {
		params = append(params, fmt.Sprintf("variant=%d", int(*variant)))
	}
	u := "/video-proxy/" + url.PathEscape(itemID)
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

func defaultAudioIndex(src *backend.MediaSource, audio []backend.MediaStream) int {
	if src.DefaultAudioIndex != nil && hasStream(audio, *src.DefaultAudioIndex) {
		return *src.DefaultAudioIndex
	}
	for _, st := range audio {
		if st.IsDefault {
			return st.Index
		}
	}
	if len(audio) > 0 {
		return audio[0].Index
	}
	return -1
}

func hasStream(streams []backend.MediaStream, index int) bool {
	for _, st := range streams {
		if st.Index == index {
			return true
		}
	}
	return false
}

func anyLanguageMetadata(audio []backend.MediaStream) bool {
	for _, st := range audio {
		if st.Language != "" && !strings.EqualFold(st.Language, "und") {
			return true
		}
	}
	return false
}
