package mediabrowser

import "time"

// Ticks per second in MediaBrowser time values (100ns units).
const TicksPerSecond = 10_000_000

// Item types used in queries and responses.
const (
	ItemTypeMovie         = "Movie"
	ItemTypeSeries        = "Series"
	ItemTypeSeason        = "Season"
	ItemTypeEpisode       = "Episode"
	ItemTypeAudio         = "Audio"
	ItemTypeMusicAlbum    = "MusicAlbum"
	ItemTypeTvChannel     = "TvChannel"
	ItemTypeCollection    = "CollectionFolder"
	ItemTypeBoxSet        = "BoxSet"
	ItemTypeUserView      = "UserView"
	ItemTypeLiveTvProgram = "Program"
)

// Media stream types.
const (
	StreamTypeVideo    = "Video"
	StreamTypeAudio    = "Audio"
	StreamTypeSubtitle = "Subtitle"
)

// Image types.
const (
	ImagePrimary  = "Primary"
	ImageBackdrop = "Backdrop"
	ImageThumb    = "Thumb"
	ImageLogo     = "Logo"
)

// PublicSystemInfo is returned by /System/Info/Public without authentication.
type PublicSystemInfo struct {
	ID              string `json:"Id"`
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	ProductName     string `json:"ProductName,omitempty"`
	LocalAddress    string `json:"LocalAddress,omitempty"`
	OperatingSystem string `json:"OperatingSystem,omitempty"`
}

// SystemInfo is returned by /System/Info for authenticated callers.
type SystemInfo struct {
	PublicSystemInfo
	HasPendingRestart bool `json:"HasPendingRestart"`
}

// UserPolicy carries the user's permissions.
type UserPolicy struct {
	IsAdministrator bool `json:"IsAdministrator"`
	IsDisabled      bool `json:"IsDisabled"`
}

// User is a media server account.
type User struct {
	ID       string      `json:"Id"`
	Name     string      `json:"Name"`
	ServerID string      `json:"ServerId,omitempty"`
	Policy   *UserPolicy `json:"Policy,omitempty"`
}

// IsAdministrator reports whether the account has administrator rights.
func (u User) IsAdministrator() bool {
	return u.Policy != nil && u.Policy.IsAdministrator
}

// AuthenticationResult is returned by /Users/AuthenticateByName.
type AuthenticationResult struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// UserItemData is per-user play state.
type UserItemData struct {
	PlayCount             int     `json:"PlayCount"`
	PlaybackPositionTicks int64   `json:"PlaybackPositionTicks"`
	PlayedPercentage      float64 `json:"PlayedPercentage"`
	Played                bool    `json:"Played"`
	IsFavorite            bool    `json:"IsFavorite"`
}

// MediaStream is one elementary stream of a media source.
type MediaStream struct {
	Index        int    `json:"Index"`
	Type         string `json:"Type"`
	Codec        string `json:"Codec,omitempty"`
	Language     string `json:"Language,omitempty"`
	Title        string `json:"Title,omitempty"`
	DisplayTitle string `json:"DisplayTitle,omitempty"`
	IsDefault    bool   `json:"IsDefault"`
	IsForced     bool   `json:"IsForced"`
	IsExternal   bool   `json:"IsExternal"`
	Channels     int    `json:"Channels,omitempty"`
	BitRate      int64  `json:"BitRate,omitempty"`
	Width        int    `json:"Width,omitempty"`
	Height       int    `json:"Height,omitempty"`
}

// MediaSource is one playable version of an item.
type MediaSource struct {
	ID                         string        `json:"Id"`
	Container                  string        `json:"Container,omitempty"`
	Protocol                   string        `json:"Protocol,omitempty"`
	Size                       int64         `json:"Size,omitempty"`
	Bitrate                    int64         `json:"Bitrate,omitempty"`
	RunTimeTicks               int64         `json:"RunTimeTicks,omitempty"`
	SupportsDirectPlay         bool          `json:"SupportsDirectPlay"`
	SupportsDirectStream       bool          `json:"SupportsDirectStream"`
	SupportsTranscoding        bool          `json:"SupportsTranscoding"`
	DefaultAudioStreamIndex    *int          `json:"DefaultAudioStreamIndex,omitempty"`
	DefaultSubtitleStreamIndex *int          `json:"DefaultSubtitleStreamIndex,omitempty"`
	MediaStreams               []MediaStream `json:"MediaStreams"`
}

// BaseItem is the MediaBrowser BaseItemDto subset this client reads.
type BaseItem struct {
	ID                      string            `json:"Id"`
	Name                    string            `json:"Name"`
	SortName                string            `json:"SortName,omitempty"`
	Type                    string            `json:"Type"`
	MediaType               string            `json:"MediaType,omitempty"`
	CollectionType          string            `json:"CollectionType,omitempty"`
	IsFolder                bool              `json:"IsFolder"`
	Overview                string            `json:"Overview,omitempty"`
	ProductionYear          int               `json:"ProductionYear,omitempty"`
	RunTimeTicks            int64             `json:"RunTimeTicks,omitempty"`
	Genres                  []string          `json:"Genres,omitempty"`
	CommunityRating         float64           `json:"CommunityRating,omitempty"`
	OfficialRating          string            `json:"OfficialRating,omitempty"`
	ImageTags               map[string]string `json:"ImageTags,omitempty"`
	BackdropImageTags       []string          `json:"BackdropImageTags,omitempty"`
	ParentBackdropItemID    string            `json:"ParentBackdropItemId,omitempty"`
	ParentBackdropImageTags []string          `json:"ParentBackdropImageTags,omitempty"`
	ParentID                string            `json:"ParentId,omitempty"`
	SeriesID                string            `json:"SeriesId,omitempty"`
	SeriesName              string            `json:"SeriesName,omitempty"`
	SeasonID                string            `json:"SeasonId,omitempty"`
	IndexNumber             *int              `json:"IndexNumber,omitempty"`
	ParentIndexNumber       *int              `json:"ParentIndexNumber,omitempty"`
	ChildCount              int               `json:"ChildCount,omitempty"`
	ChannelNumber           string            `json:"ChannelNumber,omitempty"`
	Number                  string            `json:"Number,omitempty"`
	ChannelID               string            `json:"ChannelId,omitempty"`
	ChannelName             string            `json:"ChannelName,omitempty"`
	EpisodeTitle            string            `json:"EpisodeTitle,omitempty"`
	StartDate               *time.Time        `json:"StartDate,omitempty"`
	EndDate                 *time.Time        `json:"EndDate,omitempty"`
	UserData                *UserItemData     `json:"UserData,omitempty"`
	MediaSources            []MediaSource     `json:"MediaSources,omitempty"`
	MediaStreams            []MediaStream     `json:"MediaStreams,omitempty"`
}

// PrimaryImageTag returns the primary image tag, if any.
func (i BaseItem) PrimaryImageTag() string {
	return i.ImageTags[ImagePrimary]
}

// QueryResult is a paged item list. TotalRecordCount is nil when the server
// omitted it, which some Emby endpoints do.
type QueryResult struct {
	Items            []BaseItem `json:"Items"`
	TotalRecordCount *int       `json:"TotalRecordCount,omitempty"`
	StartIndex       int        `json:"StartIndex,omitempty"`
}

// PlaybackReport is the body of the /Sessions/Playing endpoints.
type PlaybackReport struct {
	ItemID              string `json:"ItemId"`
	MediaSourceID       string `json:"MediaSourceId,omitempty"`
	PlaySessionID       string `json:"PlaySessionId,omitempty"`
	PositionTicks       int64  `json:"PositionTicks"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex,omitempty"`
	IsPaused            bool   `json:"IsPaused"`
	CanSeek             bool   `json:"CanSeek"`
	PlayMethod          string `json:"PlayMethod,omitempty"`
}
