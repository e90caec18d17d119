package mediabrowser

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Fields requested for item listings so normalization has what it needs.
const DefaultItemFields = "Overview,Genres,SortName,ProductionYear,CommunityRating,ParentId,MediaSources,MediaStreams,ChildCount"

// ItemsQuery holds the common /Items query parameters.
type ItemsQuery struct {
	ParentID         string
	SearchTerm       string
	IncludeItemTypes []string
	IDs              []string
	StartIndex       int
	Limit            int
	Recursive        bool
	SortBy           string
	SortOrder        string
	Fields           string
}

// Values renders the query.
func (q ItemsQuery) Values() url.Values {
	v := url.Values{}
	if q.ParentID != "" {
		v.Set("ParentId", q.ParentID)
	}
	if q.SearchTerm != "" {
		v.Set("SearchTerm", q.SearchTerm)
	}
	if len(q.IncludeItemTypes) > 0 {
		v.Set("IncludeItemTypes", strings.Join(q.IncludeItemTypes, ","))
	}
	if len(q.IDs) > 0 {
		v.Set("Ids", strings.Join(q.IDs, ","))
	}
	if q.StartIndex > 0 {
		v.Set("StartIndex", strconv.Itoa(q.StartIndex))
	}
	if q.Limit > 0 {
		v.Set("Limit", strconv.Itoa(q.Limit))
	}
	if q.Recursive {
		v.Set("Recursive", "true")
	}
	if q.SortBy != "" {
		v.Set("SortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("SortOrder", q.SortOrder)
	}
	fields := q.Fields
	if fields == "" {
		fields = DefaultItemFields
	}
	v.Set("Fields", fields)
	v.Set("EnableImageTypes", "Primary,Backdrop,Thumb")
	return v
}

// PublicSystemInfo probes the server without credentials.
func (c *Client) PublicSystemInfo(ctx context.Context) (*PublicSystemInfo, error) {
	var info PublicSystemInfo
	if _, err := c.Do(ctx, Request{Path: "/System/Info/Public", Anonymous: true}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SystemInfo returns authenticated system information; it validates a token.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if _, err := c.Do(ctx, Request{Path: "/System/Info"}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Users lists server accounts.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if _, err := c.Do(ctx, Request{Path: "/Users"}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Views lists the user's library views.
func (c *Client) Views(ctx context.Context, userID string) (*QueryResult, error) {
	var res QueryResult
	if _, err := c.Do(ctx, Request{Path: "/Users/" + url.PathEscape(userID) + "/Views"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Items queries the user's items.
func (c *Client) Items(ctx context.Context, userID string, q ItemsQuery) (*QueryResult, error) {
	var res QueryResult
	req := Request{Path: "/Users/" + url.PathEscape(userID) + "/Items", Query: q.Values()}
	if _, err := c.Do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Item fetches one item with its media sources.
func (c *Client) Item(ctx context.Context, userID, itemID string) (*BaseItem, error) {
	var item BaseItem
	req := Request{Path: "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(itemID)}
	if _, err := c.Do(ctx, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Seasons lists a series' seasons.
func (c *Client) Seasons(ctx context.Context, userID, seriesID string) (*QueryResult, error) {
	var res QueryResult
	req := Request{
		Path:  "/Shows/" + url.PathEscape(seriesID) + "/Seasons",
		Query: url.Values{"UserId": {userID}, "Fields": {DefaultItemFields}},
	}
	if _, err := c.Do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Episodes lists a season's episodes.
func (c *Client) Episodes(ctx context.Context, userID, seriesID, seasonID string) (*QueryResult, error) {
	var res QueryResult
	q := url.Values{"UserId": {userID}, "Fields": {DefaultItemFields}}
	if seasonID != "" {
		q.Set("SeasonId", seasonID)
	}
	req := Request{Path: "/Shows/" + url.PathEscape(seriesID) + "/Episodes", Query: q}
	if _, err := c.Do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LiveTvChannels lists live TV channels visible to the user.
func (c *Client) LiveTvChannels(ctx context.Context, userID string) (*QueryResult, error) {
	var res QueryResult
	req := Request{
		Path:  "/LiveTv/Channels",
		Query: url.Values{"UserId": {userID}, "EnableImageTypes": {"Primary"}, "SortBy": {"SortName"}},
	}
	if _, err := c.Do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LiveTvPrograms lists guide entries, optionally restricted to channelIDs.
func (c *Client) LiveTvPrograms(ctx context.Context, userID string, channelIDs []string) (*QueryResult, error) {
	var res QueryResult
	q := url.Values{"UserId": {userID}, "Fields": {"Overview,Genres"}, "SortBy": {"StartDate"}}
	if len(channelIDs) > 0 {
		q.Set("ChannelIds", strings.Join(channelIDs, ","))
	}
	if _, err := c.Do(ctx, Request{Path: "/LiveTv/Programs", Query: q}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReportPlaying reports playback start.
func (c *Client) ReportPlaying(ctx context.Context, r PlaybackReport) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/Sessions/Playing", Body: r}, nil)
	return err
}

// ReportProgress reports a playback position.
func (c *Client) ReportProgress(ctx context.Context, r PlaybackReport) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/Sessions/Playing/Progress", Body: r}, nil)
	return err
}

// ReportStopped reports playback stop.
func (c *Client) ReportStopped(ctx context.Context, r PlaybackReport) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/Sessions/Playing/Stopped", Body: r}, nil)
	return err
}

// Logout ends the server-side session for the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/Sessions/Logout"}, nil)
	return err
}
