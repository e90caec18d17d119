// Package handlers provides HTTP handlers for the mediabridge API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/playback"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// StatusClientClosedRequest is reported when the caller went away before a
// result was ready.
const StatusClientClosedRequest = 499

// Pagination limits for library listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// NegotiationError is the 422 body returned when no playable stream plan
// could be produced. NextVariant is null when no fallback is left.
type NegotiationError struct {
	Status      int                 `json:"status"`
	Title       string              `json:"title"`
	Detail      string              `json:"detail"`
	ItemID      string              `json:"itemId"`
	NextVariant *int                `json:"nextVariant"`
	NextURL     string              `json:"nextUrl,omitempty"`
	Fallbacks   []playback.Fallback `json:"fallbacks,omitempty"`
}

func (e *NegotiationError) Error() string { return e.Detail }

// GetStatus implements huma.StatusError.
func (e *NegotiationError) GetStatus() int { return e.Status }

func negotiationError(err *backend.PlaybackNegotiationError, audioIndex *int) *NegotiationError {
	out := &NegotiationError{
		Status: http.StatusUnprocessableEntity,
		Title:  http.StatusText(http.StatusUnprocessableEntity),
		Detail: err.Error(),
		ItemID: err.ItemID,
	}
	if err.NextVariant >= 0 {
		next := err.NextVariant
		v := playback.Variant(next)
		out.NextVariant = &next
		out.NextURL = playback.ProxyURL(err.ItemID, audioIndex, &v)
		out.Fallbacks = playback.Fallbacks(err.ItemID, audioIndex)
	}
	return out
}

// apiError maps domain errors to HTTP errors. Authentication failures are
// deliberately generic.
func apiError(err error) error {
	if err == nil {
		return nil
	}

	var authErr *backend.AuthenticationError
	var negErr *backend.PlaybackNegotiationError
	var valErr models.ErrValidation
	var statusErr huma.StatusError

	switch {
	case errors.As(err, &statusErr):
		return err
	case errors.Is(err, context.Canceled):
		return huma.NewError(StatusClientClosedRequest, "client closed request")
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("media server timed out")
	case errors.As(err, &authErr):
		return huma.Error401Unauthorized("authentication failed")
	case errors.Is(err, backend.ErrNotAuthenticated):
		return huma.Error401Unauthorized("not authenticated")
	case errors.Is(err, backend.ErrNoActiveConnection):
		return huma.Error503ServiceUnavailable("no active media server connection")
	case errors.Is(err, models.ErrConnectionNotFound):
		return huma.Error404NotFound("connection not found")
	case errors.As(err, &negErr):
		return negotiationError(negErr, nil)
	case errors.As(err, &valErr),
		errors.Is(err, models.ErrURLRequired),
		errors.Is(err, models.ErrInvalidURL),
		errors.Is(err, models.ErrInvalidBackendKind),
		errors.Is(err, models.ErrInvalidPort),
		errors.Is(err, models.ErrItemIDRequired),
		errors.Is(err, backend.ErrUnknownBackendKind):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, session.ErrStaleConnection):
		return huma.Error409Conflict("active connection changed, retry")
	case backend.IsConnectivity(err):
		return huma.Error502BadGateway("media server unreachable")
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

// connectedState returns the request's snapshot or 503 when no connection
// is active.
func connectedState(ctx context.Context) (*session.State, error) {
	state := session.FromContext(ctx)
	if !state.Connected() {
		return nil, apiError(backend.ErrNoActiveConnection)
	}
	return state, nil
}

// authenticatedState returns the request's snapshot or an error when it
// carries no credential.
func authenticatedState(ctx context.Context) (*session.State, error) {
	state, err := connectedState(ctx)
	if err != nil {
		return nil, err
	}
	if !state.Authenticated() {
		return nil, apiError(backend.ErrNotAuthenticated)
	}
	return state, nil
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	StartIndex  int  `json:"startIndex"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// resolvePage turns limit/startIndex/page query values into a limit and an
// offset. An explicit startIndex wins over page.
func resolvePage(limit, startIndex, page int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if startIndex > 0 {
		return limit, startIndex
	}
	if page > 1 {
		return limit, (page - 1) * limit
	}
	return limit, 0
}

func newPagination(limit, offset, total int) Pagination {
	p := Pagination{
		Page:        offset/limit + 1,
		Limit:       limit,
		StartIndex:  offset,
		TotalItems:  total,
		HasPrevious: offset > 0,
	}
	if total > 0 {
		p.TotalPages = (total + limit - 1) / limit
	}
	p.HasNext = offset+limit < total
	return p
}

func parseULID(id string) (models.ULID, error) {
	u, err := models.ParseULID(id)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest(fmt.Sprintf("invalid id %q", id))
	}
	return u, nil
}
