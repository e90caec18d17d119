package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/images"
)

// LibraryHandler handles catalog browsing through the active connection.
type LibraryHandler struct {
	resolver *images.Resolver
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(resolver *images.Resolver) *LibraryHandler {
	return &LibraryHandler{resolver: resolver}
}

// Register registers the library routes with the API.
func (h *LibraryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listLibraries",
		Method:      "GET",
		Path:        "/api/v1/libraries",
		Summary:     "List libraries",
		Description: "Returns the user's library views, deduplicated",
		Tags:        []string{"Library"},
	}, h.ListLibraries)

	huma.Register(api, huma.Operation{
		OperationID: "listLibraryItems",
		Method:      "GET",
		Path:        "/api/v1/libraries/{id}/items",
		Summary:     "List library items",
		Description: "Returns one page of a library",
		Tags:        []string{"Library"},
	}, h.ListItems)

	huma.Register(api, huma.Operation{
		OperationID: "search",
		Method:      "GET",
		Path:        "/api/v1/search",
		Summary:     "Search",
		Description: "Searches the catalog by name",
		Tags:        []string{"Library"},
	}, h.Search)

	huma.Register(api, huma.Operation{
		OperationID: "getItem",
		Method:      "GET",
		Path:        "/api/v1/items/{id}",
		Summary:     "Get item",
		Description: "Returns an item including its media sources and a resolved backdrop",
		Tags:        []string{"Library"},
	}, h.GetItem)

	huma.Register(api, huma.Operation{
		OperationID: "listSeasons",
		Method:      "GET",
		Path:        "/api/v1/series/{id}/seasons",
		Summary:     "List seasons",
		Tags:        []string{"Library"},
	}, h.ListSeasons)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      "GET",
		Path:        "/api/v1/series/{id}/seasons/{seasonId}/episodes",
		Summary:     "List episodes",
		Tags:        []string{"Library"},
	}, h.ListEpisodes)
}

// ListLibrariesInput is the input for listing libraries.
type ListLibrariesInput struct{}

// ListLibrariesOutput is the output for listing libraries.
type ListLibrariesOutput struct {
	Body struct {
		Libraries []backend.Library `json:"libraries"`
	}
}

// ListLibraries returns the user's libraries.
func (h *LibraryHandler) ListLibraries(ctx context.Context, _ *ListLibrariesInput) (*ListLibrariesOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ListLibrariesOutput{}
	resp.Body.Libraries = nonNil(state.Adapter.ListLibraries(ctx, state.Auth.UserID))
	return resp, nil
}

// ListItemsInput is the input for listing library items.
type ListItemsInput struct {
	ID         string `path:"id" doc:"Library ID"`
	Limit      int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	StartIndex int    `query:"startIndex" minimum:"0" doc:"Offset; wins over page"`
	Page       int    `query:"page" minimum:"0" doc:"1-based page number"`
}

// ItemsPageOutput is one page of items.
type ItemsPageOutput struct {
	Body struct {
		Items      []backend.MediaItem `json:"items"`
		Pagination Pagination          `json:"pagination"`
	}
}

// ListItems returns one page of a library.
func (h *LibraryHandler) ListItems(ctx context.Context, input *ListItemsInput) (*ItemsPageOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset := resolvePage(input.Limit, input.StartIndex, input.Page)
	items, total := state.Adapter.ListLibraryItems(ctx, state.Auth.UserID, input.ID, limit, offset)

	resp := &ItemsPageOutput{}
	resp.Body.Items = nonNil(items)
	resp.Body.Pagination = newPagination(limit, offset, total)
	return resp, nil
}

// SearchInput is the input for searching.
type SearchInput struct {
	Query string `query:"q" doc:"Search term"`
	Limit int    `query:"limit" minimum:"0" maximum:"200" doc:"Maximum results (default 50)"`
}

// ItemsOutput is a plain item list.
type ItemsOutput struct {
	Body struct {
		Items []backend.MediaItem `json:"items"`
	}
}

// Search searches the catalog.
func (h *LibraryHandler) Search(ctx context.Context, input *SearchInput) (*ItemsOutput, error) {
	term := strings.TrimSpace(input.Query)
	if term == "" {
		return nil, huma.Error400BadRequest("q is required")
	}
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	resp := &ItemsOutput{}
	resp.Body.Items = nonNil(state.Adapter.Search(ctx, state.Auth.UserID, term, limit))
	return resp, nil
}

// ItemIDInput identifies one item.
type ItemIDInput struct {
	ID string `path:"id" doc:"Item ID"`
}

// ItemOutput wraps one item.
type ItemOutput struct {
	Body *backend.MediaItem
}

// GetItem returns one item. An item without its own backdrop gets the
// first usable inherited or sibling image.
func (h *LibraryHandler) GetItem(ctx context.Context, input *ItemIDInput) (*ItemOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	item := state.Adapter.GetItemDetails(ctx, state.Auth.UserID, input.ID)
	if item == nil {
		return nil, huma.Error404NotFound("item not found")
	}
	if item.BackdropURL == "" && h.resolver != nil {
		if ref := h.resolver.Backdrop(ctx, state.Adapter, state.Auth.UserID, item); ref != nil {
			item.BackdropURL = ref.Path()
		}
	}
	return &ItemOutput{Body: item}, nil
}

// ListSeasons returns a series' seasons.
func (h *LibraryHandler) ListSeasons(ctx context.Context, input *ItemIDInput) (*ItemsOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ItemsOutput{}
	resp.Body.Items = nonNil(state.Adapter.GetSeriesSeasons(ctx, state.Auth.UserID, input.ID))
	return resp, nil
}

// ListEpisodesInput is the input for listing a season's episodes.
type ListEpisodesInput struct {
	ID       string `path:"id" doc:"Series ID"`
	SeasonID string `path:"seasonId" doc:"Season ID"`
}

// ListEpisodes returns a season's episodes.
func (h *LibraryHandler) ListEpisodes(ctx context.Context, input *ListEpisodesInput) (*ItemsOutput, error) {
	state, err := authenticatedState(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ItemsOutput{}
	resp.Body.Items = nonNil(state.Adapter.GetSeasonEpisodes(ctx, state.Auth.UserID, input.ID, input.SeasonID))
	return resp, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
