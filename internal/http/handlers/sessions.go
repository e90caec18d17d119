package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/service"
)

// SessionHandler lists active session records.
type SessionHandler struct {
	auth *service.AuthService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(auth *service.AuthService) *SessionHandler {
	return &SessionHandler{auth: auth}
}

// Register registers the session routes with the API.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      "GET",
		Path:        "/api/v1/sessions",
		Summary:     "List active sessions",
		Description: "Returns logged-in devices, most recently active first. Informational only",
		Tags:        []string{"Sessions"},
	}, h.List)
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct {
	UserID string `query:"userId" doc:"Restrict to one media server user"`
}

// ListSessionsOutput is the output for listing sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []*models.ActiveSession `json:"sessions"`
	}
}

// List returns session records.
func (h *SessionHandler) List(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
	sessions, err := h.auth.Sessions(ctx, input.UserID)
	if err != nil {
		return nil, apiError(err)
	}
	resp := &ListSessionsOutput{}
	resp.Body.Sessions = nonNil(sessions)
	return resp, nil
}
