package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/service"
)

// ConnectionHandler handles stored media server connections.
type ConnectionHandler struct {
	connections *service.ConnectionService
}

// NewConnectionHandler creates a new connection handler.
func NewConnectionHandler(connections *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// Register registers the connection routes with the API.
func (h *ConnectionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listConnections",
		Method:      "GET",
		Path:        "/api/v1/connections",
		Summary:     "List connections",
		Description: "Returns all stored media server connections",
		Tags:        []string{"Connections"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getConnection",
		Method:      "GET",
		Path:        "/api/v1/connections/{id}",
		Summary:     "Get connection",
		Description: "Returns a stored media server connection by ID",
		Tags:        []string{"Connections"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID:   "createConnection",
		Method:        "POST",
		Path:          "/api/v1/connections",
		Summary:       "Create connection",
		Description:   "Stores a new media server connection without activating it",
		Tags:          []string{"Connections"},
		DefaultStatus: 201,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteConnection",
		Method:        "DELETE",
		Path:          "/api/v1/connections/{id}",
		Summary:       "Delete connection",
		Description:   "Deletes a connection and its playback positions; deleting the active connection disconnects",
		Tags:          []string{"Connections"},
		DefaultStatus: 204,
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "activateConnection",
		Method:      "POST",
		Path:        "/api/v1/connections/{id}/activate",
		Summary:     "Activate connection",
		Description: "Makes a stored connection the active one; authenticates with its credential key when present",
		Tags:        []string{"Connections"},
	}, h.Activate)

	huma.Register(api, huma.Operation{
		OperationID: "testConnection",
		Method:      "POST",
		Path:        "/api/v1/connections/{id}/test",
		Summary:     "Test connection",
		Description: "Checks whether the media server answers its public info endpoint",
		Tags:        []string{"Connections"},
	}, h.Test)
}

// ConnectionResponse is a stored connection. The credential key is never
// returned.
type ConnectionResponse struct {
	ID               string             `json:"id"`
	DisplayName      string             `json:"displayName"`
	Label            string             `json:"label"`
	BaseURL          string             `json:"baseUrl"`
	Port             int                `json:"port"`
	BackendKind      models.BackendKind `json:"backendKind"`
	IsActive         bool               `json:"isActive"`
	HasCredentialKey bool               `json:"hasCredentialKey"`
	LastConnectedAt  *time.Time         `json:"lastConnectedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func connectionResponse(c *models.Connection) *ConnectionResponse {
	if c == nil {
		return nil
	}
	return &ConnectionResponse{
		ID:               c.ID.String(),
		DisplayName:      c.DisplayName,
		Label:            c.Label(),
		BaseURL:          c.BaseURL,
		Port:             c.Port,
		BackendKind:      c.Kind,
		IsActive:         c.IsActive,
		HasCredentialKey: c.HasCredentialKey(),
		LastConnectedAt:  c.LastConnectedAt,
		CreatedAt:        c.CreatedAt,
	}
}

// ListConnectionsInput is the input for listing connections.
type ListConnectionsInput struct{}

// ListConnectionsOutput is the output for listing connections.
type ListConnectionsOutput struct {
	Body struct {
		Connections []*ConnectionResponse `json:"connections"`
	}
}

// List returns all stored connections.
func (h *ConnectionHandler) List(ctx context.Context, _ *ListConnectionsInput) (*ListConnectionsOutput, error) {
	conns, err := h.connections.List(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	resp := &ListConnectionsOutput{}
	resp.Body.Connections = make([]*ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		resp.Body.Connections = append(resp.Body.Connections, connectionResponse(c))
	}
	return resp, nil
}

// ConnectionIDInput identifies one connection.
type ConnectionIDInput struct {
	ID string `path:"id" doc:"Connection ID (ULID)"`
}

// ConnectionOutput wraps one connection.
type ConnectionOutput struct {
	Body *ConnectionResponse
}

// GetByID returns one connection.
func (h *ConnectionHandler) GetByID(ctx context.Context, input *ConnectionIDInput) (*ConnectionOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}
	conn, err := h.connections.GetByID(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	return &ConnectionOutput{Body: connectionResponse(conn)}, nil
}

// CreateConnectionInput is the input for creating a connection.
type CreateConnectionInput struct {
	Body struct {
		BackendKind   string `json:"backendKind" doc:"jellyfin or emby"`
		URL           string `json:"url"`
		Port          int    `json:"port,omitempty" minimum:"0" maximum:"65535"`
		DisplayName   string `json:"displayName,omitempty"`
		CredentialKey string `json:"credentialKey,omitempty" doc:"Static API key for key authentication"`
	}
}

// Create stores a new connection.
func (h *ConnectionHandler) Create(ctx context.Context, input *CreateConnectionInput) (*ConnectionOutput, error) {
	kind, err := models.ParseBackendKind(input.Body.BackendKind)
	if err != nil {
		return nil, apiError(err)
	}
	conn := &models.Connection{
		Kind:          kind,
		BaseURL:       input.Body.URL,
		Port:          input.Body.Port,
		DisplayName:   input.Body.DisplayName,
		CredentialKey: input.Body.CredentialKey,
	}
	if err := h.connections.Create(ctx, conn); err != nil {
		return nil, apiError(err)
	}
	return &ConnectionOutput{Body: connectionResponse(conn)}, nil
}

// DeleteConnectionOutput is the output for deleting a connection.
type DeleteConnectionOutput struct{}

// Delete removes a connection.
func (h *ConnectionHandler) Delete(ctx context.Context, input *ConnectionIDInput) (*DeleteConnectionOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.connections.Delete(ctx, id); err != nil {
		return nil, apiError(err)
	}
	return &DeleteConnectionOutput{}, nil
}

// ActivateConnectionOutput is the output for activating a connection.
type ActivateConnectionOutput struct {
	Body struct {
		Connection    *ConnectionResponse `json:"connection"`
		Authenticated bool                `json:"authenticated"`
		User          *UserResponse       `json:"user"`
	}
}

// Activate makes a stored connection the active one.
func (h *ConnectionHandler) Activate(ctx context.Context, input *ConnectionIDInput) (*ActivateConnectionOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}
	state, err := h.connections.Activate(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	resp := &ActivateConnectionOutput{}
	resp.Body.Connection = connectionResponse(state.Connection)
	resp.Body.Authenticated = state.Authenticated()
	resp.Body.User = userResponse(state.Auth)
	return resp, nil
}

// TestConnectionOutput is the output for testing a connection.
type TestConnectionOutput struct {
	Body struct {
		Reachable bool `json:"reachable"`
	}
}

// Test checks whether a stored connection's server is reachable.
func (h *ConnectionHandler) Test(ctx context.Context, input *ConnectionIDInput) (*TestConnectionOutput, error) {
	id, err := parseULID(input.ID)
	if err != nil {
		return nil, err
	}
	ok, err := h.connections.Test(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	resp := &TestConnectionOutput{}
	resp.Body.Reachable = ok
	return resp, nil
}
