package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/internal/http/middleware"
	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/service"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles login, logout and connection status.
type AuthHandler struct {
	auth    *service.AuthService
	limiter *middleware.OriginLimiter
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler. A nil limiter disables login
// throttling.
func NewAuthHandler(auth *service.AuthService, limiter *middleware.OriginLimiter, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		limiter: limiter,
		cookie:  cookie,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *AuthHandler) WithLogger(logger *slog.Logger) *AuthHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Register registers the auth routes with the API.
func (h *AuthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      "POST",
		Path:        "/api/v1/auth/login",
		Summary:     "Log in to a media server",
		Description: "Authenticates against a media server, stores the connection on first use and makes it active",
		Tags:        []string{"Auth"},
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      "POST",
		Path:        "/api/v1/auth/logout",
		Summary:     "Log out",
		Description: "Clears the media server credential and removes the caller's session record",
		Tags:        []string{"Auth"},
	}, h.Logout)

	huma.Register(api, huma.Operation{
		OperationID: "getConnectionStatus",
		Method:      "GET",
		Path:        "/api/v1/connection/status",
		Summary:     "Get connection status",
		Description: "Returns the active connection, the authenticated user and that user's sessions",
		Tags:        []string{"Auth"},
	}, h.Status)
}

// UserResponse is the authenticated media server user.
type UserResponse struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	IsAdministrator bool      `json:"isAdministrator"`
	ServerID        string    `json:"serverId,omitempty"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

func userResponse(a *session.AuthSession) *UserResponse {
	if a == nil {
		return nil
	}
	return &UserResponse{
		ID:              a.UserID,
		Username:        a.Username,
		IsAdministrator: a.IsAdministrator,
		ServerID:        a.ServerID,
		AuthenticatedAt: a.AuthenticatedAt,
	}
}

// LoginInput is the input for logging in.
type LoginInput struct {
	Body struct {
		BackendKind string `json:"backendKind" doc:"jellyfin or emby" example:"jellyfin"`
		URL         string `json:"url" doc:"Server base URL" example:"http://jellyfin.local"`
		Port        int    `json:"port,omitempty" doc:"Overrides the URL port when set" minimum:"0" maximum:"65535"`
		User        string `json:"user" minLength:"1"`
		Pass        string `json:"pass,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
	}
}

// LoginOutput is the output for logging in.
type LoginOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success    bool                `json:"success"`
		User       *UserResponse       `json:"user"`
		Connection *ConnectionResponse `json:"connection"`
		SessionID  string              `json:"sessionId,omitempty" doc:"Also accepted in the X-Session-ID header"`
	}
}

// Login authenticates and opens a session for the calling device.
func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	client := middleware.ClientFromContext(ctx)
	if h.limiter != nil {
		if ok, retry := h.limiter.Allow(client.Address); !ok {
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			return nil, huma.ErrorWithHeaders(
				huma.Error429TooManyRequests("too many login attempts"),
				http.Header{"Retry-After": []string{strconv.Itoa(secs)}},
			)
		}
	}

	result, err := h.auth.Login(ctx, service.LoginRequest{
		Kind:        input.Body.BackendKind,
		URL:         input.Body.URL,
		Port:        input.Body.Port,
		Username:    input.Body.User,
		Password:    input.Body.Pass,
		DisplayName: input.Body.DisplayName,
	}, service.ClientInfo{
		SessionID:        session.SessionIDFromContext(ctx),
		DeviceDescriptor: client.Descriptor,
		OriginAddress:    client.Address,
	})
	if err != nil {
		h.logger.Info("login failed",
			slog.String("origin", client.Address),
			slog.String("error", err.Error()))
		return nil, apiError(err)
	}

	resp := &LoginOutput{}
	resp.Body.Success = true
	resp.Body.User = userResponse(result.State.Auth)
	resp.Body.Connection = connectionResponse(result.State.Connection)
	if result.Record != nil {
		resp.Body.SessionID = result.Record.SessionID
		resp.SetCookie = []http.Cookie{h.sessionCookie(result.Record.SessionID, 0)}
	}
	return resp, nil
}

// LogoutInput is the input for logging out.
type LogoutInput struct{}

// LogoutOutput is the output for logging out.
type LogoutOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool `json:"success"`
	}
}

// Logout clears the credential and the caller's session record.
func (h *AuthHandler) Logout(ctx context.Context, _ *LogoutInput) (*LogoutOutput, error) {
	if err := h.auth.Logout(ctx, session.SessionIDFromContext(ctx)); err != nil {
		return nil, apiError(err)
	}
	resp := &LogoutOutput{SetCookie: []http.Cookie{h.sessionCookie("", -1)}}
	resp.Body.Success = true
	return resp, nil
}

// StatusInput is the input for the connection status.
type StatusInput struct{}

// StatusOutput is the output for the connection status.
type StatusOutput struct {
	Body struct {
		Connected     bool                    `json:"connected"`
		Authenticated bool                    `json:"authenticated"`
		Connection    *ConnectionResponse     `json:"connection"`
		User          *UserResponse           `json:"user"`
		Sessions      []*models.ActiveSession `json:"sessions"`
	}
}

// Status reports the active connection and touches the caller's record.
func (h *AuthHandler) Status(ctx context.Context, _ *StatusInput) (*StatusOutput, error) {
	state := session.FromContext(ctx)
	status, err := h.auth.Status(ctx, state, session.SessionIDFromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}

	resp := &StatusOutput{}
	resp.Body.Connected = state.Connected()
	resp.Body.Authenticated = state.Authenticated()
	resp.Body.Sessions = status.Sessions
	if state.Connected() {
		resp.Body.Connection = connectionResponse(state.Connection)
	}
	resp.Body.User = userResponse(state.Auth)
	return resp, nil
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) http.Cookie {
	return http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
