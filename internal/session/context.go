package session

import (
	"context"
	"net/http"
)

type contextKey string

const (
	stateKey     contextKey = "session_state"
	sessionIDKey contextKey = "session_id"
)

// HeaderSessionID carries the session id for clients without cookies.
const HeaderSessionID = "X-Session-ID"

// WithState returns a context carrying s.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

// FromContext returns the snapshot resolved for this request, or an empty
// disconnected State.
func FromContext(ctx context.Context) *State {
	if s, ok := ctx.Value(stateKey).(*State); ok && s != nil {
		return s
	}
	return &State{}
}

// WithSessionID returns a context carrying the client session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the client session id, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// Middleware resolves the current snapshot and the client session id once
// per request and threads both through the request context.
func Middleware(reg *Registry, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithState(r.Context(), reg.Current())
			if id := RequestSessionID(r, cookieName); id != "" {
				ctx = WithSessionID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestSessionID reads the session id from the cookie, falling back to
// the X-Session-ID header.
func RequestSessionID(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(HeaderSessionID)
}
