package middleware

import (
	"context"
	"net/http"

	"github.com/jmylchreest/mediabridge/internal/session"
)

type clientKey struct{}

// Client identifies the device behind a request.
type Client struct {
	Address    string
	Descriptor string
}

// ClientInfo records the client address and device descriptor in the
// request context for handlers that never see the raw request.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Client{Address: ClientAddress(r), Descriptor: session.DeviceDescriptor(r)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, c)))
	})
}

// ClientFromContext returns the client recorded by ClientInfo.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
