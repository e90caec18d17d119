package models

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// BackendKind identifies which media server REST flavor a connection speaks.
type BackendKind string

const (
	// BackendJellyfin uses unprefixed paths and the MediaBrowser Authorization header.
	BackendJellyfin BackendKind = "jellyfin"
	// BackendEmby uses /emby prefixed paths and X-Emby-* headers.
	BackendEmby BackendKind = "emby"
)

// Valid reports whether k is a supported backend kind.
func (k BackendKind) Valid() bool {
	return k == BackendJellyfin || k == BackendEmby
}

// ParseBackendKind normalizes user input such as "Jellyfin", "A" or "b".
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jellyfin", "a":
		return BackendJellyfin, nil
	case "emby", "b":
		return BackendEmby, nil
	default:
		return "", ErrInvalidBackendKind
	}
}

// Connection is a stored media server endpoint. At most one row is active.
type Connection struct {
	BaseModel

	// DisplayName is the label shown to users; defaults to the host.
	DisplayName string `gorm:"size:255" json:"displayName"`

	// BaseURL is the server root, without a trailing slash.
	BaseURL string `gorm:"not null;size:2048;uniqueIndex:idx_connection_endpoint" json:"baseUrl"`

	// Port overrides the URL port when non-zero.
	Port int `gorm:"not null;default:0;uniqueIndex:idx_connection_endpoint" json:"port"`

	// CredentialKey is a static API key used for key authentication.
	CredentialKey string `gorm:"size:255" json:"-"`

	// Kind selects the adapter.
	Kind BackendKind `gorm:"not null;size:20;uniqueIndex:idx_connection_endpoint" json:"backendKind"`

	// IsActive marks the connection all requests route through.
	IsActive bool `gorm:"not null;default:false;index" json:"isActive"`

	// LastConnectedAt records the last successful authentication.
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
}

// TableName returns the table name for Connection.
func (Connection) TableName() string {
	return "connections"
}

// HasCredentialKey reports whether key authentication is possible.
func (c *Connection) HasCredentialKey() bool {
	return c.CredentialKey != ""
}

// Sanitize trims whitespace and the trailing slash from user supplied fields.
func (c *Connection) Sanitize() {
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.CredentialKey = strings.TrimSpace(c.CredentialKey)
	if c.BaseURL != "" && !strings.Contains(c.BaseURL, "://") {
		c.BaseURL = "http://" + c.BaseURL
	}
}

// Validate checks the connection for required fields and formats.
func (c *Connection) Validate() error {
	if c.BaseURL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if !c.Kind.Valid() {
		return ErrInvalidBackendKind
	}
	return nil
}

// Endpoint returns the base URL with Port applied.
func (c *Connection) Endpoint() string {
	if c.Port == 0 {
		return c.BaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(c.Port))
	return strings.TrimRight(u.String(), "/")
}

// Label returns the display name, falling back to the host.
func (c *Connection) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if u, err := url.Parse(c.Endpoint()); err == nil && u.Host != "" {
		return u.Host
	}
	return c.BaseURL
}

// BeforeCreate generates the id and validates the row.
func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	c.Sanitize()
	return c.Validate()
}
