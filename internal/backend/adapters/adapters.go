// Package adapters wires the concrete backend flavors into a factory.
package adapters

import (
	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/backend/emby"
	"github.com/jmylchreest/mediabridge/internal/backend/jellyfin"
	"github.com/jmylchreest/mediabridge/internal/models"
)

// NewDefaultFactory returns a factory with every supported flavor registered.
func NewDefaultFactory(deps backend.Deps) *backend.Factory {
	f := backend.NewFactory(deps)
	f.Register(models.BackendJellyfin, jellyfin.New)
	f.Register(models.BackendEmby, emby.New)
	return f
}
