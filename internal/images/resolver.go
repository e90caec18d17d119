// Package images resolves which backend image represents an item and
// renders placeholders when none exists.
package images

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/observability"
)

// DefaultSiblingScanLimit bounds the sibling scan.
const DefaultSiblingScanLimit = 50

// Resolver picks a backdrop for an item. The order is the item's own
// backdrop tag, its backdrop array, its primary tag, an inherited parent
// backdrop, then any usable image among up to SiblingScanLimit siblings in
// random order.
type Resolver struct {
	siblingLimit int
	logger       *slog.Logger
}

// NewResolver creates a resolver. A non-positive limit uses the default.
func NewResolver(siblingLimit int, logger *slog.Logger) *Resolver {
	if siblingLimit <= 0 {
		siblingLimit = DefaultSiblingScanLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		siblingLimit: siblingLimit,
		logger:       observability.WithComponent(logger, "images"),
	}
}

// Backdrop returns the best image for item or nil.
func (r *Resolver) Backdrop(ctx context.Context, adapter backend.Adapter, userID string, item *backend.MediaItem) *backend.ImageRef {
	if item == nil {
		return nil
	}
	if ref := item.Images.BestBackdrop(item.BackendID); ref != nil {
		return ref
	}
	if ref := item.Images.ParentBackdrop(); ref != nil {
		return ref
	}
	return r.scanSiblings(ctx, adapter, userID, item)
}

// BackdropByID fetches the item then resolves its backdrop.
func (r *Resolver) BackdropByID(ctx context.Context, adapter backend.Adapter, userID, itemID string) *backend.ImageRef {
	return r.Backdrop(ctx, adapter, userID, adapter.GetItemDetails(ctx, userID, itemID))
}

func (r *Resolver) scanSiblings(ctx context.Context, adapter backend.Adapter, userID string, item *backend.MediaItem) *backend.ImageRef {
	parent := item.ParentID
	if parent == "" {
		parent = item.SeriesID
	}
	if parent == "" || adapter == nil {
		return nil
	}

	siblings := adapter.SampleItems(ctx, userID, parent, r.siblingLimit)
	for i := range siblings {
		if siblings[i].BackendID == item.BackendID {
			continue
		}
		if ref := siblings[i].Images.BestBackdrop(siblings[i].BackendID); ref != nil {
			r.logger.Debug("using sibling image",
				slog.String("item_id", item.BackendID),
				slog.String("sibling_id", siblings[i].BackendID))
			return ref
		}
	}
	return nil
}
