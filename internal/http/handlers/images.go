package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/mediabridge/internal/backend"
	"github.com/jmylchreest/mediabridge/internal/images"
	"github.com/jmylchreest/mediabridge/internal/proxy"
	"github.com/jmylchreest/mediabridge/internal/session"
)

// ImageHandler proxies backend images so clients never see a credentialed
// backend URL. Anything the backend cannot serve becomes a placeholder.
type ImageHandler struct {
	resolver     *images.Resolver
	placeholders *images.Placeholders
	proxy        *proxy.RangeProxy
	logger       *slog.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(resolver *images.Resolver, placeholders *images.Placeholders, rp *proxy.RangeProxy) *ImageHandler {
	return &ImageHandler{
		resolver:     resolver,
		placeholders: placeholders,
		proxy:        rp,
		logger:       slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *ImageHandler) WithLogger(logger *slog.Logger) *ImageHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// RegisterRoutes registers the image routes.
// Routes:
//   - GET|HEAD /images/placeholder?label=L - rendered placeholder
//   - GET|HEAD /images/{itemId}/{kind}?tag=T - proxied backend image
func (h *ImageHandler) RegisterRoutes(router chi.Router) {
	router.Get("/images/placeholder", h.servePlaceholder)
	router.Head("/images/placeholder", h.servePlaceholder)
	router.Get("/images/{itemId}/{kind}", h.serveImage)
	router.Head("/images/{itemId}/{kind}", h.serveImage)
}

func (h *ImageHandler) servePlaceholder(w http.ResponseWriter, r *http.Request) {
	h.writePlaceholder(w, r, r.URL.Query().Get("label"))
}

func (h *ImageHandler) serveImage(w http.ResponseWriter, r *http.Request) {
	kind, ok := backend.ParseImageKind(chi.URLParam(r, "kind"))
	if !ok {
		writeProblem(w, http.StatusBadRequest, "unknown image kind")
		return
	}
	itemID := chi.URLParam(r, "itemId")

	state := session.FromContext(r.Context())
	if !state.Connected() {
		h.writePlaceholder(w, r, "")
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" && kind == backend.ImageBackdrop && state.Authenticated() {
		ref := h.resolver.BackdropByID(r.Context(), state.Adapter, state.Auth.UserID, itemID)
		if ref == nil {
			h.writePlaceholder(w, r, "")
			return
		}
		itemID, kind, tag = ref.ItemID, ref.Kind, ref.Tag
	}

	fw := &fallbackWriter{ResponseWriter: w, header: make(http.Header)}
	if err := h.proxy.Relay(fw, r, proxy.Target{URL: state.Adapter.BuildImageURL(itemID, kind, tag)}); err != nil {
		h.logger.Debug("image relay failed", slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
	if fw.failed || !fw.wroteHeader {
		h.writePlaceholder(w, r, "")
	}
}

func (h *ImageHandler) writePlaceholder(w http.ResponseWriter, r *http.Request, label string) {
	data, err := h.placeholders.PNG(label)
	if err != nil {
		h.logger.Error("rendering placeholder failed", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

// fallbackWriter holds headers back until the upstream status is known and
// swallows error responses so the caller can substitute a placeholder.
type fallbackWriter struct {
	http.ResponseWriter
	header      http.Header
	wroteHeader bool
	failed      bool
}

func (f *fallbackWriter) Header() http.Header { return f.header }

func (f *fallbackWriter) WriteHeader(status int) {
	if f.wroteHeader {
		return
	}
	f.wroteHeader = true
	if status >= http.StatusBadRequest {
		f.failed = true
		return
	}
	dst := f.ResponseWriter.Header()
	for k, v := range f.header {
		dst[k] = v
	}
	f.ResponseWriter.WriteHeader(status)
}

func (f *fallbackWriter) Write(p []byte) (int, error) {
	if !f.wroteHeader {
		f.WriteHeader(http.StatusOK)
	}
	if f.failed {
		return len(p), nil
	}
	return f.ResponseWriter.Write(p)
}

// FlushError flushes only a response that is being passed through.
func (f *fallbackWriter) FlushError() error {
	if f.failed || !f.wroteHeader {
		return nil
	}
	return http.NewResponseController(f.ResponseWriter).Flush()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (f *fallbackWriter) Unwrap() http.ResponseWriter { return f.ResponseWriter }
