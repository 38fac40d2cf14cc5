// Package metadatahandler publishes and serves IP metadata documents over HTTP.
package metadatahandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/ip-registration-workflows/api"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/metadata"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Publisher is implemented by metadata.Publisher.
type Publisher interface {
	Publish(ctx context.Context, ip *metadata.IPMetadata, nft *metadata.NFTMetadata) (*interfaces.IPMetadata, error)
	LoadIP(ctx context.Context, hash [32]byte) (*metadata.IPMetadata, error)
}

type Handler struct {
	publisher Publisher
	log       *slog.Logger
}

func NewHandler(publisher Publisher, log *slog.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		log:       log,
	}
}

// RegisterRoutes registers:
//   - POST /api/v1/metadata - Publish documents, returns api.Metadata
//   - GET /api/v1/metadata/ip/{hash} - Fetch a published IP metadata document
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/metadata", h.HandlePublish)
	r.Get("/api/v1/metadata/ip/{hash}", h.HandleGetIP)
}

func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var body api.PublishMetadataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		api.WriteError(w, h.log, &api.RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}
	if body.IP == nil && body.NFT == nil {
		api.WriteError(w, h.log, &api.RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        &interfaces.ValidationError{Reason: "ip or nft document is required"},
		})
		return
	}

	meta, err := h.publisher.Publish(r.Context(), body.IP, body.NFT)
	if err != nil {
		h.log.Error("Failed to publish metadata", "err", err)
		api.WriteError(w, h.log, &api.RequestError{StatusCode: statusFor(err), Err: err})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, api.NewMetadata(meta))
}

func (h *Handler) HandleGetIP(w http.ResponseWriter, r *http.Request) {
	id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "hash"))
	if err != nil {
		api.WriteError(w, h.log, &api.RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	doc, err := h.publisher.LoadIP(r.Context(), id)
	if err != nil {
		h.log.Warn("Failed to load metadata", "err", err, "hash", id.String())
		api.WriteError(w, h.log, &api.RequestError{StatusCode: statusFor(err), Err: err})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, doc)
}

func statusFor(err error) int {
	var (
		invalid  *interfaces.ValidationError
		outRange *interfaces.RangeError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &outRange):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
