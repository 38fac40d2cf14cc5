package workflowhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruteri/ip-registration-workflows/api"
	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// maxBodySize is the maximum allowed request body size (4MB).
const maxBodySize = 4 * 1024 * 1024

// Engine is the part of workflow.Engine the handler serves.
type Engine interface {
	Validate(ctx context.Context, requests []interfaces.RegistrationRequest) error
	Prepare(ctx context.Context, requests []interfaces.RegistrationRequest, opts interfaces.Options) ([]interfaces.EncodedBucket, error)
}

// Handler processes HTTP requests for the preparation service.
type Handler struct {
	engine Engine
	log    *slog.Logger
}

func NewHandler(engine Engine, log *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log,
	}
}

// RegisterRoutes configures the HTTP router with the workflow endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/validate", h.HandleValidate)
	r.Post("/api/v1/prepare", h.HandlePrepare)
}

// HandleValidate reports every failing request. Failed validation is a
// successful call: the response lists the failures with status 200.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("requestID", uuid.NewString())

	body, reqs, err := decode(w, r)
	if err != nil {
		log.Warn("Invalid validate request", "err", err)
		api.WriteError(w, log, err)
		return
	}
	log.Debug("Validating requests", "count", len(body.Requests))

	resp := api.ValidateResponse{Valid: true}
	if err := h.engine.Validate(r.Context(), reqs); err != nil {
		if !isRequestError(err) {
			log.Error("Validation failed", "err", err)
			api.WriteError(w, log, &api.RequestError{StatusCode: http.StatusInternalServerError, Err: err})
			return
		}
		resp.Valid = false
		resp.Errors = api.ErrorEntries(err)
	}
	api.WriteJSON(w, log, http.StatusOK, resp)
}

// HandlePrepare returns the unsigned buckets of a batch.
//
// Status codes:
//   - 200 OK: buckets returned in submission order
//   - 400 Bad Request: malformed body
//   - 422 Unprocessable Entity: at least one request failed validation
//   - 500 Internal Server Error: chain reads failed
func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("requestID", uuid.NewString())

	body, reqs, err := decode(w, r)
	if err != nil {
		log.Warn("Invalid prepare request", "err", err)
		api.WriteError(w, log, err)
		return
	}

	buckets, err := h.engine.Prepare(r.Context(), reqs, body.Options.ToOptions())
	if err != nil {
		status := http.StatusInternalServerError
		if isRequestError(err) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn("Prepare failed", "err", err, "status", status)
		api.WriteError(w, log, &api.RequestError{StatusCode: status, Err: err})
		return
	}

	resp := api.PrepareResponse{Buckets: make([]api.EncodedBucket, 0, len(buckets))}
	for _, b := range buckets {
		resp.Buckets = append(resp.Buckets, api.NewEncodedBucket(b))
	}
	log.Info("Prepared call data", "requests", len(reqs), "buckets", len(resp.Buckets))
	api.WriteJSON(w, log, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request) (*api.PrepareRequest, []interfaces.RegistrationRequest, error) {
	var body api.PrepareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, nil, &api.RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}
	reqs, err := api.ToRequests(body.Requests)
	if err != nil {
		return nil, nil, &api.RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}
	return &body, reqs, nil
}

// isRequestError reports whether err is caused by the requests rather than the
// service: every wrapped failure belongs to the validate or classify stage.
func isRequestError(err error) bool {
	entries := api.ErrorEntries(err)
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Stage != string(interfaces.StageValidate) && e.Stage != string(interfaces.StageClassify) {
			return false
		}
	}
	return true
}
