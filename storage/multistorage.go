package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// MultiStorageBackend stores documents in every available backend and reads
// them from the first backend that has them.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

func NewMultiStorageBackend(backends []interfaces.StorageBackend, log *slog.Logger) *MultiStorageBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      log,
	}
}

func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	var errs *multierror.Error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			return data, nil
		}
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if errs == nil {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errs)
}

// Store returns the URI of the first backend that stored data. It fails only
// when no backend did.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, string, error) {
	start := time.Now()
	id := interfaces.ComputeID(data)
	var uri string
	var errs *multierror.Error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		storedID, storedURI, err := backend.Store(ctx, data, contentType)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store metadata",
				slog.String("backend_name", backend.Name()),
				slog.String("err", err.Error()))
			continue
		}
		if storedID != id {
			errs = multierror.Append(errs, fmt.Errorf("%s: stored content id %s, expected %s", backend.Name(), storedID, id))
			continue
		}
		if uri == "" {
			uri = storedURI
		}
	}

	if uri == "" {
		if errs == nil {
			return id, "", interfaces.ErrBackendUnavailable
		}
		return id, "", fmt.Errorf("all backends failed to store data: %w", errs)
	}

	m.log.Info("Stored metadata",
		slog.String("content_id", id.String()),
		slog.String("uri", uri),
		slog.Int("failed_backends", len(errs.WrappedErrors())),
		slog.Duration("duration", time.Since(start)))
	return id, uri, nil
}

func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
