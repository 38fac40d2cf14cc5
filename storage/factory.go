package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

const (
	defaultIPFSPort    = "5001"
	defaultIPFSTimeout = 30 * time.Second
	defaultS3Region    = "us-east-1"
)

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(log *slog.Logger) *StorageBackendFactory {
	if log == nil {
		log = slog.Default()
	}
	return &StorageBackendFactory{log: log}
}

// StorageBackendFor creates the backend of one location.
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch location.Scheme {
	case "file":
		return sf.createFileBackend(location)
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend creates a backend writing to every location. Invalid
// locations are skipped; at least one must be valid.
func (sf *StorageBackendFactory) CreateMultiBackend(uris []string) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err == nil {
			var backend interfaces.StorageBackend
			backend, err = sf.StorageBackendFor(location)
			if err == nil {
				backends = append(backends, backend)
				continue
			}
		}
		sf.log.Warn("Failed to create storage backend",
			slog.String("location", uri),
			slog.String("err", err.Error()))
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}
	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend handles file:///absolute/path and file://./relative/path.
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in %s", interfaces.ErrInvalidLocationURI, location)
	}
	return NewFileBackend(path, sf.log)
}

// createIPFSBackend handles ipfs://host[:port]/?gateway=https://gw&timeout=30s.
func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, _ := strings.Cut(location.Host, ":")
	if port == "" {
		port = defaultIPFSPort
	}

	timeout := defaultIPFSTimeout
	if raw := location.GetParam("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = d
	}
	return NewIPFSBackend(host, port, location.GetParam("gateway"), timeout, sf.log)
}

// createS3Backend handles s3://[KEY:SECRET@]bucket/prefix/?region=r&endpoint=e.
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	var accessKey, secretKey string
	if location.User != nil {
		accessKey = location.User.Username()
		secretKey, _ = location.User.Password()
	}

	region := location.GetParam("region")
	if region == "" {
		region = defaultS3Region
	}
	return NewS3Backend(location.Host, strings.TrimPrefix(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, sf.log)
}
