package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID is a 32-byte SHA-256 hash uniquely identifying content.
// It doubles as the on-chain metadata hash of IP and NFT metadata.
type ContentID [32]byte

// NewContentIDFromHex parses a 64 character hex string, with or without 0x prefix.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash [32]byte
	copy(hash[:], hashBytes)
	return ContentID(hash), nil
}

// ComputeID calculates content ID from data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// String returns hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ContentType selects the namespace a document is stored under.
type ContentType int

const (
	// IPMetadataType for IP asset metadata documents
	IPMetadataType ContentType = iota
	// NFTMetadataType for token metadata documents
	NFTMetadataType
)

func (ct ContentType) String() string {
	switch ct {
	case IPMetadataType:
		return "ip"
	case NFTMetadataType:
		return "nft"
	default:
		return "unknown"
	}
}

// StorageBackendLocation is a parsed backend URI:
//
//	file:///var/lib/ipworkflow
//	ipfs://127.0.0.1:5001/?gateway=https://ipfs.io&timeout=30s
//	s3://key:secret@bucket/prefix?region=us-east-1&endpoint=...
type StorageBackendLocation struct {
	Raw    string
	Scheme string
	User   *url.Userinfo
	Host   string
	Path   string
	Query  url.Values
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		User:   parsed.User,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}, nil
}

func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter, empty when absent.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides content-addressed metadata storage.
type StorageBackend interface {
	// Fetch retrieves data by content ID and type.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its content ID together with the URI
	// under which the document can be retrieved.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, string, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}
