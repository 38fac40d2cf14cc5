package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// indexRoot is the MFS directory mapping content ids to pinned CIDs.
const indexRoot = "/ipworkflow"

// IPFSBackend adds documents to an IPFS node through its HTTP API. Documents
// are pinned and linked in the node's MFS under their content id, so they can
// be fetched by hash without knowing their CID.
type IPFSBackend struct {
	shell       *shell.Shell
	apiURL      string
	gateway     string
	timeout     time.Duration
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend connects to the API at host:port. With a gateway, returned
// URIs are gateway URLs instead of ipfs:// URIs.
func NewIPFSBackend(host, port, gateway string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if log == nil {
		log = slog.Default()
	}
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host", interfaces.ErrInvalidLocationURI)
	}
	apiURL := fmt.Sprintf("%s:%s", host, port)
	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	uri := fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout)
	if gateway != "" {
		uri += "&gateway=" + gateway
	}
	return &IPFSBackend{
		shell:       sh,
		apiURL:      apiURL,
		gateway:     strings.TrimSuffix(gateway, "/"),
		timeout:     timeout,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch resolves the content id through the MFS index and reads the pinned
// document.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	indexPath := b.indexPath(id, contentType)

	stat, err := b.shell.FilesStat(ctx, indexPath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	reader, err := b.shell.Cat("/ipfs/" + stat.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from IPFS: %w", stat.Hash, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from IPFS: %w", stat.Hash, err)
	}
	if interfaces.ComputeID(data) != id {
		return nil, fmt.Errorf("content of %s does not match its id", stat.Hash)
	}

	b.log.Debug("Fetched metadata from IPFS",
		slog.String("cid", stat.Hash),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

// Store pins data and links it in the MFS index. Storing a document twice
// returns the same URI.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, string, error) {
	id := interfaces.ComputeID(data)
	if !b.shell.IsUp() {
		return id, "", interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return id, "", fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	indexPath := b.indexPath(id, contentType)
	if _, err := b.shell.FilesStat(ctx, indexPath); err != nil {
		if err := b.shell.FilesMkdir(ctx, path.Dir(indexPath), shell.FilesMkdir.Parents(true)); err != nil {
			return id, "", fmt.Errorf("failed to create IPFS index directory: %w", err)
		}
		if err := b.shell.FilesCp(ctx, "/ipfs/"+cid, indexPath); err != nil {
			return id, "", fmt.Errorf("failed to index %s: %w", cid, err)
		}
	}

	b.log.Debug("Stored metadata in IPFS",
		slog.String("cid", cid),
		slog.String("content_id", id.String()),
		slog.String("content_type", contentType.String()))
	return id, b.uri(cid), nil
}

func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return "ipfs-" + b.apiURL
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) uri(cid string) string {
	if b.gateway != "" {
		return b.gateway + "/ipfs/" + cid
	}
	return "ipfs://" + cid
}

func (b *IPFSBackend) indexPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return path.Join(indexRoot, contentType.String(), id.String())
}
