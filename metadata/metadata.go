// Package metadata publishes the IP and NFT metadata documents referenced by
// registrations.
//
// Documents are serialized to JSON, stored in a content-addressed backend and
// described by their URI and SHA-256 hash, which is the form the registration
// workflows record on chain.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// IPMetadata follows the IP asset metadata standard of the protocol.
type IPMetadata struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	Image       string    `json:"image,omitempty"`
	ImageHash   string    `json:"imageHash,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	MediaHash   string    `json:"mediaHash,omitempty"`
	MediaType   string    `json:"mediaType,omitempty"`
	IPType      string    `json:"ipType,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Creators    []Creator `json:"creators,omitempty"`
}

type Creator struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
	// ContributionPercent is a 0-100 percentage; all creators add up to 100.
	ContributionPercent float64       `json:"contributionPercent"`
	Description         string        `json:"description,omitempty"`
	SocialMedia         []SocialMedia `json:"socialMedia,omitempty"`
}

type SocialMedia struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// NFTMetadata is the ERC-721 metadata JSON of the token.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	ExternalURL string      `json:"external_url,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// Validate checks the creators of the document.
func (m *IPMetadata) Validate() error {
	if len(m.Creators) == 0 {
		return nil
	}
	var sum float64
	for i, c := range m.Creators {
		field := fmt.Sprintf("creators[%d]", i)
		if c.Address == (common.Address{}) {
			return &interfaces.ValidationError{Field: field + ".address", Reason: "must not be the zero address"}
		}
		if c.ContributionPercent <= 0 || c.ContributionPercent > 100 {
			return &interfaces.RangeError{Field: field + ".contributionPercent", Value: fmt.Sprint(c.ContributionPercent), Min: "0", Max: "100"}
		}
		sum += c.ContributionPercent
	}
	if math.Abs(sum-100) > 1e-9 {
		return &interfaces.ValidationError{Field: "creators.contributionPercent", Reason: fmt.Sprintf("must add up to 100, got %g", sum)}
	}
	return nil
}

// Publisher stores metadata documents.
type Publisher struct {
	storage interfaces.StorageBackend
	log     *slog.Logger
}

func NewPublisher(storage interfaces.StorageBackend, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{storage: storage, log: log}
}

// Publish stores the given documents and returns the request metadata
// pointing at them. Either document may be nil.
func (p *Publisher) Publish(ctx context.Context, ip *IPMetadata, nft *NFTMetadata) (*interfaces.IPMetadata, error) {
	out := &interfaces.IPMetadata{}
	if ip != nil {
		if err := ip.Validate(); err != nil {
			return nil, err
		}
		uri, hash, err := p.store(ctx, ip, interfaces.IPMetadataType)
		if err != nil {
			return nil, err
		}
		out.IPMetadataURI, out.IPMetadataHash = uri, hash
	}
	if nft != nil {
		if nft.Name == "" {
			return nil, &interfaces.ValidationError{Field: "nftMetadata.name", Reason: "required"}
		}
		uri, hash, err := p.store(ctx, nft, interfaces.NFTMetadataType)
		if err != nil {
			return nil, err
		}
		out.NFTMetadataURI, out.NFTMetadataHash = uri, hash
	}
	return out, nil
}

// Attach publishes the documents and sets them on req.
func (p *Publisher) Attach(ctx context.Context, req *interfaces.RegistrationRequest, ip *IPMetadata, nft *NFTMetadata) error {
	meta, err := p.Publish(ctx, ip, nft)
	if err != nil {
		return err
	}
	req.Metadata = meta
	return nil
}

// LoadIP fetches and decodes a published IP metadata document by its hash.
func (p *Publisher) LoadIP(ctx context.Context, hash [32]byte) (*IPMetadata, error) {
	data, err := p.storage.Fetch(ctx, interfaces.ContentID(hash), interfaces.IPMetadataType)
	if err != nil {
		return nil, err
	}
	var doc IPMetadata
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid IP metadata document: %w", err)
	}
	return &doc, nil
}

func (p *Publisher) store(ctx context.Context, doc interface{}, contentType interfaces.ContentType) (string, [32]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", [32]byte{}, err
	}
	id, uri, err := p.storage.Store(ctx, data, contentType)
	if err != nil {
		return "", [32]byte{}, fmt.Errorf("failed to store %s metadata: %w", contentType, err)
	}
	p.log.Info("Published metadata",
		slog.String("type", contentType.String()),
		slog.String("uri", uri),
		slog.String("hash", id.String()))
	return uri, id, nil
}
