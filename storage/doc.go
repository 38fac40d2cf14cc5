// Package storage keeps IP and NFT metadata documents in content-addressed
// backends.
//
// A document is identified by the SHA-256 hash of its bytes, which is also the
// metadata hash recorded on chain. Backends return the URI under which the
// document can be retrieved; that URI becomes the metadata URI of the
// registration.
//
// # Storage URI Format
//
// Backends are configured with location URIs:
//
//   - file:///var/lib/ipworkflow/metadata
//   - ipfs://localhost:5001/?gateway=https://ipfs.io
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=minio.local:9000
//
// IP metadata and NFT metadata are kept in separate namespaces ("ip" and
// "nft") of every backend.
//
// # Redundancy
//
// MultiStorageBackend writes to every available backend and reads from the
// first one holding the document. The URI of the first successful write is
// returned, so the order of location URIs is the order of preference.
package storage
