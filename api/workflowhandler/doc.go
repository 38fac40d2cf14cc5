// Package workflowhandler exposes the call data preparation of the workflow
// engine over HTTP, together with a client for it.
//
// The service holds no signing key. It validates batches of registration
// requests against chain state and returns the unsigned call data of every
// bucket, which the caller signs and submits on its own.
//
// # Endpoints
//
//   - POST /api/v1/validate - Check requests, always 200 with the failures listed
//   - POST /api/v1/prepare - Return the unsigned buckets of a batch
//
// Both endpoints take an api.PrepareRequest body.
package workflowhandler
