package workflowhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/ip-registration-workflows/api"
)

// Client calls a remote preparation service.
type Client struct {
	// ServerAddr is the base URL of the service.
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Validate returns the failures of every request. A batch that fails
// validation is not an error.
func (c *Client) Validate(ctx context.Context, req *api.PrepareRequest) (*api.ValidateResponse, error) {
	var resp api.ValidateResponse
	if err := c.post(ctx, "/api/v1/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Prepare returns the unsigned buckets of a batch.
func (c *Client) Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error) {
	var resp api.PrepareResponse
	if err := c.post(ctx, "/api/v1/prepare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerAddr+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-200 response: %d", path, resp.StatusCode)
		}
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &api.RequestError{StatusCode: resp.StatusCode, Err: errors.New(errResp.Error)}
		}
		return fmt.Errorf("%s returned error %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}
