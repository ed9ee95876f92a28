// Package honk talks to the external UltraHonk verification service.
package honk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 64 * 1024

// Client submits proof artifacts to the verifier over HTTP. Transport and
// non-2xx failures surface as errors so callers can tell "verifier said no"
// apart from "verifier unreachable".
type Client struct {
	baseURL string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("verifier base url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpDo:  doer,
	}, nil
}

type verifyRequest struct {
	Proof        string   `json:"proof"`
	PublicInputs []uint32 `json:"public_inputs"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (c *Client) Verify(ctx context.Context, proof []byte, publicInputs []uint32) (bool, error) {
	body, err := json.Marshal(verifyRequest{
		Proof:        base64.StdEncoding.EncodeToString(proof),
		PublicInputs: publicInputs,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return false, fmt.Errorf("verifier request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("verifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("verifier status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out verifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return false, fmt.Errorf("verifier response decode: %w", err)
	}
	return out.Valid, nil
}
