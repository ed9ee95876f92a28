package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
)

// ComplianceClient asks the feed's approval endpoint whether a movement of
// the regulated asset may proceed.
type ComplianceClient struct {
	baseURL string
	asset   string
	httpDo  func(*http.Request) (*http.Response, error)
}

func NewComplianceClient(baseURL, asset string, httpClient *http.Client) (*ComplianceClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("oracle base url is required")
	}
	if strings.TrimSpace(asset) == "" {
		return nil, errors.New("oracle asset code is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &ComplianceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		asset:   asset,
		httpDo:  doer,
	}, nil
}

type complianceRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type complianceResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (c *ComplianceClient) Check(ctx context.Context, from, to string, amount *big.Int) error {
	amountStr := "0"
	if amount != nil {
		amountStr = amount.String()
	}
	body, err := json.Marshal(complianceRequest{From: from, To: to, Amount: amountStr})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assets/"+c.asset+"/compliance", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("compliance request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("compliance response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("compliance status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out complianceResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("compliance response decode: %w", err)
	}
	if !out.Approved {
		if out.Reason == "" {
			return errors.New("transfer not approved")
		}
		return fmt.Errorf("transfer not approved: %s", out.Reason)
	}
	return nil
}
