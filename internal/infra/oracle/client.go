// Package oracle talks to the upstream RWA price feed over HTTP.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

const maxResponseBytes = 64 * 1024

// PriceCache is the read-through cache in front of the feed. A nil cache
// disables caching.
type PriceCache interface {
	Get(ctx context.Context, key string) (*domain.PriceData, bool, error)
	Put(ctx context.Context, key string, value domain.PriceData, ttl time.Duration) error
}

type Client struct {
	baseURL  string
	asset    string
	cache    PriceCache
	cacheTTL time.Duration
	httpDo   func(*http.Request) (*http.Response, error)
}

func NewClient(baseURL, asset string, cache PriceCache, cacheTTL time.Duration, httpClient *http.Client) (*Client, error) {
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
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		asset:    asset,
		cache:    cache,
		cacheTTL: cacheTTL,
		httpDo:   doer,
	}, nil
}

type priceResponse struct {
	Price     string `json:"price"`
	Timestamp uint64 `json:"timestamp"`
}

type decimalsResponse struct {
	Decimals uint32 `json:"decimals"`
}

func (c *Client) CurrentPrice(ctx context.Context) (domain.PriceData, error) {
	key := "price:" + c.asset + ":current"
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return *cached, nil
		}
	}
	data, err := c.fetchPrice(ctx, "/v1/assets/"+c.asset+"/price")
	if err != nil {
		return domain.PriceData{}, err
	}
	if c.cache != nil {
		_ = c.cache.Put(ctx, key, data, c.cacheTTL)
	}
	return data, nil
}

func (c *Client) PriceAt(ctx context.Context, timestamp uint64) (domain.PriceData, error) {
	ts := strconv.FormatUint(timestamp, 10)
	key := "price:" + c.asset + ":at:" + ts
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return *cached, nil
		}
	}
	data, err := c.fetchPrice(ctx, "/v1/assets/"+c.asset+"/price?timestamp="+ts)
	if err != nil {
		return domain.PriceData{}, err
	}
	if c.cache != nil {
		// Historical observations never change; cache them longer.
		_ = c.cache.Put(ctx, key, data, 10*c.cacheTTL)
	}
	return data, nil
}

func (c *Client) Decimals(ctx context.Context) (uint32, error) {
	var out decimalsResponse
	if err := c.getJSON(ctx, "/v1/assets/"+c.asset+"/decimals", &out); err != nil {
		return 0, err
	}
	return out.Decimals, nil
}

func (c *Client) Metadata(ctx context.Context) (domain.RWAMetadata, error) {
	var out domain.RWAMetadata
	if err := c.getJSON(ctx, "/v1/assets/"+c.asset+"/metadata", &out); err != nil {
		return domain.RWAMetadata{}, err
	}
	return out, nil
}

func (c *Client) RegulatoryInfo(ctx context.Context) (domain.RegulatoryInfo, error) {
	var out domain.RegulatoryInfo
	if err := c.getJSON(ctx, "/v1/assets/"+c.asset+"/regulatory", &out); err != nil {
		return domain.RegulatoryInfo{}, err
	}
	return out, nil
}

func (c *Client) fetchPrice(ctx context.Context, path string) (domain.PriceData, error) {
	var out priceResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return domain.PriceData{}, err
	}
	price, ok := new(big.Int).SetString(out.Price, 10)
	if !ok {
		return domain.PriceData{}, fmt.Errorf("oracle returned invalid price %q", out.Price)
	}
	return domain.PriceData{Price: price, Timestamp: out.Timestamp}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("oracle response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("oracle response decode: %w", err)
	}
	return nil
}
