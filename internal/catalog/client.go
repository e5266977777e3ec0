// Package catalog is the HTTP client for the external catalog and
// credit-decision engine: merchants, branches, categories, eligible products
// and payment-plan calculation.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hpcredit/internal/domain"
	"hpcredit/pkg/cache"
	"hpcredit/pkg/config"
	"hpcredit/pkg/errors"
	"hpcredit/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// Client talks to the catalog service. Branch and category lookups are cached
// in Redis for the configured TTL; product eligibility and calculations are
// never cached because they depend on the basket total.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cache   *cache.RedisCache
	ttl     time.Duration
	log     logger.Logger
}

func NewClient(cfg config.CatalogConfig, c *cache.RedisCache, log logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		http:    &http.Client{Transport: &retryablehttp.RoundTripper{Client: rc}},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		cache:   c,
		ttl:     cfg.CacheTTL,
		log:     log,
	}
}

func (c *Client) Merchants(ctx context.Context) ([]domain.Merchant, error) {
	var out []domain.Merchant
	if err := c.getCached(ctx, "/v1/merchants", "catalog:merchants", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Branches(ctx context.Context, merchantID string) ([]domain.Branch, error) {
	path := fmt.Sprintf("/v1/merchants/%s/branches", url.PathEscape(merchantID))
	var out []domain.Branch
	if err := c.getCached(ctx, path, "catalog:branches:"+merchantID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Categories(ctx context.Context, merchantID string) ([]domain.Category, error) {
	path := fmt.Sprintf("/v1/merchants/%s/categories", url.PathEscape(merchantID))
	var out []domain.Category
	if err := c.getCached(ctx, path, "catalog:categories:"+merchantID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EligibleProducts(ctx context.Context, merchantID string, totalAmount decimal.Decimal) ([]domain.CreditProduct, error) {
	path := fmt.Sprintf("/v1/merchants/%s/products?amount=%s", url.PathEscape(merchantID), totalAmount.String())
	var out []domain.CreditProduct
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type calculateRequest struct {
	ProductID   string          `json:"product_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TermMonths  int             `json:"term_months"`
}

func (c *Client) Calculate(ctx context.Context, productID string, totalAmount decimal.Decimal, termMonths int) (*domain.CalculationResult, error) {
	body, err := json.Marshal(calculateRequest{
		ProductID:   productID,
		TotalAmount: totalAmount,
		TermMonths:  termMonths,
	})
	if err != nil {
		return nil, err
	}

	var out domain.CalculationResult
	if err := c.post(ctx, "/v1/calculate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getCached serves from Redis when possible and refreshes the cache on a
// miss. Cache failures degrade to a direct fetch.
func (c *Client) getCached(ctx context.Context, path, key string, dest interface{}) error {
	if c.cache != nil {
		err := c.cache.Get(ctx, key, dest)
		if err == nil {
			return nil
		}
		if err != cache.ErrMiss {
			c.log.Warn("catalog cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	if err := c.get(ctx, path, dest); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, dest, c.ttl); err != nil {
			c.log.Warn("catalog cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *Client) post(ctx context.Context, path string, body []byte, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "catalog request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read catalog response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			c.log.Warn("catalog returned non-JSON error body", map[string]interface{}{
				"status": resp.StatusCode,
				"path":   req.URL.Path,
			})
		}
		return apiErr
	}

	return json.Unmarshal(data, dest)
}
