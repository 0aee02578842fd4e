package whitesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint  = "https://app.whitesourcesoftware.com/api/v1.3"
	DefaultUserAgent = "qxautoml-license-report/dev"

	RequestTypeGetProductLicenses = "getProductLicenses"

	defaultHTTPTimeout = 30 * time.Second
)

// HTTPClient is the subset of *http.Client the client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is the JSON body of an API call. UserKey must never be logged.
type Request struct {
	ProductToken              string `json:"productToken"`
	UserKey                   string `json:"userKey"`
	ExcludeProjectOccurrences bool   `json:"excludeProjectOccurrences"`
	RequestType               string `json:"requestType"`
}

type ClientConfig struct {
	Endpoint                  string
	ProductToken              string
	UserKey                   string
	ExcludeProjectOccurrences bool
	UserAgent                 string
	HTTPClient                HTTPClient
	Retry                     RetryOptions
}

type Client struct {
	cfg ClientConfig
	log *slog.Logger
}

func NewClient(log *slog.Logger, cfg ClientConfig) (*Client, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}
	cfg.Retry = cfg.Retry.withDefaults()

	if cfg.ProductToken == "" {
		return nil, newError(ErrorKindConfig, "new_client", "product token is required", nil)
	}
	if cfg.UserKey == "" {
		return nil, newError(ErrorKindConfig, "new_client", "user key is required", nil)
	}

	return &Client{cfg: cfg, log: log}, nil
}

func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// GetProductLicenses fetches the license report of the configured product.
// Transient failures are retried; the returned report has not been filtered.
func (c *Client) GetProductLicenses(ctx context.Context) (Report, error) {
	const op = "get_product_licenses"

	body, err := json.Marshal(Request{
		ProductToken:              c.cfg.ProductToken,
		UserKey:                   c.cfg.UserKey,
		ExcludeProjectOccurrences: c.cfg.ExcludeProjectOccurrences,
		RequestType:               RequestTypeGetProductLicenses,
	})
	if err != nil {
		return nil, newError(ErrorKindConfig, op, "failed to encode request", err)
	}

	c.log.Debug("Operation started", "operation", op, "endpoint", c.cfg.Endpoint)

	report, err := doRetry(ctx, c.log, c.cfg.Retry, func(ctx context.Context) (Report, error) {
		return c.post(ctx, op, body)
	})
	if err != nil {
		return nil, err
	}

	if msg, ok := report.apiErrorMessage(); ok {
		return nil, newError(ErrorKindAPI, op, msg, nil)
	}
	if _, err := report.libraries(); err != nil {
		return nil, err
	}

	c.log.Debug("Operation completed", "operation", op)
	return report, nil
}

func (c *Client) post(ctx context.Context, op string, body []byte) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrorKindConfig, op, "failed to create request", err)
	}
	c.setCommonHeaders(req)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, newError(ErrorKindNetwork, op, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrorKindNetwork, op, "failed to read response body", err)
	}

	c.log.Debug("API response", "status_code", resp.StatusCode, "response_length", len(respBody))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(ErrorKindAuth, op, truncateBody(respBody), nil).withStatus(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, newError(ErrorKindAPI, op, truncateBody(respBody), nil).withStatus(resp.StatusCode)
	}

	report, err := DecodeReport(bytes.NewReader(respBody))
	if err != nil {
		return nil, newError(ErrorKindDecode, op, fmt.Sprintf("invalid response body: %s", truncateBody(respBody)), err).withStatus(resp.StatusCode)
	}
	return report, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Charset", "UTF-8")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}
