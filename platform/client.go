// Package platform is the client for the ads data platform: campaign
// CRUD, performance metrics, creative rendering, and market trend
// queries. Capability tools delegate all domain work here; the platform
// owns storage, statistics, and generation internals.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("platform base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a structured platform failure.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
}

type Campaign struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	DailyBudget float64 `json:"daily_budget"`
	Currency    string  `json:"currency,omitempty"`
}

type CampaignPatch struct {
	Status      string   `json:"status,omitempty"`
	DailyBudget *float64 `json:"daily_budget,omitempty"`
}

type MetricRow struct {
	Date        string  `json:"date"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

type ReportQuery struct {
	AccountID  string
	CampaignID string
	Days       int
}

type CreativeRequest struct {
	Product  string `json:"product"`
	Style    string `json:"style,omitempty"`
	Format   string `json:"format,omitempty"`
	Variants int    `json:"variants,omitempty"`
}

type Creative struct {
	ID       string `json:"id"`
	Format   string `json:"format"`
	URL      string `json:"url"`
	Headline string `json:"headline,omitempty"`
}

type Trend struct {
	Keyword  string  `json:"keyword"`
	Region   string  `json:"region,omitempty"`
	Interest float64 `json:"interest"`
	Change   float64 `json:"change"`
}

func (c *Client) ListCampaigns(ctx context.Context, accountID string) ([]Campaign, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	q := url.Values{"account_id": {accountID}}
	var out struct {
		Campaigns []Campaign `json:"campaigns"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/campaigns?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Campaigns, nil
}

func (c *Client) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	if campaignID == "" {
		return Campaign{}, fmt.Errorf("campaign_id is required")
	}
	var out Campaign
	if err := c.do(ctx, http.MethodGet, "/v1/campaigns/"+url.PathEscape(campaignID), nil, &out); err != nil {
		return Campaign{}, err
	}
	return out, nil
}

func (c *Client) UpdateCampaign(ctx context.Context, campaignID string, patch CampaignPatch) (Campaign, error) {
	if campaignID == "" {
		return Campaign{}, fmt.Errorf("campaign_id is required")
	}
	var out Campaign
	if err := c.do(ctx, http.MethodPatch, "/v1/campaigns/"+url.PathEscape(campaignID), patch, &out); err != nil {
		return Campaign{}, err
	}
	return out, nil
}

func (c *Client) MetricsReport(ctx context.Context, query ReportQuery) ([]MetricRow, error) {
	if query.AccountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	days := query.Days
	if days <= 0 {
		days = 7
	}
	q := url.Values{
		"account_id": {query.AccountID},
		"days":       {strconv.Itoa(days)},
	}
	if query.CampaignID != "" {
		q.Set("campaign_id", query.CampaignID)
	}
	var out struct {
		Rows []MetricRow `json:"rows"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/metrics/report?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) RenderCreatives(ctx context.Context, req CreativeRequest) ([]Creative, error) {
	if req.Product == "" {
		return nil, fmt.Errorf("product is required")
	}
	var out struct {
		Creatives []Creative `json:"creatives"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/creatives/render", req, &out); err != nil {
		return nil, err
	}
	return out.Creatives, nil
}

func (c *Client) Trends(ctx context.Context, topic, region string) ([]Trend, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	q := url.Values{"topic": {topic}}
	if region != "" {
		q.Set("region", region)
	}
	var out struct {
		Trends []Trend `json:"trends"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/insights/trends?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Trends, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create platform request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read platform response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Code = "HTTP_" + strconv.Itoa(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	return nil
}
