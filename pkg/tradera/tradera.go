package tradera

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseSizeBytes = 4 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.tradera.com"`
	AppID   string        `envconfig:"APP_ID" split_words:"true" required:"true"`
	AppKey  string        `envconfig:"APP_KEY" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Client is a thin adapter over the Tradera marketplace API. Only the calls
// the tool handlers need are covered.
type Client struct {
	baseURL    string
	appID      string
	appKey     string
	httpClient *http.Client
}

type Item struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	URL      string  `json:"url"`
	Category string  `json:"category,omitempty"`
}

type OrderInfo struct {
	OrderID      string  `json:"order_id"`
	ItemID       string  `json:"item_id"`
	BuyerName    string  `json:"buyer_name"`
	BuyerAddress string  `json:"buyer_address"`
	Price        float64 `json:"price"`
	Fee          float64 `json:"fee"`
	OrderedAt    string  `json:"ordered_at"`
	Status       string  `json:"status"`
}

type CreateListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CategoryID  int64    `json:"category_id"`
	ListingType string   `json:"listing_type"`
	StartPrice  float64  `json:"start_price,omitempty"`
	BuyNowPrice float64  `json:"buy_now_price,omitempty"`
	Duration    int64    `json:"duration_days"`
	Images      []string `json:"images,omitempty"`
}

type CreateListingResult struct {
	ItemID string `json:"item_id"`
	URL    string `json:"url"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tradera base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tradera base url: %w", err)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("tradera app id is required")
	}
	if strings.TrimSpace(cfg.AppKey) == "" {
		return nil, errors.New("tradera app key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		appID:   strings.TrimSpace(cfg.AppID),
		appKey:  strings.TrimSpace(cfg.AppKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c *Client) Search(ctx context.Context, query, category string, maxPrice float64) ([]Item, error) {
	params := url.Values{"q": {query}}
	if category != "" {
		params.Set("category", category)
	}
	if maxPrice > 0 {
		params.Set("max_price", strconv.FormatFloat(maxPrice, 'f', -1, 64))
	}

	var out struct {
		Items []Item `json:"items"`
	}
	if err := c.get(ctx, "/search?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetOrders(ctx context.Context, status string) ([]OrderInfo, error) {
	path := "/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out struct {
		Orders []OrderInfo `json:"orders"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) CreateListing(ctx context.Context, req CreateListingRequest) (*CreateListingResult, error) {
	var out CreateListingResult
	if err := c.post(ctx, "/listings", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ItemID) == "" {
		return nil, errors.New("tradera response missing item id")
	}
	return &out, nil
}

func (c *Client) LeaveFeedback(ctx context.Context, orderID, text string) error {
	payload := map[string]string{"order_id": orderID, "text": text}
	return c.post(ctx, "/feedback", payload, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build tradera request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal tradera payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build tradera request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("X-App-Key", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute tradera request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read tradera response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("tradera http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode tradera response: %w", err)
	}
	return nil
}
