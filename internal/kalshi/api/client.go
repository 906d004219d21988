// Package api is used to call Kalshi's public API endpoints.
package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/polyquant/polyquant/pkg/httpclient"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

type Market struct {
	Ticker               string    `json:"ticker"`
	Title                string    `json:"title"`
	RulesPrimary         string    `json:"rules_primary"`
	YesAsk               int64     `json:"yes_ask"`  // cents
	NoAsk                int64     `json:"no_ask"`   // cents
	Status               string    `json:"status"`
	LatestExpirationTime time.Time `json:"latest_expiration_time"`
}

type MarketPage struct {
	Markets []*Market `json:"markets"`
	Cursor  string    `json:"cursor"`
}

func (c *Client) GetMarkets(cursor string) (*MarketPage, error) {
	endpoint := "/markets?status=open"
	if cursor != "" {
		endpoint += "&cursor=" + url.QueryEscape(cursor)
	}
	page, err := httpclient.GetResource[*MarketPage](c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets page: %w", err)
	}
	return page, nil
}

// GetAllMarkets walks the cursor pagination until an empty cursor.
func (c *Client) GetAllMarkets() ([]*Market, error) {
	var markets []*Market
	cursor := ""

	for {
		page, err := c.GetMarkets(cursor)
		if err != nil {
			return nil, fmt.Errorf("couldn't get markets for cursor %q: %w", cursor, err)
		}
		markets = append(markets, page.Markets...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return markets, nil
}
