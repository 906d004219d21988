// Package clob consumes Polymarket CLOB endpoints.
package clob

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/price"
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

type MarketToken struct {
	Outcome string      `json:"outcome"`
	Price   price.Price `json:"price"`
	TokenID string      `json:"token_id"`
	Winner  bool        `json:"winner"`
}

type Market struct {
	ConditionID string        `json:"condition_id"`
	Description string        `json:"description"`
	Question    string        `json:"question"`
	MarketSlug  string        `json:"market_slug"`
	EndDateISO  string        `json:"end_date_iso"`
	Closed      bool          `json:"closed"`
	Tokens      []MarketToken `json:"tokens"`
}

type MarketPage struct {
	Limit      int       `json:"limit"`
	Count      int       `json:"count"`
	Data       []*Market `json:"data"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

func (c *Client) GetMarketByConditionID(conditionID string) (*Market, error) {
	m, err := httpclient.GetResource[*Market](c.httpClient, c.baseURL, "/markets/"+conditionID, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by condition ID %s: %w", conditionID, err)
	}
	return m, nil
}

func (c *Client) GetMarkets(nextCursor *string) (*MarketPage, error) {
	endpoint := "/markets"
	if nextCursor != nil {
		endpoint += "?next_cursor=" + url.QueryEscape(*nextCursor)
	}
	page, err := httpclient.GetResource[*MarketPage](c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets page: %w", err)
	}
	return page, nil
}

// GetAllMarkets walks the cursor pagination until the sentinel cursor
// (base64 of "-1") or a page without one.
func (c *Client) GetAllMarkets() ([]*Market, error) {
	var markets []*Market
	var nextCursor *string

	for {
		page, err := c.GetMarkets(nextCursor)
		if err != nil {
			return nil, fmt.Errorf("couldn't get markets page: %w", err)
		}
		markets = append(markets, page.Data...)

		if page.NextCursor == nil {
			break
		}
		decoded, _ := base64.StdEncoding.DecodeString(*page.NextCursor)
		if string(decoded) == "-1" {
			break
		}
		nextCursor = page.NextCursor
	}
	return markets, nil
}

type historyPoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

type historyResponse struct {
	History []historyPoint `json:"history"`
}

// PricesHistory fetches one token's price history over [startTs,
// endTs]. Fidelity is the sampling interval in minutes; 1 gives the
// densest series the API serves.
func (c *Client) PricesHistory(tokenID string, startTs, endTs int64, fidelity int) ([]market.Point, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("startTs", strconv.FormatInt(startTs, 10))
	q.Set("endTs", strconv.FormatInt(endTs, 10))
	q.Set("fidelity", strconv.Itoa(fidelity))

	resp, err := httpclient.GetResource[historyResponse](c.httpClient, c.baseURL, "/prices-history?"+q.Encode(), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get prices history for token %s: %w", tokenID, err)
	}

	points := make([]market.Point, len(resp.History))
	for i, h := range resp.History {
		points[i] = market.Point{
			Time:  time.Unix(h.T, 0).UTC(),
			Price: h.P,
		}
	}
	return points, nil
}
