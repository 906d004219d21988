// Package gamma consumes Polymarket Gamma endpoints.
package gamma

import (
	"encoding/json"
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

// StringList handles the double-encoded JSON arrays the API returns
// for outcomes and token IDs.
type StringList []string

func (t *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), (*[]string)(t))
}

type Market struct {
	ID           string     `json:"id"`
	ConditionID  string     `json:"conditionId"`
	Question     string     `json:"question"`
	Slug         string     `json:"slug"`
	Outcomes     StringList `json:"outcomes"`
	ClobTokenIDs StringList `json:"clobTokenIds"`
	EndDateISO   string     `json:"endDateIso"`
	Closed       bool       `json:"closed"`
}

type Event struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Markets []*Market `json:"markets"`
}

func (c *Client) GetMarkets() ([]*Market, error) {
	return httpclient.GetResource[[]*Market](c.httpClient, c.baseURL, "/markets", []int{200})
}

// GetMarketBySlug looks a market up by its exact slug. The API
// returns an array; zero hits means the slug was never listed.
func (c *Client) GetMarketBySlug(slug string) (*Market, error) {
	endpoint := "/markets?slug=" + url.QueryEscape(slug)
	markets, err := httpclient.GetResource[[]*Market](c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by slug %s: %w", slug, err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market listed for slug %s", slug)
	}
	return markets[0], nil
}

func (c *Client) GetEventBySlug(slug string) (*Event, error) {
	return httpclient.GetResource[*Event](c.httpClient, c.baseURL, "/events/slug/"+slug, []int{200})
}
