// Package websocket streams market channel events from Polymarket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	PingInterval        = 50 * time.Second
)

type Client struct {
	conn     *websocket.Conn
	stopPing chan struct{}
}

type MarketSubscription struct {
	AssetsIDs   []string `json:"assets_ids"`
	Type        string   `json:"type"`
	InitialDump *bool    `json:"initial_dump"`
}

func New(ctx context.Context, url string, endpoint string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url+endpoint, http.Header{})
	if err != nil {
		return nil, err
	}
	log.Printf("connected to Polymarket websocket endpoint %s: %v", endpoint, resp.Status)

	c := &Client{
		conn:     conn,
		stopPing: make(chan struct{}),
	}
	go c.pingLoop()

	return c, nil
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			deadline := time.Now().Add(DefaultWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Printf("failed to send ping: %v", err)
				return
			}
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	close(c.stopPing)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCloseTimeout)
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil {
		log.Printf("failed to send close message: %v", err)
	}

	return c.conn.Close()
}

func (c *Client) SubscribeMarket(ctx context.Context, tokenIDs []string, initialDump bool) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)

	sub := MarketSubscription{
		AssetsIDs:   tokenIDs,
		Type:        "market",
		InitialDump: &initialDump,
	}
	return c.conn.WriteJSON(sub)
}

type result struct {
	RawMessage []byte
	Error      error
}

func (c *Client) ReadMessage(ctx context.Context) (*Message, error) {
	resultCh := make(chan result, 1)

	go func() {
		_, msg, err := c.conn.ReadMessage()
		resultCh <- result{
			RawMessage: msg,
			Error:      err,
		}
	}()

	select {
	case <-ctx.Done():
		if err := c.conn.SetReadDeadline(time.Now()); err != nil {
			log.Printf("failed to set read deadline: %v", err)
		}
		return nil, fmt.Errorf("reading message: %w", ctx.Err())
	case result := <-resultCh:
		if result.Error != nil {
			return nil, fmt.Errorf("couldn't read message: %w", result.Error)
		}
		msg, err := ParseMessage(result.RawMessage)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse message: %w", err)
		}
		return msg, nil
	}
}

type Message struct {
	EventType      string `json:"event_type"`
	PriceChange    *PriceChange
	LastTradePrice *LastTradePrice
	MarketResolved *MarketResolved
}

type PriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

type LastTradePrice struct {
	AssetID    string `json:"asset_id"`
	FeeRateBPS string `json:"fee_rate_bps"`
	Market     string `json:"market"`
	Price      string `json:"price"`
	Side       string `json:"side"`
	Size       string `json:"size"`
	Timestamp  string `json:"timestamp"`
}

type MarketResolved struct {
	MarketID          string `json:"id"`
	Question          string `json:"question"`
	MarketConditionID string `json:"market"`
	Timestamp         string `json:"timestamp"`
}

const (
	PriceChangeEvent    = "price_change"
	LastTradePriceEvent = "last_trade_price"
	MarketResolvedEvent = "market_resolved"
)

func ParseMessage(msg []byte) (*Message, error) {
	base := &Message{}
	if err := json.Unmarshal(msg, base); err != nil {
		return nil, fmt.Errorf("couldn't parse base message: %w", err)
	}

	switch base.EventType {
	case PriceChangeEvent:
		pc := &PriceChange{}
		if err := json.Unmarshal(msg, pc); err != nil {
			return nil, fmt.Errorf("couldn't parse price change event: %w", err)
		}
		return &Message{EventType: PriceChangeEvent, PriceChange: pc}, nil
	case LastTradePriceEvent:
		ltp := &LastTradePrice{}
		if err := json.Unmarshal(msg, ltp); err != nil {
			return nil, fmt.Errorf("couldn't parse last trade price event: %w", err)
		}
		return &Message{EventType: LastTradePriceEvent, LastTradePrice: ltp}, nil
	case MarketResolvedEvent:
		mr := &MarketResolved{}
		if err := json.Unmarshal(msg, mr); err != nil {
			return nil, fmt.Errorf("couldn't parse market resolved event: %w", err)
		}
		return &Message{EventType: MarketResolvedEvent, MarketResolved: mr}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", base.EventType)
	}
}
