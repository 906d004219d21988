package websocket

import "testing"

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "last trade price",
			raw:  `{"event_type":"last_trade_price","asset_id":"t-up","price":"0.34","size":"12.5","timestamp":"1765988160000"}`,
			want: LastTradePriceEvent,
		},
		{
			name: "price change",
			raw:  `{"event_type":"price_change","asset_id":"t-up","price":"0.34","side":"BUY"}`,
			want: PriceChangeEvent,
		},
		{
			name: "market resolved",
			raw:  `{"event_type":"market_resolved","market":"c1"}`,
			want: MarketResolvedEvent,
		},
		{
			name:    "unknown event",
			raw:     `{"event_type":"tick_size_change"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			if msg.EventType != tt.want {
				t.Errorf("event type = %q, want %q", msg.EventType, tt.want)
			}
		})
	}
}

func TestParseMessage_LastTradePriceFields(t *testing.T) {
	raw := `{"event_type":"last_trade_price","asset_id":"t-up","price":"0.34","size":"12.5","timestamp":"1765988160000"}`
	msg, err := ParseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	ltp := msg.LastTradePrice
	if ltp == nil {
		t.Fatal("expected a last trade price payload")
	}
	if ltp.AssetID != "t-up" || ltp.Price != "0.34" || ltp.Size != "12.5" {
		t.Errorf("payload = %+v", ltp)
	}
}
