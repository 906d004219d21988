package price

import (
	"encoding/json"
	"testing"
)

func TestPriceUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{"zero", `"0"`, 0, false},
		{"one", `"1"`, 1_000_000, false},
		{"half", `"0.5"`, 500_000, false},
		{"quarter", `"0.25"`, 250_000, false},
		{"typical price", `"0.123456"`, 123_456, false},
		{"needs padding 1 digit", `"0.1"`, 100_000, false},
		{"needs padding 2 digits", `"0.12"`, 120_000, false},
		{"needs padding 3 digits", `"0.123"`, 123_000, false},
		{"needs truncation", `"0.1234567"`, 123_456, false},
		{"raw number no quotes", `0.25`, 250_000, false},
		{"whole with frac", `"1.5"`, 1_500_000, false},
		{"small frac", `"0.000001"`, 1, false},
		{"max precision", `"0.999999"`, 999_999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Price
			err := got.UnmarshalJSON([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSizeUnmarshalJSON(t *testing.T) {
	type summary struct {
		Price Price `json:"price"`
		Size  Size  `json:"size"`
	}

	input := `{"price": "0.75", "size": "120.5"}`
	var s summary
	if err := json.Unmarshal([]byte(input), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s.Price != 750_000 {
		t.Errorf("price: got %d, want 750000", s.Price)
	}
	if s.Size != 120_500_000 {
		t.Errorf("size: got %d, want 120500000", s.Size)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Price
	}{
		{"half", 0.5, 500_000},
		{"typical", 0.1925, 192_500},
		{"one", 1.0, 1_000_000},
		{"smallest tick", 0.000001, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromFloat(tt.in)
			if got != tt.want {
				t.Errorf("FromFloat(%v) = %d, want %d", tt.in, got, tt.want)
			}
			if got.Float() != tt.in {
				t.Errorf("Float() = %v, want %v", got.Float(), tt.in)
			}
		})
	}
}

func TestPriceString(t *testing.T) {
	if s := FromFloat(0.35).String(); s != "0.35" {
		t.Errorf("got %q, want \"0.35\"", s)
	}
}

func BenchmarkPriceUnmarshalJSON(b *testing.B) {
	data := []byte(`"0.123456"`)
	var p Price

	for i := 0; i < b.N; i++ {
		_ = p.UnmarshalJSON(data)
	}
}
