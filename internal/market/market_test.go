package market

import (
	"testing"
	"time"
)

func TestParseSlug(t *testing.T) {
	tests := []struct {
		name      string
		slug      string
		wantAsset string
		wantEpoch int64
		wantErr   bool
	}{
		{"btc", "btc-updown-15m-1765988100", "btc", 1765988100, false},
		{"eth", "eth-updown-15m-1765989000", "eth", 1765989000, false},
		{"unknown asset", "doge-updown-15m-1765988100", "", 0, true},
		{"hourly market", "btc-updown-1h-1765988100", "", 0, true},
		{"unaligned epoch", "btc-updown-15m-1765988101", "", 0, true},
		{"empty", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, epoch, err := ParseSlug(tt.slug)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if asset != tt.wantAsset || epoch != tt.wantEpoch {
				t.Errorf("got (%q, %d), want (%q, %d)", asset, epoch, tt.wantAsset, tt.wantEpoch)
			}
		})
	}
}

func TestSlugRoundTrip(t *testing.T) {
	slug := Slug("sol", 1765988100)
	asset, epoch, err := ParseSlug(slug)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset != "sol" || epoch != 1765988100 {
		t.Errorf("round trip got (%q, %d)", asset, epoch)
	}
}

func TestInstanceExpiry(t *testing.T) {
	inst := Instance{Epoch: 1765988100}
	want := time.Unix(1765988100, 0).UTC().Add(15 * time.Minute)
	if !inst.Expiry().Equal(want) {
		t.Errorf("expiry = %v, want %v", inst.Expiry(), want)
	}
}

func TestMergeHistories(t *testing.T) {
	t0 := time.Unix(1765988100, 0).UTC()
	pt := func(offset time.Duration, p float64) Point {
		return Point{Time: t0.Add(offset), Price: p}
	}

	yes := []Point{pt(0, 0.40), pt(time.Minute, 0.34), pt(3*time.Minute, 0.24)}
	no := []Point{pt(0, 0.60), pt(2*time.Minute, 0.70), pt(3*time.Minute, 0.76)}

	merged := MergeHistories(yes, no)
	if len(merged) != 2 {
		t.Fatalf("expected 2 joined snapshots, got %d", len(merged))
	}
	if merged[0].Yes != 0.40 || merged[0].No != 0.60 {
		t.Errorf("first snapshot = %+v", merged[0])
	}
	if merged[1].Yes != 0.24 || merged[1].No != 0.76 {
		t.Errorf("second snapshot = %+v", merged[1])
	}
	if merged[0].Seq >= merged[1].Seq {
		t.Errorf("sequence numbers must increase: %d, %d", merged[0].Seq, merged[1].Seq)
	}
}

func TestMergeHistories_Empty(t *testing.T) {
	if got := MergeHistories(nil, nil); len(got) != 0 {
		t.Errorf("expected empty merge, got %d", len(got))
	}
}
