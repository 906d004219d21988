package gamma

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStringList_DoubleEncoded(t *testing.T) {
	var l StringList
	if err := json.Unmarshal([]byte(`"[\"Up\", \"Down\"]"`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(l) != 2 || l[0] != "Up" || l[1] != "Down" {
		t.Errorf("list = %v", l)
	}
}

func TestGetMarketBySlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("slug"); got != "btc-updown-15m-1765988100" {
			t.Errorf("slug = %q", got)
		}
		w.Write([]byte(`[{
			"id": "123",
			"slug": "btc-updown-15m-1765988100",
			"outcomes": "[\"Up\", \"Down\"]",
			"clobTokenIds": "[\"t-up\", \"t-down\"]"
		}]`))
	}))
	defer server.Close()

	client := New(server.URL)
	m, err := client.GetMarketBySlug("btc-updown-15m-1765988100")
	if err != nil {
		t.Fatalf("GetMarketBySlug: %v", err)
	}
	if m.ID != "123" {
		t.Errorf("id = %q", m.ID)
	}
	if len(m.ClobTokenIDs) != 2 || m.ClobTokenIDs[0] != "t-up" {
		t.Errorf("token IDs = %v", m.ClobTokenIDs)
	}
}

func TestGetMarketBySlug_NotListed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.GetMarketBySlug("btc-updown-15m-900"); err == nil {
		t.Fatal("expected an error for an unlisted slug")
	}
}
