package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type page struct {
	Count int      `json:"count"`
	Data  []string `json:"data"`
}

func newClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func TestGetResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"count": 2, "data": ["a", "b"]}`))
	}))
	defer srv.Close()

	got, err := GetResource[page](newClient(), srv.URL, "/markets", []int{200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 2 || len(got.Data) != 2 {
		t.Errorf("got %+v, want count=2 len(data)=2", got)
	}
}

func TestGetResource_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"count": 1, "data": ["a"]}`))
	}))
	defer srv.Close()

	got, err := GetResource[page](newClient(), srv.URL, "/", []int{200})
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if got.Count != 1 {
		t.Errorf("got count %d, want 1", got.Count)
	}
}

func TestGetResource_NoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := GetResource[page](newClient(), srv.URL, "/", []int{200}); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls)
	}
}
