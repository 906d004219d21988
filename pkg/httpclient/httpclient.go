// Package httpclient provides shared helpers for the REST clients that
// consume prediction market APIs.
package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

const (
	RetryAttempts    = 3
	RetryBackoffBase = 1 * time.Second

	// RequestDelay spaces consecutive requests so paginated scans stay
	// under the public API rate limits.
	RequestDelay = 300 * time.Millisecond
)

// GetResource fetches baseURL+endpoint, retrying on rate limits and
// server errors with exponential backoff, and decodes the JSON body
// into T. A status code outside allowedStatuses fails the request.
func GetResource[T any](client *http.Client, baseURL, endpoint string, allowedStatuses []int) (T, error) {
	var zero T

	body, err := getWithRetry(client, baseURL+endpoint, allowedStatuses)
	if err != nil {
		return zero, err
	}

	var resource T
	if err := json.Unmarshal(body, &resource); err != nil {
		return zero, fmt.Errorf("couldn't decode response from %s: %w", endpoint, err)
	}
	return resource, nil
}

func getWithRetry(client *http.Client, url string, allowedStatuses []int) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < RetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(RetryBackoffBase * time.Duration(1<<(attempt-1)))
		}

		body, retryable, err := getOnce(client, url, allowedStatuses)
		if err == nil {
			time.Sleep(RequestDelay)
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", RetryAttempts, lastErr)
}

func getOnce(client *http.Client, url string, allowedStatuses []int) (body []byte, retryable bool, err error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, true, fmt.Errorf("couldn't request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if !slices.Contains(allowedStatuses, resp.StatusCode) {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("couldn't read response body: %w", err)
	}
	return body, false, nil
}
