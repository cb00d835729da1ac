// Package netx holds small HTTP helpers shared by outbound clients.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxDownloadSize caps the body Download is willing to buffer.
const MaxDownloadSize = 10 << 20

// ErrTooLarge is returned when a response body exceeds the download limit.
var ErrTooLarge = errors.New("response body too large")

// Download fetches url with GET and returns the whole body. Any status other
// than 200 is an error carrying the status and a short body excerpt.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxDownloadSize {
		return nil, ErrTooLarge
	}
	return body, nil
}
