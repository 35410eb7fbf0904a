package reserve

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultFetchTimeout bounds one reservation document fetch.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher retrieves the reservation document over HTTP.
type Fetcher struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration // 0: DefaultFetchTimeout
	Now     func() time.Time
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Fetch downloads and parses the reservation document. A transport
// failure or a non-200 status fails the fetch; malformed lines inside
// an otherwise readable document do not.
func (f *Fetcher) Fetch(ctx context.Context) (*Batch, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reservations: unexpected status %s", resp.Status)
	}
	return ParseDocument(resp.Body, f.now())
}
