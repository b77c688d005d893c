package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds every request made by HTTPTransport.
const DefaultTimeout = 10 * time.Second

// Request describes one logical GET against the feed.
type Request struct {
	Path  string
	Query url.Values
}

// Transport performs a single blocking network request.
// Implementations must honour ctx and never hang without a deadline.
type Transport interface {
	Perform(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// HTTPTransport implements Transport over HTTP with an API key header.
type HTTPTransport struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	Client       *http.Client
}

// NewHTTPTransport creates a transport with optional proxy support.
func NewHTTPTransport(baseURL, apiKey, apiKeyHeader, proxyURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPTransport{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		APIKeyHeader: apiKeyHeader,
		Timeout:      timeout,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (t *HTTPTransport) Name() string { return "http" }

// Perform issues the GET and returns the body of a 200 response.
func (t *HTTPTransport) Perform(ctx context.Context, r Request) ([]byte, error) {
	endpoint := t.BaseURL + r.Path
	if len(r.Query) > 0 {
		endpoint += "?" + r.Query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.APIKey != "" && t.APIKeyHeader != "" {
		req.Header.Set(t.APIKeyHeader, t.APIKey)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: r.Path, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: r.Path, Timeout: isTimeout(err), Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: r.Path, StatusCode: resp.StatusCode, Err: fmt.Errorf("body: %.200s", body)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
