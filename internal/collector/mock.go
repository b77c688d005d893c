package collector

import (
	"context"
	"sync"
)

// MockTransport returns controllable payloads for development and testing.
// Responses are keyed by request path.
type MockTransport struct {
	mu        sync.Mutex
	Responses map[string][]byte
	Errors    map[string]error
	// Block, when set, is waited on before answering (or until ctx ends).
	Block chan struct{}
	calls map[string]int
}

// NewMockTransport creates an empty mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Responses: make(map[string][]byte),
		Errors:    make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (m *MockTransport) Name() string { return "mock" }

// Set replaces the payload for path and clears any error.
func (m *MockTransport) Set(path string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[path] = body
	delete(m.Errors, path)
}

// Fail makes every request for path return err.
func (m *MockTransport) Fail(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[path] = err
}

// Calls returns how many requests were made for path.
func (m *MockTransport) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func (m *MockTransport) Perform(ctx context.Context, r Request) ([]byte, error) {
	m.mu.Lock()
	m.calls[r.Path]++
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &NetworkError{URL: r.Path, Timeout: true, Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[r.Path]; ok {
		return nil, err
	}
	body, ok := m.Responses[r.Path]
	if !ok {
		return nil, &NetworkError{URL: r.Path, StatusCode: 404}
	}
	return body, nil
}
