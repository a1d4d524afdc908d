package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const MockClientName = "mock"

// MockClient is a VisionClient for testing. It replays Responses in order and
// repeats the last one once they run out. A non-nil entry in Errors at the same
// position fails that call instead.
type MockClient struct {
	Responses []string
	Errors    []error

	mu       sync.Mutex
	requests []*ChatRequest

	requestCount atomic.Int64
}

// NewMockClient creates a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{Responses: []string{response}}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records the request and returns the next scripted answer.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int(c.requestCount.Add(1)) - 1

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if n < len(c.Errors) && c.Errors[n] != nil {
		return nil, c.Errors[n]
	}
	if len(c.Responses) == 0 {
		return nil, fmt.Errorf("mock client has no responses")
	}
	idx := n
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	return &ChatResult{
		Content:   c.Responses[idx],
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ChatRequest(nil), c.requests...)
}

var _ VisionClient = (*MockClient)(nil)
