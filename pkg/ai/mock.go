package ai

import (
	"context"
	"sync"
)

// MockResponse is a canned reply for the MockGenerator.
type MockResponse struct {
	Text string
	Err  error
}

// MockCall records one Generate invocation.
type MockCall struct {
	Prompt  string
	Options Options
}

// MockGenerator is a deterministic Generator for tests. It returns canned
// responses in FIFO order and reports the backend as unavailable once the
// queue is drained.
type MockGenerator struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []MockCall
}

// NewMockGenerator creates a MockGenerator with the given responses.
func NewMockGenerator(responses ...MockResponse) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// Generate returns the next canned response.
func (m *MockGenerator) Generate(_ context.Context, prompt string, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Prompt: prompt, Options: opts})

	if len(m.responses) == 0 {
		return "", &UnavailableError{Provider: "mock"}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Text, nil
}

// Model returns "mock".
func (m *MockGenerator) Model() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockGenerator) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
