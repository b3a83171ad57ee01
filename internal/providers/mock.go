package providers

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockTranscriber is a Transcriber for testing and dry runs.
type MockTranscriber struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailPages    []int          // pages that fail with an error
	ResponseText string         // used when PageText has no entry
	PageText     map[int]string // per-page responses
	HealthErr    error

	// State
	requestCount atomic.Int64
}

// NewMockTranscriber creates a mock that echoes the page number as inline math.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{
		Latency: 10 * time.Millisecond,
	}
}

// Name returns the provider identifier.
func (m *MockTranscriber) Name() string {
	return MockName
}

// HealthCheck returns HealthErr.
func (m *MockTranscriber) HealthCheck(_ context.Context) error {
	return m.HealthErr
}

// Transcribe returns the configured text after Latency.
func (m *MockTranscriber) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	start := time.Now()
	m.requestCount.Add(1)

	if m.ShouldFail {
		return nil, fmt.Errorf("mock transcriber configured to fail")
	}
	if slices.Contains(m.FailPages, req.PageNum) {
		return nil, fmt.Errorf("mock transcriber failed on page %d", req.PageNum)
	}

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text, ok := m.PageText[req.PageNum]
	if !ok {
		text = m.ResponseText
	}
	if !ok && text == "" {
		text = fmt.Sprintf("Page $%d$", req.PageNum)
	}

	return &TranscribeResult{
		Text:             text,
		PromptTokens:     len(UserPrompt(req.PageNum)) / 4,
		CompletionTokens: len(text) / 4,
		Provider:         MockName,
		ModelUsed:        MockName,
		RequestID:        req.RequestID,
		ExecutionTime:    time.Since(start),
	}, nil
}

// RequestCount returns the number of requests made.
func (m *MockTranscriber) RequestCount() int64 {
	return m.requestCount.Load()
}

// Reset resets the request counter.
func (m *MockTranscriber) Reset() {
	m.requestCount.Store(0)
}

var _ Transcriber = (*MockTranscriber)(nil)
