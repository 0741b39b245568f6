package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/recall-oss/recall/internal/config"
	"github.com/recall-oss/recall/internal/memory"
	"github.com/recall-oss/recall/internal/telemetry"
)

// MockGenerator implements provider.Generator for testing.
type MockGenerator struct {
	mu         sync.Mutex
	Responses  []string // queued responses, consumed in order
	Prompts    []string // every prompt passed to Generate
	ShouldFail bool
	FailErr    error
	Delay      time.Duration
	idx        int
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, _ []memory.Attachment) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if m.ShouldFail {
		if m.FailErr != nil {
			return "", m.FailErr
		}
		return "", fmt.Errorf("mock generator error")
	}

	if m.idx >= len(m.Responses) {
		return "default mock response", nil
	}

	resp := m.Responses[m.idx]
	m.idx++
	return resp, nil
}

// CallCount returns the number of Generate calls made (thread-safe).
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MockSummarizer implements memory.Summarizer for testing.
type MockSummarizer struct {
	mu         sync.Mutex
	Summary    string // fixed summary text; defaults to a roll-up of roles
	ShouldFail bool
	FailErr    error
	Delay      time.Duration
	Batches    [][]memory.Message
}

func (m *MockSummarizer) Summarize(ctx context.Context, messages []memory.Message) (memory.SummaryResult, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return memory.SummaryResult{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]memory.Message, len(messages))
	copy(batch, messages)
	m.Batches = append(m.Batches, batch)

	if m.ShouldFail {
		if m.FailErr != nil {
			return memory.SummaryResult{}, m.FailErr
		}
		return memory.SummaryResult{}, fmt.Errorf("mock summarizer error")
	}

	text := m.Summary
	if text == "" {
		roles := make([]string, len(messages))
		for i, msg := range messages {
			roles[i] = msg.Role
		}
		text = fmt.Sprintf("summary of %d messages (%s)", len(messages), strings.Join(roles, ","))
	}
	return memory.SummaryResult{Text: text, OK: true}, nil
}

// BatchCount returns the number of Summarize calls made (thread-safe).
func (m *MockSummarizer) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}

// TestLogger returns a logger suitable for tests (verbose, no file output).
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(true)
}

// TestConfig returns a minimal config for testing.
func TestConfig() *config.Config {
	return &config.Config{
		Name:    "test-project",
		Version: "1.0",
		Memory: config.MemoryConfig{
			MaxActiveMessages:    10,
			RotationBatchSize:    5,
			SummarizationTimeout: "5s",
			MaxContentLength:     1 << 20,
			ContextBudgetChars:   24000,
		},
		Store: config.StoreConfig{
			Path: ".recall/history.db",
		},
		Cache: config.CacheConfig{
			TTL:                 "24h",
			MaxEntries:          100,
			Mode:                "similarity",
			SimilarityThreshold: 0.85,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}
