package provider

import (
	"context"
	"time"

	"github.com/recall-oss/recall/internal/memory"
)

// Generator produces the actual response for a turn, invoked only on a
// cache miss.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, attachments []memory.Attachment) (string, error)
}

// SummarizerFunc adapts a function to the memory.Summarizer interface.
type SummarizerFunc func(ctx context.Context, messages []memory.Message) (memory.SummaryResult, error)

func (f SummarizerFunc) Summarize(ctx context.Context, messages []memory.Message) (memory.SummaryResult, error) {
	return f(ctx, messages)
}

// TimeoutSummarizer enforces an upper bound on every summarization call.
// Rotation must never block indefinitely; once the deadline passes the
// call reports failure and rotation takes the verbatim-fallback path.
type TimeoutSummarizer struct {
	inner   memory.Summarizer
	timeout time.Duration
}

// NewTimeoutSummarizer wraps inner with a per-call deadline.
func NewTimeoutSummarizer(inner memory.Summarizer, timeout time.Duration) *TimeoutSummarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TimeoutSummarizer{inner: inner, timeout: timeout}
}

func (t *TimeoutSummarizer) Summarize(ctx context.Context, messages []memory.Message) (memory.SummaryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		result memory.SummaryResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := t.inner.Summarize(ctx, messages)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		// The inner call may ignore cancellation; abandon it rather
		// than block rotation.
		return memory.SummaryResult{}, ctx.Err()
	}
}
