package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	recallErrors "github.com/recall-oss/recall/internal/errors"
)

// stubSummarizer is a scriptable summarizer for rotation tests.
type stubSummarizer struct {
	calls    int
	failFor  int  // fail the first n calls
	empty    bool // return OK=false instead of an error
	lastSize int
}

func (s *stubSummarizer) Summarize(_ context.Context, messages []Message) (SummaryResult, error) {
	s.calls++
	s.lastSize = len(messages)
	if s.calls <= s.failFor {
		return SummaryResult{}, fmt.Errorf("summarizer unavailable")
	}
	if s.empty {
		return SummaryResult{}, nil
	}
	return SummaryResult{Text: fmt.Sprintf("summary of %d messages", len(messages)), OK: true}, nil
}

func newTestManager(summarizer Summarizer) *Manager {
	return NewManager("test-session", Config{
		MaxActiveMessages: 10,
		RotationBatchSize: 5,
	}, summarizer, nil)
}

func TestManager_AppendValidation(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	if _, err := m.Append(ctx, RoleUser, ""); !recallErrors.IsValidation(err) {
		t.Errorf("expected validation error for empty content, got %v", err)
	}
	if _, err := m.Append(ctx, RoleUser, "   \n\t"); !recallErrors.IsValidation(err) {
		t.Errorf("expected validation error for whitespace content, got %v", err)
	}
	if _, err := m.Append(ctx, "narrator", "hello"); !recallErrors.IsValidation(err) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}

	small := NewManager("s", Config{MaxActiveMessages: 10, RotationBatchSize: 5, MaxContentLength: 8}, nil, nil)
	if _, err := small.Append(ctx, RoleUser, "far too long for the bound"); !recallErrors.IsValidation(err) {
		t.Errorf("expected validation error for oversized content, got %v", err)
	}

	if len(m.Active()) != 0 {
		t.Errorf("rejected messages must not reach the active tier, got %d", len(m.Active()))
	}
}

func TestManager_RotationProducesSummary(t *testing.T) {
	sum := &stubSummarizer{}
	m := newTestManager(sum)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		if _, err := m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	active := m.Active()
	passive := m.Passive()

	if len(active) != 6 {
		t.Errorf("expected 6 active messages after rotation, got %d", len(active))
	}
	if len(passive) != 1 {
		t.Fatalf("expected 1 summary entry, got %d", len(passive))
	}
	if !passive[0].IsSummary() {
		t.Errorf("passive entry should be a summary, got role=%s content=%q", passive[0].Role, passive[0].Content)
	}
	if passive[0].Metadata["source_count"] != "5" {
		t.Errorf("expected source_count 5, got %q", passive[0].Metadata["source_count"])
	}
	if sum.lastSize != 5 {
		t.Errorf("expected summarizer to receive batch of 5, got %d", sum.lastSize)
	}
	if active[0].Content != "message 5" {
		t.Errorf("expected oldest remaining message 5, got %q", active[0].Content)
	}
}

func TestManager_FallbackScenario(t *testing.T) {
	// max_active_messages=10, batch_size=5, summarization always fails:
	// after 15 appends the active tier holds the last 10 and the passive
	// tier holds the first 5, each flagged archived, nothing missing.
	sum := &stubSummarizer{failFor: 1 << 30}
	m := newTestManager(sum)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	active := m.Active()
	passive := m.Passive()

	if len(active) != 10 {
		t.Fatalf("expected 10 active messages, got %d", len(active))
	}
	if len(passive) != 5 {
		t.Fatalf("expected 5 passive messages, got %d", len(passive))
	}
	for i, msg := range passive {
		if !msg.Archived {
			t.Errorf("passive[%d] should be flagged archived", i)
		}
		if want := fmt.Sprintf("message %d", i); msg.Content != want {
			t.Errorf("passive[%d]: expected %q, got %q", i, want, msg.Content)
		}
	}
	for i, msg := range active {
		if want := fmt.Sprintf("message %d", i+5); msg.Content != want {
			t.Errorf("active[%d]: expected %q, got %q", i, want, msg.Content)
		}
	}
}

func TestManager_NoLossInvariant(t *testing.T) {
	// Every appended message must appear exactly once across both tiers,
	// verbatim or accounted for by a summary's source_count.
	for _, failing := range []bool{true, false} {
		sum := &stubSummarizer{}
		if failing {
			sum.failFor = 1 << 30
		}
		m := newTestManager(sum)
		ctx := context.Background()

		const total = 43
		for i := 0; i < total; i++ {
			if _, err := m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i)); err != nil {
				t.Fatal(err)
			}
		}

		accounted := len(m.Active())
		seen := make(map[string]int)
		for _, msg := range m.Active() {
			seen[msg.Content]++
		}
		for _, msg := range m.Passive() {
			if msg.IsSummary() {
				n := 0
				fmt.Sscanf(msg.Metadata["source_count"], "%d", &n)
				accounted += n
			} else {
				seen[msg.Content]++
				accounted++
			}
		}

		if accounted != total {
			t.Errorf("failing=%v: accounted for %d of %d messages", failing, accounted, total)
		}
		for content, count := range seen {
			if count != 1 {
				t.Errorf("failing=%v: %q appears %d times", failing, content, count)
			}
		}
	}
}

func TestManager_RecoveryAfterFailures(t *testing.T) {
	// Fail the first two rotations, then recover: the archived entries
	// from the failing window stay put, later batches get summarized,
	// no duplicates and no gaps.
	sum := &stubSummarizer{failFor: 2}
	m := newTestManager(sum)
	ctx := context.Background()

	const total = 25 // three rotations at appends 11, 16, 21
	for i := 0; i < total; i++ {
		if _, err := m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	passive := m.Passive()
	archived := 0
	summaries := 0
	for _, msg := range passive {
		if msg.Archived {
			archived++
		}
		if msg.IsSummary() {
			summaries++
		}
	}

	if archived != 10 {
		t.Errorf("expected 10 archived messages from 2 failed rotations, got %d", archived)
	}
	if summaries != 1 {
		t.Errorf("expected 1 summary after recovery, got %d", summaries)
	}
	if got := len(m.Active()); got != total-15 {
		t.Errorf("expected %d active messages, got %d", total-15, got)
	}
}

func TestManager_EmptySummaryFallsBack(t *testing.T) {
	sum := &stubSummarizer{empty: true}
	m := newTestManager(sum)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i))
	}

	passive := m.Passive()
	if len(passive) != 5 {
		t.Fatalf("expected 5 archived messages on empty summary, got %d", len(passive))
	}
	for i, msg := range passive {
		if !msg.Archived {
			t.Errorf("passive[%d] should be archived when summarizer returns nothing", i)
		}
	}
}

func TestManager_NilSummarizerArchivesVerbatim(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i))
	}

	if got := len(m.Passive()); got != 5 {
		t.Errorf("expected 5 archived messages with nil summarizer, got %d", got)
	}
}

func TestManager_ContextOrder(t *testing.T) {
	sum := &stubSummarizer{failFor: 1 << 30}
	m := newTestManager(sum)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i))
	}

	full := m.Context()
	if len(full) != 12 {
		t.Fatalf("expected 12 messages in context, got %d", len(full))
	}
	for i, msg := range full {
		if want := fmt.Sprintf("message %d", i); msg.Content != want {
			t.Errorf("context[%d]: expected %q, got %q", i, want, msg.Content)
		}
	}
}

func TestManager_Clear(t *testing.T) {
	m := newTestManager(&stubSummarizer{failFor: 1 << 30})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		m.Append(ctx, RoleUser, fmt.Sprintf("message %d", i))
	}
	m.Clear()

	if len(m.Active()) != 0 || len(m.Passive()) != 0 {
		t.Error("expected both tiers empty after Clear")
	}
}

func TestManager_PopLast(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	m.Append(ctx, RoleUser, "first")
	m.Append(ctx, RoleAssistant, "second")

	msg, ok := m.PopLast()
	if !ok || msg.Content != "second" {
		t.Errorf("expected to pop 'second', got %q ok=%v", msg.Content, ok)
	}
	if got := len(m.Active()); got != 1 {
		t.Errorf("expected 1 active message after pop, got %d", got)
	}

	m.PopLast()
	if _, ok := m.PopLast(); ok {
		t.Error("pop on empty tier should report false")
	}
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(&stubSummarizer{failFor: 1 << 30})
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		m.Append(ctx, RoleUser, strings.Repeat("x", 40))
	}

	s := m.Stats()
	if s.ActiveMessages != 6 {
		t.Errorf("expected 6 active, got %d", s.ActiveMessages)
	}
	if s.PassiveEntries != 5 || s.ArchivedVerbatim != 5 {
		t.Errorf("expected 5 archived passive entries, got %d/%d", s.PassiveEntries, s.ArchivedVerbatim)
	}
	if s.EstimatedTokens != 11*10 {
		t.Errorf("expected 110 estimated tokens, got %d", s.EstimatedTokens)
	}
}

type recordingPersister struct {
	saved   []Message
	failErr error
}

func (p *recordingPersister) Persist(msg Message) error {
	if p.failErr != nil {
		return p.failErr
	}
	p.saved = append(p.saved, msg)
	return nil
}

func TestManager_WriteThrough(t *testing.T) {
	p := &recordingPersister{}
	m := newTestManager(nil)
	m.SetPersister(p)
	ctx := context.Background()

	m.Append(ctx, RoleUser, "hello")
	m.Append(ctx, RoleAssistant, "hi there")

	if len(p.saved) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(p.saved))
	}
	if p.saved[0].SessionID != "test-session" {
		t.Errorf("persisted message should carry the session id, got %q", p.saved[0].SessionID)
	}
}

func TestManager_PersistFailureKeepsTiersValid(t *testing.T) {
	p := &recordingPersister{failErr: recallErrors.New(recallErrors.CodeStoreWrite, "commit failed")}
	m := newTestManager(nil)
	m.SetPersister(p)
	ctx := context.Background()

	_, err := m.Append(ctx, RoleUser, "hello")
	if !recallErrors.IsStoreWrite(err) {
		t.Fatalf("expected STORE_WRITE surfaced, got %v", err)
	}
	if got := len(m.Active()); got != 1 {
		t.Errorf("live session must keep the message despite degraded durability, got %d active", got)
	}
}
