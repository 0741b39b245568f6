package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/recall-oss/recall/internal/cache"
	recallErrors "github.com/recall-oss/recall/internal/errors"
	"github.com/recall-oss/recall/internal/event"
	"github.com/recall-oss/recall/internal/memory"
	"github.com/recall-oss/recall/internal/testutil"
)

func newTestWorker(t *testing.T, h *testutil.TestHarness) *Worker {
	t.Helper()

	ttl, _ := h.Config.Cache.ParsedTTL()
	responseCache := cache.New(cache.Config{
		MaxEntries:          h.Config.Cache.MaxEntries,
		TTL:                 ttl,
		Mode:                cache.ModeExact,
		SimilarityThreshold: h.Config.Cache.SimilarityThreshold,
	}, h.Logger)

	w, err := NewWorker("session-1", Deps{
		Config:     h.Config,
		Generator:  h.Generator,
		Summarizer: h.Summarizer,
		Store:      h.Store,
		Cache:      responseCache,
		Bus:        h.EventBus,
		Logger:     h.Logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWorker_ProcessBasic(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.SetResponses("hello there")

	turn, err := w.Process(context.Background(), "hi", nil)
	if err != nil {
		t.Fatal(err)
	}
	if turn.Output != "hello there" {
		t.Errorf("unexpected output: %q", turn.Output)
	}
	if turn.Cached {
		t.Error("first turn should not be cached")
	}
	if turn.Degraded {
		t.Error("turn should not be degraded")
	}

	// Both sides of the exchange reach rotation memory and the store.
	if len(w.Memory().Active()) != 2 {
		t.Errorf("expected 2 active messages, got %d", len(w.Memory().Active()))
	}
	stored, err := h.Store.Recent("session-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	if stored[0].Role != memory.RoleUser || stored[1].Role != memory.RoleAssistant {
		t.Errorf("unexpected stored roles: %s, %s", stored[0].Role, stored[1].Role)
	}

	h.AssertEventEmitted(event.TurnStarted)
	h.AssertEventEmitted(event.TurnCompleted)
	h.AssertNoEvent(event.StoreDegraded)
}

func TestWorker_CacheHitSkipsGenerator(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.SetResponses("first answer")

	first, err := w.Process(context.Background(), "what is recall", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.Process(context.Background(), "what is recall", nil)
	if err != nil {
		t.Fatal(err)
	}

	if second.Output != first.Output {
		t.Errorf("cached turn output %q differs from original %q", second.Output, first.Output)
	}
	if !second.Cached {
		t.Error("second turn should be served from cache")
	}
	if h.Generator.CallCount() != 1 {
		t.Errorf("expected 1 generator call, got %d", h.Generator.CallCount())
	}
	h.AssertEventEmitted(event.CacheHit)

	// Cached turns are still recorded as real exchanges.
	stored, _ := h.Store.Recent("session-1", 10)
	if len(stored) != 4 {
		t.Errorf("expected 4 stored messages, got %d", len(stored))
	}
}

func TestWorker_PromptIncludesHistoryAndInput(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	w.SetSystemPrompt("You are a terse assistant.")
	h.SetResponses("four", "five")

	if _, err := w.Process(context.Background(), "what is 2+2", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Process(context.Background(), "and one more", nil); err != nil {
		t.Fatal(err)
	}

	prompts := h.Generator.Prompts
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	second := prompts[1]
	if !strings.HasPrefix(second, "You are a terse assistant.") {
		t.Errorf("system text must lead the prompt:\n%s", second)
	}
	for _, want := range []string{"user: what is 2+2", "assistant: four", "user: and one more"} {
		if !strings.Contains(second, want) {
			t.Errorf("prompt missing %q:\n%s", want, second)
		}
	}
}

func TestWorker_ValidationRejected(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)

	_, err := w.Process(context.Background(), "   ", nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !recallErrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if h.Generator.CallCount() != 0 {
		t.Error("generator should not be called for invalid input")
	}
	h.AssertNoEvent(event.TurnStarted)
}

func TestWorker_GenerationFailureLeavesMemoryClean(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.Generator.ShouldFail = true

	_, err := w.Process(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("expected generation error")
	}
	if recallErrors.AsCode(err) != recallErrors.CodeGenerationFailed {
		t.Errorf("expected %s, got %v", recallErrors.CodeGenerationFailed, err)
	}

	if len(w.Memory().Active()) != 0 {
		t.Error("failed turn must not be recorded in rotation memory")
	}
	stored, _ := h.Store.Recent("session-1", 10)
	if len(stored) != 0 {
		t.Error("failed turn must not be persisted")
	}
	h.AssertEventEmitted(event.TurnFailed)
	h.AssertNoEvent(event.TurnCompleted)
}

func TestWorker_DegradedTurnStillCompletes(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.SetResponses("still answered")

	// Simulate store failure by closing the database underneath the worker.
	if err := h.Store.Close(); err != nil {
		t.Fatal(err)
	}

	turn, err := w.Process(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("turn should complete despite store failure, got %v", err)
	}
	if turn.Output != "still answered" {
		t.Errorf("unexpected output: %q", turn.Output)
	}
	if !turn.Degraded {
		t.Error("turn should be flagged degraded")
	}

	// The exchange survives in rotation memory even without durability.
	if len(w.Memory().Active()) != 2 {
		t.Errorf("expected 2 active messages, got %d", len(w.Memory().Active()))
	}
	h.AssertEventEmitted(event.StoreDegraded)
	h.AssertEventEmitted(event.TurnCompleted)
}

func TestWorker_RotationEventsDuringProcess(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)

	// 6 turns = 12 messages against a 10-message active cap.
	for i := 0; i < 6; i++ {
		if _, err := w.Process(context.Background(), "turn input", nil); err != nil {
			t.Fatal(err)
		}
	}
	h.AssertEventEmitted(event.RotationCompacted)
	h.AssertNoEvent(event.RotationFallback)

	stats := w.Memory().Stats()
	if stats.PassiveSummaries == 0 {
		t.Error("expected at least one summary after rotation")
	}
}

func TestWorker_RotationFallbackEvent(t *testing.T) {
	h := testutil.NewTestHarness(t)
	h.Summarizer.ShouldFail = true
	w := newTestWorker(t, h)

	for i := 0; i < 6; i++ {
		if _, err := w.Process(context.Background(), "turn input", nil); err != nil {
			t.Fatal(err)
		}
	}
	h.AssertEventEmitted(event.RotationFallback)

	stats := w.Memory().Stats()
	if stats.ArchivedVerbatim == 0 {
		t.Error("expected verbatim archives when the summarizer fails")
	}
}

func TestWorker_UndoRemovesLastTurn(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.SetResponses("a", "b")

	w.Process(context.Background(), "one", nil)
	w.Process(context.Background(), "two", nil)

	if !w.Undo() {
		t.Fatal("undo should succeed")
	}
	active := w.Memory().Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 active messages after undo, got %d", len(active))
	}
	if active[1].Content != "a" {
		t.Errorf("expected last remaining content %q, got %q", "a", active[1].Content)
	}
}

func TestWorker_Clear(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)

	w.Process(context.Background(), "one", nil)
	w.Clear()

	if len(w.Memory().Context()) != 0 {
		t.Error("clear should empty both tiers")
	}
	h.AssertEventEmitted(event.SessionCleared)
}

func TestWorker_AttachmentsShapeCacheKey(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.SetResponses("answer one", "answer two")

	att := []memory.Attachment{{Name: "notes.txt", Content: "context"}}
	first, _ := w.Process(context.Background(), "summarize", att)
	second, err := w.Process(context.Background(), "summarize", nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Cached {
		t.Error("different attachments must not share a cache entry")
	}
	if first.Output == second.Output {
		t.Error("expected distinct generated outputs")
	}
}

func TestNewWorker_Validation(t *testing.T) {
	h := testutil.NewTestHarness(t)

	if _, err := NewWorker("", Deps{Config: h.Config, Generator: h.Generator}); err == nil {
		t.Error("expected error for empty session id")
	}
	if _, err := NewWorker("s", Deps{Generator: h.Generator}); err == nil {
		t.Error("expected error for missing config")
	}
	if _, err := NewWorker("s", Deps{Config: h.Config}); err == nil {
		t.Error("expected error for missing generator")
	}
}

func TestPool_OneWorkerPerSession(t *testing.T) {
	h := testutil.NewTestHarness(t)
	pool := NewPool(Deps{
		Config:    h.Config,
		Generator: h.Generator,
		Store:     h.Store,
		Logger:    h.Logger,
	})

	a, err := pool.Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	b, err := pool.Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same session id should return the same worker")
	}

	c, _ := pool.Get("beta")
	if c == a {
		t.Error("different sessions must get different workers")
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 workers, got %d", pool.Len())
	}

	pool.Drop("alpha")
	if pool.Len() != 1 {
		t.Errorf("expected 1 worker after drop, got %d", pool.Len())
	}
}

func TestWorker_ProcessSerialized(t *testing.T) {
	h := testutil.NewTestHarness(t)
	w := newTestWorker(t, h)
	h.Generator.Delay = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Process(context.Background(), "concurrent a", nil)
	}()
	w.Process(context.Background(), "concurrent b", nil)
	<-done

	stored, _ := h.Store.Recent("session-1", 10)
	if len(stored) != 4 {
		t.Errorf("expected 4 stored messages from 2 turns, got %d", len(stored))
	}
}
