package testutil

import (
	"path/filepath"
	"testing"

	"github.com/recall-oss/recall/internal/config"
	"github.com/recall-oss/recall/internal/event"
	"github.com/recall-oss/recall/internal/store"
	"github.com/recall-oss/recall/internal/telemetry"
)

// TestHarness provides everything needed for integration tests:
// config, store, events, mock generator, and assertion helpers.
type TestHarness struct {
	T          *testing.T
	Config     *config.Config
	Store      *store.Store
	EventBus   *event.Bus
	Logger     *telemetry.Logger
	Generator  *MockGenerator
	Summarizer *MockSummarizer
	Events     []event.Event // captured events
}

// NewTestHarness creates a test harness backed by a temp-dir sqlite store.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	logger := TestLogger()

	st, err := store.New(filepath.Join(t.TempDir(), "history.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	bus := event.NewBus(logger)

	h := &TestHarness{
		T:          t,
		Config:     TestConfig(),
		Store:      st,
		EventBus:   bus,
		Logger:     logger,
		Generator:  &MockGenerator{},
		Summarizer: &MockSummarizer{},
		Events:     make([]event.Event, 0),
	}

	// Capture events via a hook
	bus.Register(&eventCapture{harness: h})

	return h
}

// SetResponses queues mock generator responses.
func (h *TestHarness) SetResponses(responses ...string) {
	h.Generator.Responses = responses
}

// AssertEventEmitted checks that an event with the given type was emitted.
func (h *TestHarness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events {
		if e.Type == eventType {
			return
		}
	}
	h.T.Errorf("expected event %q to be emitted", eventType)
}

// AssertNoEvent checks that an event type was NOT emitted.
func (h *TestHarness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events {
		if e.Type == eventType {
			h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
			return
		}
	}
}

// EventCount returns the number of events with the given type.
func (h *TestHarness) EventCount(eventType event.EventType) int {
	count := 0
	for _, e := range h.Events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// eventCapture is a hook that records events synchronously.
type eventCapture struct {
	harness *TestHarness
}

func (c *eventCapture) Name() string                 { return "test-capture" }
func (c *eventCapture) Matches(event.EventType) bool { return true } // match all
func (c *eventCapture) IsBlocking() bool             { return true } // sync for tests

func (c *eventCapture) Handle(ev event.Event) error {
	c.harness.Events = append(c.harness.Events, ev)
	return nil
}
