package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/recall-oss/recall/internal/cache"
	"github.com/recall-oss/recall/internal/config"
	recallErrors "github.com/recall-oss/recall/internal/errors"
	"github.com/recall-oss/recall/internal/event"
	"github.com/recall-oss/recall/internal/memory"
	"github.com/recall-oss/recall/internal/provider"
	"github.com/recall-oss/recall/internal/store"
	"github.com/recall-oss/recall/internal/telemetry"
)

// Turn is the result of processing one user input.
type Turn struct {
	SessionID string        `json:"session_id"`
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Cached    bool          `json:"cached"`
	Degraded  bool          `json:"degraded"` // output produced but not durably persisted
	Duration  time.Duration `json:"duration"`
}

// Deps carries the collaborators a worker needs. Store, Cache, Bus and
// Metrics are optional; a nil Cache disables caching, a nil Store disables
// persistence.
type Deps struct {
	Config     *config.Config
	Generator  provider.Generator
	Summarizer memory.Summarizer
	Store      *store.Store
	Cache      *cache.Cache
	Bus        *event.Bus
	Logger     *telemetry.Logger
	Metrics    *telemetry.Metrics
}

// Worker processes turns for a single session. It owns the session's
// rotation memory; the store and cache are shared across workers. Process
// calls for the same worker are serialized.
type Worker struct {
	mu      sync.Mutex
	id      string
	cfg     *config.Config
	system  string
	mem     *memory.Manager
	gen     provider.Generator
	store   *store.Store
	cache   *cache.Cache
	bus     *event.Bus
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// NewWorker creates a worker for the given session id.
func NewWorker(sessionID string, deps Deps) (*Worker, error) {
	if sessionID == "" {
		return nil, recallErrors.New(recallErrors.CodeValidationFailed, "session id is required")
	}
	if deps.Config == nil {
		return nil, recallErrors.New(recallErrors.CodeConfigInvalid, "config is required")
	}
	if deps.Generator == nil {
		return nil, recallErrors.New(recallErrors.CodeConfigInvalid, "generator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	mem := memory.NewManager(sessionID, memory.Config{
		MaxActiveMessages: deps.Config.Memory.MaxActiveMessages,
		RotationBatchSize: deps.Config.Memory.RotationBatchSize,
		MaxContentLength:  deps.Config.Memory.MaxContentLength,
	}, deps.Summarizer, logger)

	if deps.Store != nil {
		mem.SetPersister(deps.Store)
	}
	if deps.Metrics != nil {
		mem.SetMetrics(deps.Metrics)
	}

	return &Worker{
		id:      sessionID,
		cfg:     deps.Config,
		mem:     mem,
		gen:     deps.Generator,
		store:   deps.Store,
		cache:   deps.Cache,
		bus:     deps.Bus,
		logger:  logger.WithFields(map[string]interface{}{"session": sessionID}),
		metrics: deps.Metrics,
	}, nil
}

// ID returns the worker's session id.
func (w *Worker) ID() string { return w.id }

// Memory exposes the session's rotation memory.
func (w *Worker) Memory() *memory.Manager { return w.mem }

// SetSystemPrompt sets the instruction text placed first in every prompt.
func (w *Worker) SetSystemPrompt(system string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.system = system
}

// Process runs one turn: cache lookup, generation, memory append,
// persistence and cache fill. A store failure degrades the turn instead of
// failing it; validation and generation failures fail it.
func (w *Worker) Process(ctx context.Context, input string, attachments []memory.Attachment) (*Turn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()

	if err := memory.ValidateMessage(memory.RoleUser, input, w.cfg.Memory.MaxContentLength); err != nil {
		return nil, err
	}

	w.bus.Emit(event.NewEvent(event.TurnStarted, w.id, nil))

	contexts := contextStrings(attachments)

	if w.cache != nil {
		if output, ok := w.cache.Get(input, contexts, w.gen.Name()); ok {
			w.bus.Emit(event.NewEvent(event.CacheHit, w.id, nil))
			w.logger.Debug("Cache hit", "input_len", len(input))
			return w.finishTurn(ctx, input, output, true, start)
		}
	}

	prompt := w.buildPrompt(input, attachments)

	genStart := time.Now()
	output, err := w.gen.Generate(ctx, prompt, attachments)
	if w.metrics != nil {
		w.metrics.RecordGenerateDuration(time.Since(genStart))
	}
	if err != nil {
		w.bus.Emit(event.NewEvent(event.TurnFailed, w.id, map[string]interface{}{"error": err.Error()}))
		return nil, recallErrors.Wrap(recallErrors.CodeGenerationFailed, "generation failed", err)
	}

	turn, err := w.finishTurn(ctx, input, output, false, start)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		w.cache.Put(input, contexts, output, w.gen.Name())
	}
	return turn, nil
}

// finishTurn records the exchange in rotation memory (and, via write-through,
// the store) and emits completion events.
func (w *Worker) finishTurn(ctx context.Context, input, output string, cached bool, start time.Time) (*Turn, error) {
	before := w.mem.Stats()

	degraded := false
	if _, err := w.mem.Append(ctx, memory.RoleUser, input); err != nil {
		if !recallErrors.IsStoreWrite(err) {
			return nil, err
		}
		degraded = true
	}
	if _, err := w.mem.Append(ctx, memory.RoleAssistant, output); err != nil {
		if !recallErrors.IsStoreWrite(err) {
			return nil, err
		}
		degraded = true
	}

	after := w.mem.Stats()
	if after.PassiveSummaries > before.PassiveSummaries {
		w.bus.Emit(event.NewEvent(event.RotationCompacted, w.id, map[string]interface{}{
			"summaries": after.PassiveSummaries,
		}))
	}
	if after.ArchivedVerbatim > before.ArchivedVerbatim {
		w.bus.Emit(event.NewEvent(event.RotationFallback, w.id, map[string]interface{}{
			"archived": after.ArchivedVerbatim - before.ArchivedVerbatim,
		}))
	}

	if degraded {
		w.logger.Warn("Turn completed without durable persistence")
		w.bus.Emit(event.NewEvent(event.StoreDegraded, w.id, nil))
	}

	if w.metrics != nil {
		w.metrics.IncTurnsProcessed()
	}
	w.bus.Emit(event.NewEvent(event.TurnCompleted, w.id, map[string]interface{}{
		"cached":   cached,
		"degraded": degraded,
	}))

	return &Turn{
		SessionID: w.id,
		Input:     input,
		Output:    output,
		Cached:    cached,
		Degraded:  degraded,
		Duration:  time.Since(start),
	}, nil
}

// buildPrompt assembles system text, attachments, budgeted history, and the
// pending user input.
func (w *Worker) buildPrompt(input string, attachments []memory.Attachment) string {
	var b strings.Builder
	b.WriteString(w.mem.BuildPrompt(w.system, attachments, w.cfg.Memory.ContextBudgetChars))
	b.WriteString(memory.RoleUser)
	b.WriteString(": ")
	b.WriteString(input)
	b.WriteString("\n")
	return b.String()
}

// Undo removes the most recent turn (assistant reply and user input) from
// rotation memory. The durable log is unaffected.
func (w *Worker) Undo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.mem.PopLast(); !ok {
		return false
	}
	w.mem.PopLast()
	return true
}

// Clear resets the session's rotation memory and announces it.
func (w *Worker) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mem.Clear()
	w.bus.Emit(event.NewEvent(event.SessionCleared, w.id, nil))
}

func contextStrings(attachments []memory.Attachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]string, len(attachments))
	for i, a := range attachments {
		out[i] = a.Name + "\n" + a.Content
	}
	return out
}
