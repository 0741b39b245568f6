package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/recall-oss/recall/internal/telemetry"
)

// SummaryResult is the explicit outcome of a summarization call.
// OK=false with a nil error means the collaborator produced nothing usable.
type SummaryResult struct {
	Text string
	OK   bool
}

// Summarizer compacts a batch of messages into one summary.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message) (SummaryResult, error)
}

// Persister receives every appended message for durable write-through.
// Implementations must not mutate the message.
type Persister interface {
	Persist(msg Message) error
}

// Config bounds a rotation memory instance.
type Config struct {
	MaxActiveMessages int
	RotationBatchSize int
	MaxContentLength  int
}

// Manager maintains the active and passive tiers for one live session.
// A Manager is owned by a single session worker; concurrent Append calls
// on the same session must be serialized by the caller, but the internal
// mutex keeps readers (Context, Stats) safe from any goroutine.
type Manager struct {
	mu         sync.RWMutex
	cfg        Config
	sessionID  string
	active     []Message
	passive    []Message
	summarizer Summarizer
	persist    Persister
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
}

// NewManager creates a rotation memory for one session.
func NewManager(sessionID string, cfg Config, summarizer Summarizer, logger *telemetry.Logger) *Manager {
	if cfg.MaxActiveMessages == 0 {
		cfg.MaxActiveMessages = 10
	}
	if cfg.RotationBatchSize == 0 {
		cfg.RotationBatchSize = 5
	}
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	return &Manager{
		cfg:        cfg,
		sessionID:  sessionID,
		active:     make([]Message, 0, cfg.MaxActiveMessages+1),
		passive:    make([]Message, 0),
		summarizer: summarizer,
		logger:     logger,
	}
}

// SetPersister attaches a durable write-through target.
func (m *Manager) SetPersister(p Persister) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = p
}

// SetMetrics attaches a metrics collector.
func (m *Manager) SetMetrics(metrics *telemetry.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// SessionID returns the owning session's identifier.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Append validates and appends one turn to the active tier, rotating the
// oldest batch into the passive tier when the bound is exceeded. The
// returned message carries the assigned timestamp. A persistence failure
// is returned to the caller but leaves the in-memory tiers valid.
func (m *Manager) Append(ctx context.Context, role, content string) (Message, error) {
	if err := ValidateMessage(role, content, m.cfg.MaxContentLength); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{
		Role:       role,
		Content:    content,
		Timestamp:  time.Now(),
		SessionID:  m.sessionID,
		TokenCount: len(content) / 4,
	}
	m.active = append(m.active, msg)

	var persistErr error
	if m.persist != nil {
		persistErr = m.persist.Persist(msg)
	}

	if len(m.active) > m.cfg.MaxActiveMessages {
		m.rotateLocked(ctx)
	}

	return msg, persistErr
}

// rotateLocked moves the oldest batch from active to passive. Removal from
// active happens only after the passive append, so a cancellation at any
// point leaves a consistent view. Caller must hold m.mu.
func (m *Manager) rotateLocked(ctx context.Context) {
	batchSize := m.cfg.RotationBatchSize
	if batchSize > len(m.active) {
		batchSize = len(m.active)
	}
	batch := make([]Message, batchSize)
	copy(batch, m.active[:batchSize])

	if m.metrics != nil {
		m.metrics.IncRotations()
	}

	summary, ok := m.summarizeBatch(ctx, batch)
	if ok {
		m.passive = append(m.passive, summary)
	} else {
		// Verbatim fallback: no message may vanish even when the
		// summarizer is unavailable.
		for _, msg := range batch {
			msg.Archived = true
			m.passive = append(m.passive, msg)
		}
		if m.metrics != nil {
			m.metrics.IncRotationFallbacks()
		}
	}

	m.active = m.active[batchSize:]
}

// summarizeBatch attempts the compaction path. Any failure, timeout or
// empty result reports ok=false and the caller takes the fallback path.
func (m *Manager) summarizeBatch(ctx context.Context, batch []Message) (Message, bool) {
	if m.summarizer == nil {
		return Message{}, false
	}

	start := time.Now()
	result, err := m.summarizer.Summarize(ctx, batch)
	if m.metrics != nil {
		m.metrics.RecordSummarizeDuration(time.Since(start))
	}
	if err != nil {
		m.logger.Warn("summarization unavailable, archiving batch verbatim",
			"session_id", m.sessionID, "batch_size", len(batch), "error", err)
		if m.metrics != nil && ctx.Err() != nil {
			m.metrics.IncSummarizerTimeouts()
		}
		return Message{}, false
	}
	if !result.OK || result.Text == "" {
		m.logger.Warn("summarizer produced no result, archiving batch verbatim",
			"session_id", m.sessionID, "batch_size", len(batch))
		return Message{}, false
	}

	return Message{
		Role:      RoleSystem,
		Content:   SummaryPrefix + result.Text,
		Timestamp: time.Now(),
		SessionID: m.sessionID,
		Metadata:  map[string]string{"source_count": strconv.Itoa(len(batch))},
	}, true
}

// Context returns passive + active in chronological order.
func (m *Manager) Context() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Message, 0, len(m.passive)+len(m.active))
	result = append(result, m.passive...)
	result = append(result, m.active...)
	return result
}

// Active returns a copy of the active tier.
func (m *Manager) Active() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Message, len(m.active))
	copy(result, m.active)
	return result
}

// Passive returns a copy of the passive tier.
func (m *Manager) Passive() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Message, len(m.passive))
	copy(result, m.passive)
	return result
}

// PopLast removes and returns the most recent active message, used by the
// undo path. Only the in-memory tier is touched; the durable record keeps
// the original.
func (m *Manager) PopLast() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.active) == 0 {
		return Message{}, false
	}
	last := m.active[len(m.active)-1]
	m.active = m.active[:len(m.active)-1]
	return last, true
}

// Clear empties both tiers.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = m.active[:0]
	m.passive = m.passive[:0]
}

// Stats describes the current tier occupancy.
type Stats struct {
	ActiveMessages   int `json:"active_messages"`
	PassiveEntries   int `json:"passive_entries"`
	PassiveSummaries int `json:"passive_summaries"`
	ArchivedVerbatim int `json:"archived_verbatim"`
	EstimatedTokens  int `json:"estimated_tokens"`
}

// Stats returns tier occupancy counts and the token estimate.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		ActiveMessages: len(m.active),
		PassiveEntries: len(m.passive),
	}
	for _, msg := range m.passive {
		if msg.Archived {
			s.ArchivedVerbatim++
		} else if msg.IsSummary() {
			s.PassiveSummaries++
		}
		s.EstimatedTokens += msg.EstimatedTokens()
	}
	for _, msg := range m.active {
		s.EstimatedTokens += msg.EstimatedTokens()
	}
	return s
}
