package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	recallErrors "github.com/recall-oss/recall/internal/errors"
	"github.com/recall-oss/recall/internal/memory"
	"github.com/recall-oss/recall/internal/telemetry"
)

// maxWriteRetries bounds the busy-retry budget before a write is surfaced
// as STORE_WRITE.
const maxWriteRetries = 3

// retryBackoff is the pause between busy retries.
const retryBackoff = 50 * time.Millisecond

// Store is the durable, queryable log of all messages across all
// sessions. One writer, many readers; writers serialize through the
// single *sql.DB connection and every multi-statement operation runs in
// one transaction.
type Store struct {
	db      *sql.DB
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// SessionSummary aggregates one session's durable record.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
	FirstMessage time.Time `json:"first_message"`
	LastMessage  time.Time `json:"last_message"`
}

// SessionInfo describes one known session.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	Workspace    string    `json:"workspace,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	MessageCount int       `json:"message_count"`
}

// New opens (or creates) the message database at path.
func New(path string, logger *telemetry.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message database: %w", err)
	}

	if logger == nil {
		logger = telemetry.NewLogger(false)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate message database: %w", err)
	}

	return s, nil
}

// SetMetrics attaches a metrics collector.
func (s *Store) SetMetrics(metrics *telemetry.Metrics) {
	s.metrics = metrics
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		token_count INTEGER DEFAULT 0,
		metadata TEXT,
		archived INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_role ON messages(role);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		workspace TEXT,
		created_at DATETIME NOT NULL,
		last_active DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add inserts one message and maintains the session row in the same
// transaction. Returns the assigned identity or STORE_WRITE once the
// retry budget is exhausted.
func (s *Store) Add(msg memory.Message) (int64, error) {
	if err := memory.ValidateMessage(msg.Role, msg.Content, 0); err != nil {
		return 0, err
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var metadataJSON *string
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return 0, recallErrors.Wrap(recallErrors.CodeStoreWrite, "marshal metadata", err)
		}
		str := string(data)
		metadataJSON = &str
	}

	var id int64
	err := s.withWriteRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.Exec(`
			INSERT INTO messages (session_id, role, content, timestamp, token_count, metadata, archived)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.SessionID, msg.Role, msg.Content, ts, msg.TokenCount, metadataJSON, msg.Archived)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO sessions (session_id, workspace, created_at, last_active)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET last_active = excluded.last_active
		`, msg.SessionID, msg.Metadata["workspace"], ts, ts)
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		id, _ = res.LastInsertId()
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncStoreWriteFailures()
		}
		return 0, recallErrors.Wrap(recallErrors.CodeStoreWrite, "failed to insert message", err).
			WithSuggestion("Check that no other process holds the history database open")
	}

	if s.metrics != nil {
		s.metrics.IncStoreWrites()
	}
	return id, nil
}

// Persist implements memory.Persister for rotation write-through.
func (s *Store) Persist(msg memory.Message) error {
	_, err := s.Add(msg)
	return err
}

// withWriteRetry runs fn, retrying on transient lock contention up to
// the retry budget.
func (s *Store) withWriteRetry(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxWriteRetries; attempt++ {
		if attempt > 0 {
			if s.metrics != nil {
				s.metrics.IncStoreWriteRetries()
			}
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("retry budget (%d) exhausted: %w", maxWriteRetries, lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// Recent returns the most recent limit messages for a session in
// chronological order, using the timestamp index.
func (s *Store) Recent(sessionID string, limit int) ([]memory.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, timestamp, token_count, metadata, archived
		FROM messages
		WHERE session_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, recallErrors.Wrap(recallErrors.CodeStoreRead, "failed to query recent messages", err)
	}
	defer rows.Close()

	msgs := s.scanMessages(rows)

	// Reverse so oldest is first (we queried DESC for LIMIT).
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, rows.Err()
}

// Search returns messages whose content contains the query text,
// ordered by recency. A correctness baseline, not a ranking engine.
func (s *Store) Search(queryText string, limit int) ([]memory.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, timestamp, token_count, metadata, archived
		FROM messages
		WHERE content LIKE ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, "%"+queryText+"%", limit)
	if err != nil {
		return nil, recallErrors.Wrap(recallErrors.CodeStoreRead, "failed to search messages", err)
	}
	defer rows.Close()

	return s.scanMessages(rows), rows.Err()
}

// scanMessages reads rows defensively: a malformed row is skipped with a
// logged warning rather than aborting the whole query.
func (s *Store) scanMessages(rows *sql.Rows) []memory.Message {
	var msgs []memory.Message
	for rows.Next() {
		var m memory.Message
		var metadataJSON sql.NullString
		var tokenCount sql.NullInt64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp, &tokenCount, &metadataJSON, &m.Archived); err != nil {
			s.logger.Warn("skipping corrupt message row", "error", err)
			if s.metrics != nil {
				s.metrics.IncCorruptRowsSkipped()
			}
			continue
		}
		if !memory.ValidRole(m.Role) || m.Content == "" {
			s.logger.Warn("skipping malformed message row", "id", m.ID, "role", m.Role)
			if s.metrics != nil {
				s.metrics.IncCorruptRowsSkipped()
			}
			continue
		}
		m.TokenCount = int(tokenCount.Int64)
		if metadataJSON.Valid && metadataJSON.String != "" {
			var metadata map[string]string
			if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err == nil {
				m.Metadata = metadata
			} else {
				s.logger.Warn("skipping unreadable metadata", "id", m.ID, "error", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// SessionStats computes one session's aggregate via the session index.
func (s *Store) SessionStats(sessionID string) (*SessionSummary, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(token_count), 0), MIN(timestamp), MAX(timestamp)
		FROM messages
		WHERE session_id = ?
	`, sessionID)

	summary := &SessionSummary{SessionID: sessionID}
	var first, last sql.NullTime
	if err := row.Scan(&summary.MessageCount, &summary.TotalTokens, &first, &last); err != nil {
		return nil, recallErrors.Wrap(recallErrors.CodeStoreRead, "failed to aggregate session", err)
	}
	if summary.MessageCount == 0 {
		return nil, recallErrors.New(recallErrors.CodeSessionNotFound, "no messages for session "+sessionID).
			WithSuggestion("run 'recall sessions list' to see known sessions")
	}
	summary.FirstMessage = first.Time
	summary.LastMessage = last.Time
	return summary, nil
}

// Sessions lists all known sessions, most recently active first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, COALESCE(s.workspace, ''), s.created_at, s.last_active, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.last_active DESC
	`)
	if err != nil {
		return nil, recallErrors.Wrap(recallErrors.CodeStoreRead, "failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.Workspace, &info.CreatedAt, &info.LastActive, &info.MessageCount); err != nil {
			s.logger.Warn("skipping corrupt session row", "error", err)
			continue
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// Delete removes all messages for a session. Irreversible.
func (s *Store) Delete(sessionID string) error {
	err := s.withWriteRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return recallErrors.Wrap(recallErrors.CodeStoreWrite, "failed to delete session", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
