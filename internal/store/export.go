package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	recallErrors "github.com/recall-oss/recall/internal/errors"
	"github.com/recall-oss/recall/internal/memory"
)

// ExportDocument is the self-contained snapshot of one session used for
// backup and migration.
type ExportDocument struct {
	SessionID  string           `json:"session_id"`
	Messages   []memory.Message `json:"messages"`
	ExportedAt time.Time        `json:"exported_at"`
}

// Export produces a snapshot document for one session.
func (s *Store) Export(sessionID string) ([]byte, error) {
	msgs, err := s.Recent(sessionID, -1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, recallErrors.New(recallErrors.CodeSessionNotFound, "no messages for session "+sessionID)
	}

	doc := ExportDocument{
		SessionID:  sessionID,
		Messages:   msgs,
		ExportedAt: time.Now(),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import loads a previously exported session document. Messages keep
// their original session id unless the document's session already exists,
// in which case a fresh id is assigned to avoid interleaving histories.
func (s *Store) Import(data []byte) (string, int, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", 0, recallErrors.Wrap(recallErrors.CodeValidationFailed, "unreadable export document", err)
	}
	if doc.SessionID == "" || len(doc.Messages) == 0 {
		return "", 0, recallErrors.New(recallErrors.CodeValidationFailed, "export document has no session or messages")
	}

	sessionID := doc.SessionID
	if existing, err := s.SessionStats(sessionID); err == nil && existing.MessageCount > 0 {
		sessionID = uuid.New().String()
		s.logger.Info("session already exists, importing under new id",
			"original", doc.SessionID, "session_id", sessionID)
	}

	imported := 0
	for _, msg := range doc.Messages {
		msg.ID = 0
		msg.SessionID = sessionID
		if _, err := s.Add(msg); err != nil {
			return sessionID, imported, fmt.Errorf("import aborted at message %d: %w", imported, err)
		}
		imported++
	}
	return sessionID, imported, nil
}

// legacyRecord is one entry of the pre-indexed flat history file. The
// legacy format is an import format only, never a runtime path.
type legacyRecord struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ImportLegacy migrates a legacy flat JSON history file into the store
// under a fresh session id. Malformed entries are skipped with a warning.
func (s *Store) ImportLegacy(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read legacy history: %w", err)
	}

	var records []legacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return "", 0, recallErrors.Wrap(recallErrors.CodeValidationFailed, "unreadable legacy history", err)
	}

	sessionID := uuid.New().String()
	imported := 0
	for i, rec := range records {
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			ts = time.Now()
		}
		msg := memory.Message{
			Role:      rec.Role,
			Content:   rec.Content,
			Timestamp: ts,
			SessionID: sessionID,
		}
		if _, err := s.Add(msg); err != nil {
			if recallErrors.IsValidation(err) {
				s.logger.Warn("skipping malformed legacy record", "index", i, "error", err)
				continue
			}
			return sessionID, imported, err
		}
		imported++
	}

	s.logger.Info("legacy history migrated", "session_id", sessionID, "messages", imported, "skipped", len(records)-imported)
	return sessionID, imported, nil
}
