package memory

import (
	"strings"
	"time"

	recallErrors "github.com/recall-oss/recall/internal/errors"
)

// Roles a message may carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SummaryPrefix marks synthetic summary records produced by rotation.
const SummaryPrefix = "[summary] "

// Message represents one turn of conversation.
type Message struct {
	ID         int64             `json:"id,omitempty"`
	Role       string            `json:"role"` // user, assistant, system
	Content    string            `json:"content"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  string            `json:"session_id,omitempty"`
	TokenCount int               `json:"token_count,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// Archived marks a verbatim fallback record in the passive tier,
	// written when summarization was unavailable.
	Archived bool `json:"archived,omitempty"`
}

// IsSummary reports whether the message is a synthetic summary record.
func (m Message) IsSummary() bool {
	return m.Role == RoleSystem && strings.HasPrefix(m.Content, SummaryPrefix)
}

// EstimatedTokens returns the message's token estimate.
// Rough estimate: 1 token ≈ 4 characters.
func (m Message) EstimatedTokens() int {
	if m.TokenCount > 0 {
		return m.TokenCount
	}
	return len(m.Content) / 4
}

// ValidRole reports whether role is one of the defined variants.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ValidateMessage checks the data-model invariants before a message
// reaches any tier or store.
func ValidateMessage(role, content string, maxContentLength int) error {
	if !ValidRole(role) {
		return recallErrors.New(recallErrors.CodeValidationFailed, "unknown role: "+role)
	}
	if strings.TrimSpace(content) == "" {
		return recallErrors.New(recallErrors.CodeValidationFailed, "message content is empty")
	}
	if maxContentLength > 0 && len(content) > maxContentLength {
		return recallErrors.New(recallErrors.CodeValidationFailed, "message content exceeds maximum length")
	}
	return nil
}

// Attachment is a named blob of file context included in a prompt.
type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
