package domain

import "context"

// PendingPrompt identifies the question blocking a session, if any. At most
// one prompt is pending at a time; a second simultaneous prompt is a
// transition-table bug and is treated as fatal by the orchestrator.
type PendingPrompt string

const (
	PromptNone           PendingPrompt = ""
	PromptGender         PendingPrompt = "gender_prompt"
	PromptClarification  PendingPrompt = "clarification"
	PromptDisambiguation PendingPrompt = "disambiguation"
)

// HistoryLimit bounds the rolling conversation window kept per session
// (10 entries, i.e. 5 exchanges).
const HistoryLimit = 10

// Message is one conversation history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile holds resolved user attributes for a thread.
type Profile struct {
	Name   string `json:"name,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// PromptOption is one selectable answer to a clarification or
// disambiguation prompt.
type PromptOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Outfit is a named grouping of 2-4 candidate identifiers, produced only for
// broad-intent turns and recomputed every turn.
type Outfit struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProductIDs  []string `json:"product_ids"`
}

// Session is the per-thread conversation state. It is created on the first
// message for a thread and mutated in place by exactly one orchestrator
// instance per turn. Lifecycle (deletion, TTL) is owned by the store.
type Session struct {
	ThreadID    string    `json:"thread_id"`
	LastMessage string    `json:"last_message"`
	History     []Message `json:"history"`
	Profile     Profile   `json:"profile"`

	Pending        PendingPrompt  `json:"pending_prompt,omitempty"`
	PromptQuestion string         `json:"prompt_question,omitempty"`
	PromptOptions  []PromptOption `json:"prompt_options,omitempty"`
	PromptSource   string         `json:"prompt_source,omitempty"`

	// Outputs of the most recent pipeline run.
	LastTraceID  string      `json:"last_trace_id,omitempty"`
	LastProducts []Candidate `json:"last_products,omitempty"`
	LastOutfits  []Outfit    `json:"last_outfits,omitempty"`
}

// NewSession creates the initial state for a thread.
func NewSession(threadID string) *Session {
	return &Session{ThreadID: threadID}
}

// AppendHistory records a message and trims the window to HistoryLimit.
func (s *Session) AppendHistory(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
	if len(s.History) > HistoryLimit {
		s.History = s.History[len(s.History)-HistoryLimit:]
	}
}

// SetPrompt marks a pending prompt. Returns false when a different prompt is
// already pending, which callers must treat as an invariant violation.
func (s *Session) SetPrompt(p PendingPrompt, question string, options []PromptOption, source string) bool {
	if s.Pending != PromptNone && s.Pending != p {
		return false
	}
	s.Pending = p
	s.PromptQuestion = question
	s.PromptOptions = options
	s.PromptSource = source
	return true
}

// ClearPrompt resolves the pending prompt.
func (s *Session) ClearPrompt() {
	s.Pending = PromptNone
	s.PromptQuestion = ""
	s.PromptOptions = nil
	s.PromptSource = ""
}

// SessionRepository persists one record per thread, serializable to a flat
// document. Get returns a fresh session when the thread is unknown.
type SessionRepository interface {
	Get(ctx context.Context, threadID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}
