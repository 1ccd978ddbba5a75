package usecase

import (
	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/usecase/pipeline"
)

// TurnKind labels what a completed turn produced. The narration layer owned
// by the caller turns these structured results into prose.
type TurnKind string

const (
	TurnGreeting       TurnKind = "greeting"
	TurnNudge          TurnKind = "nudge"
	TurnPrompt         TurnKind = "prompt"
	TurnBlocked        TurnKind = "blocked"
	TurnOutOfScope     TurnKind = "out_of_scope"
	TurnAcknowledgment TurnKind = "acknowledgment"
	TurnProfileSaved   TurnKind = "profile_saved"
	TurnCapabilities   TurnKind = "capabilities"
	TurnTrends         TurnKind = "trends"
	TurnNeedsDetail    TurnKind = "needs_more_detail"
	TurnProducts       TurnKind = "products"
	TurnOutfits        TurnKind = "outfits"
)

// PromptPayload is the question a turn is blocked on.
type PromptPayload struct {
	Kind     domain.PendingPrompt  `json:"kind"`
	Question string                `json:"question"`
	Options  []domain.PromptOption `json:"options,omitempty"`
}

// TurnDebug carries per-turn pipeline observability for broad and specific
// runs.
type TurnDebug struct {
	SubQueries   []string                  `json:"sub_queries,omitempty"`
	Retrievals   []pipeline.RetrievalTrace `json:"retrievals,omitempty"`
	CatalogCount int                       `json:"catalog_count"`
	WebCount     int                       `json:"web_count"`
	ValidCount   int                       `json:"valid_count"`
	WebFallback  bool                      `json:"web_fallback"`
}

// TurnResult is the structured output of one orchestrator turn.
type TurnResult struct {
	ThreadID string   `json:"thread_id"`
	TraceID  string   `json:"trace_id"`
	Kind     TurnKind `json:"kind"`

	Prompt        *PromptPayload        `json:"prompt,omitempty"`
	Products      []domain.Candidate    `json:"products,omitempty"`
	Outfits       []domain.Outfit       `json:"outfits,omitempty"`
	Weather       *domain.WeatherReport `json:"weather,omitempty"`
	DressingRules []string              `json:"dressing_rules,omitempty"`
	Trends        string                `json:"trends,omitempty"`
	Profile       *domain.Profile       `json:"profile,omitempty"`

	Debug *TurnDebug `json:"debug,omitempty"`
}
