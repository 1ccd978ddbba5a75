package domain

import "context"

// IntentClassifier is the upstream collaborator that turns raw user text
// into a structured Query. The core never parses raw text itself; the
// classifier owns slot extraction and the confidence score.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []Message) (Query, error)
}
