// Package pipeline orchestrates one research-to-crosspost publishing run.
package pipeline

import (
	"context"
	"errors"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/research"
)

// Configuration errors abort a run before any side effect. They are
// logged and surfaced as a skip, never retried automatically.
var (
	ErrAccountNotFound     = errors.New("account referenced by schedule does not exist")
	ErrAccountNotConnected = errors.New("account is not connected")
	ErrNicheMissing        = errors.New("no niche configured for this run")
	ErrRunInProgress       = errors.New("a run for this account is already in progress")
)

// Stage names a pipeline step for logging and run results
type Stage string

const (
	StageResolveAccount  Stage = "resolve_account"
	StageResearchTopic   Stage = "research_topic"
	StageGenerateContent Stage = "generate_content"
	StageGenerateImage   Stage = "generate_image"
	StageSaveDraft       Stage = "save_draft"
	StagePublish         Stage = "publish"
	StageCrossPost       Stage = "cross_post"
	StageDone            Stage = "done"
)

// ResearchProvider selects and locks one trending topic for a niche.
// The accountID travels with the request so the topic lock can attribute
// contention to the right account.
type ResearchProvider interface {
	Research(ctx context.Context, nicheID string, accountID uint) (*research.Result, error)
}

// ContentGenerator writes a complete article for a topic
type ContentGenerator interface {
	GenerateArticle(ctx context.Context, req ai.GenerateRequest) (*ai.GeneratedContent, error)
}

// ImageGenerator produces a hosted image URL for a prompt
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers best-effort operator notifications
type Notifier interface {
	Notify(ctx context.Context, message string)
}
