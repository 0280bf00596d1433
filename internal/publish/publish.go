// Package publish defines the platform adapter contract and the bounded
// retry wrapper around a Blogger publish attempt.
package publish

import (
	"context"

	"github.com/blogger-agent/internal/models"
)

// Result is the uniform publish outcome for every platform. Adapters
// never return Go errors across this boundary: fallible outcomes travel
// in the result so retry policy stays decoupled from transport error
// taxonomies.
type Result struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	PostURL string `json:"post_url,omitempty"`
	Message string `json:"message"`
}

// Publisher publishes a post to the primary destination (Blogger). A nil
// account selects the legacy single-blog connection.
type Publisher interface {
	Publish(ctx context.Context, post *models.Post, account *models.Account) Result
}

// CrossPoster mirrors an already-published post to a secondary platform
// using the credentials of a cross-post connection.
type CrossPoster interface {
	Platform() models.Platform
	Publish(ctx context.Context, post *models.Post, conn *models.Connection) Result
}

// Failure builds a failed Result with the given message
func Failure(message string) Result {
	return Result{Success: false, Message: message}
}
