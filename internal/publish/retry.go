package publish

import (
	"context"
	"time"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/pkg/logger"
)

const (
	// DefaultAttempts bounds publish retries
	DefaultAttempts = 3
	// DefaultBackoff is the linear backoff base: attempt N waits N*base
	DefaultBackoff = 5 * time.Second
)

// WithRetry executes a publish attempt up to `attempts` times with linear
// backoff. Any failure outcome is retried; the wrapper does not know why
// publishing failed, only whether it succeeded. Token refresh is the
// adapter's job before each attempt. On exhaustion the last failure is
// returned for the caller to persist on the post.
func WithRetry(
	ctx context.Context,
	publisher Publisher,
	post *models.Post,
	account *models.Account,
	attempts int,
	backoff time.Duration,
	log *logger.Logger,
) Result {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var last Result
	for attempt := 1; attempt <= attempts; attempt++ {
		last = publisher.Publish(ctx, post, account)
		if last.Success {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Publish succeeded after retry")
			}
			return last
		}

		log.Warn().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("message", last.Message).
			Msg("Publish attempt failed")

		if attempt == attempts {
			break
		}

		// Linear backoff: attempt * base, as an awaited delay
		select {
		case <-time.After(time.Duration(attempt) * backoff):
		case <-ctx.Done():
			last.Message = "publish cancelled: " + ctx.Err().Error()
			return last
		}
	}

	return last
}
