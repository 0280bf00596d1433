package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

func TestMessageParamsCarryConfiguredSampling(t *testing.T) {
	c := NewClient(config.AnthropicConfig{
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   2048,
		Temperature: 0.7,
	}, ratelimit.NewDefaultLimiter(), logger.Default())

	params := c.messageParams("system prompt", "user message")

	assert.Equal(t, "claude-sonnet-4-20250514", string(params.Model))
	assert.Equal(t, int64(2048), params.MaxTokens)
	require.True(t, params.Temperature.Valid())
	assert.InDelta(t, 0.7, params.Temperature.Value, 1e-9)

	require.Len(t, params.System, 1)
	assert.Equal(t, "system prompt", params.System[0].Text)
	require.Len(t, params.Messages, 1)
}

func TestMessageParamsOmitTemperatureWhenUnset(t *testing.T) {
	c := NewClient(config.AnthropicConfig{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 1024,
	}, ratelimit.NewDefaultLimiter(), logger.Default())

	params := c.messageParams("system prompt", "user message")

	assert.False(t, params.Temperature.Valid())
}
