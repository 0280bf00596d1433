package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdentical(t *testing.T) {
	titles := []string{
		"GPT-5 Launch Stuns Developers",
		"Apple unveils new MacBook lineup!",
		"Why the Fed's rate decision matters",
	}
	for _, title := range titles {
		assert.Equal(t, 1.0, Similarity(title, title), title)
	}
}

func TestSimilarityIgnoresCaseAndPunctuation(t *testing.T) {
	a := "OpenAI launches GPT-5 model"
	b := "openai LAUNCHES gpt-5 MODEL!!!"
	assert.Equal(t, 1.0, Similarity(a, b))
}

func TestSimilaritySameStory(t *testing.T) {
	a := "OpenAI launches GPT-5 with major reasoning upgrades"
	b := "GPT-5 launches today: OpenAI touts reasoning upgrades"
	assert.Greater(t, Similarity(a, b), 0.5)
}

func TestSimilarityDifferentStories(t *testing.T) {
	a := "OpenAI launches GPT-5 with major reasoning upgrades"
	b := "Fed cuts interest rates for first time since 2024"
	assert.Less(t, Similarity(a, b), 0.5)
}

func TestSimilarityEmptyNeverMatches(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "anything else here"))
	assert.Equal(t, 0.0, Similarity("a an it", "a an it")) // only short tokens
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestSimilarityOverlapCatchesContainedTitle(t *testing.T) {
	// Short title fully contained in a longer one: overlap ratio (0.8)
	// should dominate the diluted Jaccard score.
	short := "Bitcoin crosses 100k"
	long := "Bitcoin crosses 100k milestone as institutional buyers pile into crypto market rally"
	assert.Greater(t, Similarity(short, long), 0.5)
}

func TestTokensDropStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokens("The new AI is here and it will change everything")
	_, hasThe := tokens["the"]
	_, hasIs := tokens["is"]
	_, hasChange := tokens["change"]
	assert.False(t, hasThe)
	assert.False(t, hasIs)
	assert.True(t, hasChange)
}

func TestNormalizedTitle(t *testing.T) {
	assert.Equal(t, "openai gpt launch", NormalizedTitle("The OpenAI GPT Launch!"))
	// Duplicate tokens collapse
	assert.Equal(t, "bitcoin rally", NormalizedTitle("Bitcoin rally: bitcoin, bitcoin, BITCOIN rally"))
}

func TestIsUsed(t *testing.T) {
	used := []string{
		"OpenAI launches GPT-5 with reasoning upgrades",
		"Fed cuts interest rates again",
	}
	assert.True(t, IsUsed("GPT-5 launches with huge reasoning upgrades from OpenAI", used, 0.5))
	assert.False(t, IsUsed("SpaceX Starship completes orbital test flight", used, 0.5))
	assert.False(t, IsUsed("", used, 0.5))
}
