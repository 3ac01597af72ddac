package rag

import (
	"context"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const titlePrompt = `Generate a very short title (max 6 words, no quotes, no trailing punctuation) for a conversation that starts with this question:

%QUERY%`

// maxFallbackTitleLen bounds the fallback title when no model is available.
const maxFallbackTitleLen = 60

// Titler produces conversation names from the user's first question. When no
// API key is configured the model is nil and every call falls back to a
// truncated copy of the query.
type Titler struct {
	model llms.Model
}

// NewTitler builds a Titler backed by Gemini. An empty API key disables the
// model rather than failing startup.
func NewTitler(ctx context.Context, apiKey string) *Titler {
	if apiKey == "" {
		return &Titler{}
	}

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel("gemini-2.5-flash"),
	)
	if err != nil {
		log.Printf("WARN: [Titler] Failed to initialize Gemini client, falling back to truncated titles: %v", err)
		return &Titler{}
	}
	return &Titler{model: model}
}

// ConversationName returns a short display name for a conversation opened with
// the given query. It never returns an error: any model failure degrades to
// the truncated query.
func (t *Titler) ConversationName(ctx context.Context, query string) string {
	if t.model != nil {
		prompt := strings.ReplaceAll(titlePrompt, "%QUERY%", query)
		title, err := llms.GenerateFromSinglePrompt(ctx, t.model, prompt,
			llms.WithTemperature(0.4),
			llms.WithMaxTokens(32),
		)
		if err == nil {
			title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
			if title != "" {
				return title
			}
		} else {
			log.Printf("WARN: [Titler] Title generation failed, using truncated query: %v", err)
		}
	}

	return truncateTitle(query, maxFallbackTitleLen)
}

// truncateTitle trims the query to at most max runes, with no ellipsis.
// Truncation is rune-based so multi-byte text is never split mid-character.
func truncateTitle(query string, max int) string {
	runes := []rune(query)
	if len(runes) <= max {
		return query
	}
	return string(runes[:max])
}
