package services

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

type tokenBudget struct {
	codec tokenizer.Codec
}

// NewTextBudget counts tokens with the cl100k_base encoding shared by the
// chat and embedding models.
func NewTextBudget() (TextBudget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &tokenBudget{codec: codec}, nil
}

func (b *tokenBudget) Count(text string) int {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return approxTokens(text)
	}
	return len(ids)
}

// Truncate cuts text to at most maxTokens tokens. A non-positive budget
// disables truncation.
func (b *tokenBudget) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		log.Warn().Err(err).Msg("[Truncate] Tokenizer failed, truncating by characters")
		return truncateRunes(text, maxTokens*4)
	}
	if len(ids) <= maxTokens {
		return text
	}
	out, err := b.codec.Decode(ids[:maxTokens])
	if err != nil {
		return truncateRunes(text, maxTokens*4)
	}
	return out
}

// runeBudget is used when no tokenizer is available. It assumes four
// characters per token.
type runeBudget struct{}

func (runeBudget) Count(text string) int { return approxTokens(text) }

func (runeBudget) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	return truncateRunes(text, maxTokens*4)
}

func approxTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// budgetOrDefault never returns nil.
func budgetOrDefault(b TextBudget) TextBudget {
	if b != nil {
		return b
	}
	if tb, err := NewTextBudget(); err == nil {
		return tb
	}
	return runeBudget{}
}
