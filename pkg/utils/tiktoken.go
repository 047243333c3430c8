// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates token counts for prompt and completion text.
// Provider adapters use it to fill in usage when a backend response carries
// none, so token metrics stay populated either way.
type TokenCounter struct {
	codec tokenizer.Codec
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     *TokenCounter
)

// NewTokenCounter creates a token counter. All supported model families are
// approximated with the GPT-4 encoding; the differences are small enough for
// usage estimation purposes.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		// Counter still works via the character-based fallback.
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// DefaultCounter returns a shared counter with the GPT-4 encoding.
func DefaultCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		defaultCounter = NewTokenCounter()
	})
	return defaultCounter
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountTokensSimple counts tokens with the shared default counter.
func CountTokensSimple(text string) int {
	return DefaultCounter().CountTokens(text)
}
