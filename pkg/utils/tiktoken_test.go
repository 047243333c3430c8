package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	tc := NewTokenCounter()

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("Hello, how are you today?"), 0)

	short := tc.CountTokens("hi")
	long := tc.CountTokens("this is a considerably longer sentence with many more words in it")
	assert.Greater(t, long, short)
}

func TestCountTokensFallback(t *testing.T) {
	tc := &TokenCounter{} // no codec: character-based estimate
	assert.Equal(t, 5, tc.CountTokens("12345678901234567890"))
}

func TestDefaultCounterShared(t *testing.T) {
	assert.Same(t, DefaultCounter(), DefaultCounter())
	assert.Greater(t, CountTokensSimple("token counting"), 0)
}
