package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBudget(t *testing.T) {
	b, err := NewTextBudget()
	require.NoError(t, err)

	text := strings.Repeat("widgets are useful ", 50)
	n := b.Count(text)
	assert.Greater(t, n, 50)

	cut := b.Truncate(text, 10)
	assert.LessOrEqual(t, b.Count(cut), 10)
	assert.True(t, strings.HasPrefix(text, cut))

	assert.Equal(t, text, b.Truncate(text, 0))
	assert.Equal(t, "short", b.Truncate("short", 10))
}

func TestRuneBudget(t *testing.T) {
	var b runeBudget
	assert.Equal(t, 2, b.Count("abcdefg"))
	assert.Equal(t, "abcdefgh", b.Truncate("abcdefghijkl", 2))
	assert.Equal(t, "ünïc", b.Truncate("ünïcode", 1))
	assert.Equal(t, "abc", b.Truncate("abc", -1))
}

func TestBudgetOrDefault(t *testing.T) {
	assert.Equal(t, runeBudget{}, budgetOrDefault(runeBudget{}))
	assert.NotNil(t, budgetOrDefault(nil))
}
