package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageMatcher(t *testing.T) {
	m := NewLanguageMatcher([]string{"spa", "not a language!"})
	assert.True(t, m.Enabled())

	assert.True(t, m.MatchTag("spa"))
	assert.True(t, m.MatchTag("es"))
	assert.True(t, m.MatchTag("es-MX"))
	assert.False(t, m.MatchTag("eng"))
	assert.False(t, m.MatchTag(""))
	assert.False(t, m.MatchTag("und"))

	assert.True(t, m.MatchTitle("Spanish (Latin America)"))
	assert.True(t, m.MatchTitle("ESPAÑOL 5.1"))
	assert.True(t, m.MatchTitle("AC3 spa"))
	assert.False(t, m.MatchTitle("Commentary"))
	assert.False(t, m.MatchTitle("Chinese spatial audio"))
}

func TestLanguageMatcher_Empty(t *testing.T) {
	m := NewLanguageMatcher(nil)
	assert.False(t, m.Enabled())
	assert.False(t, m.Match("eng", "English"))
}
