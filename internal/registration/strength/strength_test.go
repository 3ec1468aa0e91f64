package strength

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		password string
		expected int
	}{
		{name: "empty", password: "", expected: 0},
		{name: "short lower only", password: "abc", expected: 0},
		{name: "short digit only", password: "123", expected: 15},
		{name: "short symbol only", password: "!!", expected: 10},
		{name: "eight lower", password: "abcdefgh", expected: 25},
		{name: "eight mixed case", password: "abcdEFGH", expected: 50},
		{name: "twelve lower", password: "abcdefghijkl", expected: 50},
		{name: "twelve mixed digit", password: "abcdEFGH1234", expected: 90},
		{name: "all criteria", password: "abcdEFGH12!@", expected: 100},
		{name: "space counts as symbol", password: "ab cd", expected: 10},
		{name: "non-ascii letter counts as symbol", password: "é", expected: 10},
		{name: "upper without lower", password: "ABCDEFGH", expected: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(tt.password))
		})
	}
}

func TestScore_CountsCharactersNotBytes(t *testing.T) {
	// seven characters, fourteen bytes
	assert.Equal(t, 10, Score("ééééééé"))
	assert.Equal(t, 35, Score("éééééééé"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score    int
		expected Level
	}{
		{0, LevelNone},
		{10, LevelWeak},
		{49, LevelWeak},
		{50, LevelMedium},
		{79, LevelMedium},
		{80, LevelStrong},
		{100, LevelStrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.score), "score %d", tt.score)
	}
}

func TestIndicator(t *testing.T) {
	assert.Equal(t, Indicator{Score: 0, Level: LevelNone, Width: "0%"}, Empty())
	assert.Equal(t, Indicator{Score: 100, Level: LevelStrong, Width: "100%"}, Evaluate("abcdEFGH12!@"))
	assert.Equal(t, Indicator{Score: 25, Level: LevelWeak, Width: "25%"}, Evaluate("abcdefgh"))
}

// ===========================================================================
// Property-Based Tests (using pgregory.net/rapid)
// ===========================================================================

func TestProperty_ScoreWithinRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pw := rapid.String().Draw(rt, "password")
		score := Score(pw)
		require.GreaterOrEqual(rt, score, MinScore)
		require.LessOrEqual(rt, score, MaxScore)
	})
}

func TestProperty_ShortPlainPasswordsScoreZero(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pw := rapid.StringMatching(`[a-z]{0,7}`).Draw(rt, "lower")
		if rapid.Bool().Draw(rt, "upper") {
			pw = strings.ToUpper(pw)
		}
		require.Equal(rt, 0, Score(pw))
	})
}

func TestProperty_LongFullyMixedPasswordsScoreHundred(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		core := rapid.StringMatching(`[a-z][A-Z][0-9][!@#$%^&*]`).Draw(rt, "core")
		pad := rapid.StringMatching(`[a-zA-Z0-9!?]{8,20}`).Draw(rt, "pad")
		require.Equal(rt, 100, Score(core+pad))
	})
}

func TestProperty_AddingCriterionNeverLowersScore(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pw := rapid.String().Draw(rt, "password")
		extra := rapid.SampledFrom([]string{"a", "Z", "7", "!", "aZ", "7!"}).Draw(rt, "extra")
		require.GreaterOrEqual(rt, Score(pw+extra), Score(pw))
	})
}

func TestProperty_ScoreIsPure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pw := rapid.String().Draw(rt, "password")
		other := rapid.String().Draw(rt, "other")
		first := Score(pw)
		_ = Score(other)
		require.Equal(rt, first, Score(pw))
	})
}
