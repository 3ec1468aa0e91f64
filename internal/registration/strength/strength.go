// Package strength scores password quality on a 0-100 scale.
//
// The score is additive and depends on nothing but the password string:
//
//	+25  length >= 8
//	+25  length >= 12
//	+25  contains both an ASCII lower-case and upper-case letter
//	+15  contains an ASCII digit
//	+10  contains a character that is neither ASCII letter nor digit
package strength

import (
	"fmt"
	"unicode/utf8"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Level is the display class of a score.
type Level string

const (
	LevelNone   Level = "none"
	LevelWeak   Level = "weak"
	LevelMedium Level = "medium"
	LevelStrong Level = "strong"
)

// Score rates password. Total and deterministic.
func Score(password string) int {
	score := 0
	length := utf8.RuneCountInString(password)
	if length >= 8 {
		score += 25
	}
	if length >= 12 {
		score += 25
	}

	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	if lower && upper {
		score += 25
	}
	if digit {
		score += 15
	}
	if other {
		score += 10
	}
	return score
}

// Classify maps a score to its display level.
func Classify(score int) Level {
	switch {
	case score >= 80:
		return LevelStrong
	case score >= 50:
		return LevelMedium
	case score > 0:
		return LevelWeak
	default:
		return LevelNone
	}
}

// Indicator is what the strength bar renders.
type Indicator struct {
	Score int    `json:"score"`
	Level Level  `json:"level"`
	Width string `json:"width"`
}

// Evaluate scores password and builds its indicator.
func Evaluate(password string) Indicator {
	return IndicatorFor(Score(password))
}

// IndicatorFor builds the indicator for an existing score.
func IndicatorFor(score int) Indicator {
	level := Classify(score)
	if level == LevelNone {
		return Indicator{Score: score, Level: level, Width: "0%"}
	}
	return Indicator{Score: score, Level: level, Width: fmt.Sprintf("%d%%", score)}
}

// Empty is the cleared indicator.
func Empty() Indicator {
	return IndicatorFor(0)
}
