package similarity

import (
	"math"
	"testing"
)

func TestScoreIdentity(t *testing.T) {
	for _, s := range []string{"", "alt", "alanine_transaminase", "гемоглобин"} {
		if got := Score(s, s); got != 1 {
			t.Errorf("Score(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alt", "alanine transaminase"},
		{"chem_glucose", "glucose"},
		{"hemoglobin", "gemoglobin"},
		{"", "abc"},
	}
	for _, p := range pairs {
		ab, ba := Score(p[0], p[1]), Score(p[1], p[0])
		if math.Abs(ab-ba) > 1e-12 {
			t.Errorf("Score(%q,%q)=%v but Score(%q,%q)=%v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "z"}, {"short", "a much much longer string"}, {"", ""}, {"x", ""},
	}
	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Score(%q,%q) = %v out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestPartialRatioSubstring(t *testing.T) {
	// Exact substring containment scores 1 on the partial measure.
	if got := PartialRatio("glucose", "chem glucose fasting"); got != 1 {
		t.Errorf("PartialRatio = %v, want 1", got)
	}
	if got := Score("glucose", "chem glucose fasting"); got != 1 {
		t.Errorf("Score = %v, want 1 via partial measure", got)
	}
}

func TestTokenSortRatioReordered(t *testing.T) {
	if got := TokenSortRatio("transaminase alanine", "alanine transaminase"); got != 1 {
		t.Errorf("TokenSortRatio = %v, want 1", got)
	}
	// Underscores count as token separators too.
	if got := TokenSortRatio("alanine_transaminase", "transaminase alanine"); got != 1 {
		t.Errorf("TokenSortRatio with underscores = %v, want 1", got)
	}
}

func TestRatioDisjoint(t *testing.T) {
	if got := Ratio("abc", "xyz"); got != 0 {
		t.Errorf("Ratio(abc, xyz) = %v, want 0", got)
	}
}
