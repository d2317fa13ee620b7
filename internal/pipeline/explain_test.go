package pipeline

import (
	"strings"
	"testing"
)

func TestFilterTerms(t *testing.T) {
	lyrics := "Walking in the rain with you, my heart is burning bright tonight"

	t.Run("Keeps Literal Quotes", func(t *testing.T) {
		got := filterTerms([]string{"rain", "burning bright"}, lyrics)
		if len(got) != 2 || got[0] != "rain" || got[1] != "burning bright" {
			t.Errorf("expected both terms kept, got %v", got)
		}
	})

	t.Run("Case Insensitive Match Keeps Model Casing", func(t *testing.T) {
		got := filterTerms([]string{"Burning Bright"}, lyrics)
		if len(got) != 1 || got[0] != "Burning Bright" {
			t.Errorf("expected model casing preserved, got %v", got)
		}
	})

	t.Run("Drops Terms Not In Lyrics", func(t *testing.T) {
		if got := filterTerms([]string{"sunshine", "dancing"}, lyrics); len(got) != 0 {
			t.Errorf("expected nothing kept, got %v", got)
		}
	})

	t.Run("Drops Meta Commentary", func(t *testing.T) {
		terms := []string{
			"the rain refers to sadness",
			"imagery such as burning",
		}
		if got := filterTerms(terms, lyrics); len(got) != 0 {
			t.Errorf("expected commentary dropped, got %v", got)
		}
	})

	t.Run("Drops Overlong Terms", func(t *testing.T) {
		long := strings.Repeat("rain ", 11) + "rain"
		if got := filterTerms([]string{long}, strings.Repeat("rain ", 20)); len(got) != 0 {
			t.Errorf("expected overlong term dropped, got %v", got)
		}
	})

	t.Run("Drops Empty And Whitespace", func(t *testing.T) {
		if got := filterTerms([]string{"", "   "}, lyrics); len(got) != 0 {
			t.Errorf("expected blanks dropped, got %v", got)
		}
	})

	t.Run("Trims Before Matching", func(t *testing.T) {
		got := filterTerms([]string{"  rain  "}, lyrics)
		if len(got) != 1 || got[0] != "rain" {
			t.Errorf("expected trimmed term kept, got %v", got)
		}
	})
}
