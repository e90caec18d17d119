package playback

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// minSpellingLen keeps short codes such as "es" from matching inside
// arbitrary titles.
const minSpellingLen = 4

// LanguageMatcher matches audio stream metadata against preferred languages.
type LanguageMatcher struct {
	bases     []language.Base
	spellings []string
	fold      cases.Caser
}

// NewLanguageMatcher builds a matcher from BCP 47 or ISO 639 codes such as
// "spa", "es" or "es-MX". Unparseable entries are ignored.
func NewLanguageMatcher(preferred []string) *LanguageMatcher {
	m := &LanguageMatcher{fold: cases.Fold()}
	seen := make(map[language.Base]bool)
	for _, p := range preferred {
		base, ok := parseBase(p)
		if !ok || seen[base] {
			continue
		}
		seen[base] = true
		m.bases = append(m.bases, base)

		tag := language.Make(base.String())
		for _, name := range []string{
			display.English.Languages().Name(tag),
			display.Self.Name(tag),
			base.ISO3(),
		} {
			name = m.fold.String(strings.TrimSpace(name))
			if len(name) >= minSpellingLen || (len(name) == 3 && name == base.ISO3()) {
				m.spellings = append(m.spellings, name)
			}
		}
	}
	return m
}

// Enabled reports whether any preferred language is configured.
func (m *LanguageMatcher) Enabled() bool {
	return len(m.bases) > 0
}

// MatchTag reports whether a stream language tag names a preferred language.
func (m *LanguageMatcher) MatchTag(tag string) bool {
	base, ok := parseBase(tag)
	if !ok {
		return false
	}
	for _, b := range m.bases {
		if b == base {
			return true
		}
	}
	return false
}

// MatchTitle reports whether a free-text title contains a localized
// spelling of a preferred language.
func (m *LanguageMatcher) MatchTitle(title string) bool {
	if title == "" {
		return false
	}
	folded := m.fold.String(title)
	for _, s := range m.spellings {
		if len(s) < minSpellingLen {
			if containsWord(folded, s) {
				return true
			}
			continue
		}
		if strings.Contains(folded, s) {
			return true
		}
	}
	return false
}

// Match reports whether a stream's tag or title names a preferred language.
func (m *LanguageMatcher) Match(tag, title string) bool {
	return m.MatchTag(tag) || m.MatchTitle(title)
}

func parseBase(s string) (language.Base, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Base{}, false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Base{}, false
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return language.Base{}, false
	}
	return base, true
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
