// Package province canonicalizes free text Mekong delta province names so every dataset keys
// on a single spelling.
package province

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type entry struct {
	key       string
	canonical string
}

// gazetteer order matters for substring matching, the first contained key wins
var gazetteer = []entry{
	{"kien giang", "Kien Giang"},
	{"soc trang", "Soc Trang"},
	{"bac lieu", "Bac Lieu"},
	{"ben tre", "Ben Tre"},
	{"ca mau", "Ca Mau"},
	{"tra vinh", "Tra Vinh"},
	{"dong thap", "Dong Thap"},
	{"tien giang", "Tien Giang"},
	{"hau giang", "Hau Giang"},
	{"long an", "Long An"},
	{"an giang", "An Giang"},
	{"can tho", "Can Tho"},
	{"vinh long", "Vinh Long"},
}

var (
	byKey   = make(map[string]string, len(gazetteer))
	known   = make(map[string]struct{}, len(gazetteer))
	addrSep = func(r rune) bool {
		switch r {
		case ',', ';', '|', '-':
			return true
		}
		return false
	}
)

func init() {
	for _, e := range gazetteer {
		byKey[e.key] = e.canonical
		known[e.canonical] = struct{}{}
	}
}

// Canonical returns the canonical spelling of every gazetteer province in gazetteer order
func Canonical() []string {
	out := make([]string, 0, len(gazetteer))
	for _, e := range gazetteer {
		out = append(out, e.canonical)
	}
	return out
}

// IsKnown returns true if the name is the canonical spelling of a gazetteer province
func IsKnown(name string) bool {
	_, exists := known[name]
	return exists
}

// Normalize canonicalizes a province name. Names outside of the gazetteer are returned title
// cased as a best effort. An empty input returns false.
func Normalize(raw string) (string, bool) {
	text := fold(raw)
	if text == "" {
		return "", false
	}
	if canonical, exists := byKey[text]; exists {
		return canonical, true
	}
	for _, e := range gazetteer {
		if strings.Contains(text, e.key) {
			return e.canonical, true
		}
	}

	titler := cases.Title(language.Und)
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = titler.String(w)
	}
	return strings.Join(words, " "), true
}

// ExtractFromAddress returns the province named by the last recognizable address segment.
// Falls back to normalizing the whole address.
func ExtractFromAddress(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	segments := strings.FieldsFunc(text, addrSep)
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(segments[i])
		if seg == "" {
			continue
		}
		if name, ok := Normalize(seg); ok && IsKnown(name) {
			return name, true
		}
	}
	return Normalize(text)
}

// fold strips diacritics, lowercases, and reduces everything that is not a lowercase ascii
// letter, digit, or whitespace to single spaces.
func fold(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'đ', 'Đ':
				return 'd'
			}
			return r
		}),
	)
	stripped, _, err := transform.String(t, raw)
	if err != nil {
		stripped = raw
	}
	stripped = strings.ToLower(stripped)

	var sb strings.Builder
	sb.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', unicode.IsSpace(r):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
