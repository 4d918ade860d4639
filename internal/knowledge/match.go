package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

// ContainsKeyword reports whether keyword occurs anywhere in text, ignoring case.
func ContainsKeyword(text, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), keyword)
}

// HasKeyword reports whether keyword occurs in text starting at a word boundary,
// so "thank" matches "thanks" but "hi" does not match "this". Both sides are
// compared lowercase.
func HasKeyword(text, keyword string) bool {
	text = strings.ToLower(text)
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}

	for from := 0; from < len(text); {
		i := strings.Index(text[from:], keyword)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 || !isWordRune(lastRune(text[:at])) {
			return true
		}
		from = at + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}

// Rank orders active entries by how many of their keywords occur in text and
// returns at most n of them. Ties keep the input order.
func Rank(text string, entries []Entry, n int) []Entry {
	type scored struct {
		entry Entry
		score int
	}

	list := make([]scored, 0, len(entries))
	for _, e := range entries {
		if !e.Active {
			continue
		}
		s := 0
		for _, k := range e.Keywords {
			if HasKeyword(text, k) {
				s++
			}
		}
		list = append(list, scored{entry: e, score: s})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})

	if n > 0 && len(list) > n {
		list = list[:n]
	}

	out := make([]Entry, len(list))
	for i, s := range list {
		out[i] = s.entry
	}
	return out
}
