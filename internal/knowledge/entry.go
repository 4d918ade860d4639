// Package knowledge holds the FAQ knowledge base and the immutable bot tables
// (canned actions, keyword table, templates) the pipeline matches against.
package knowledge

import "strings"

// Entry is one FAQ record. Owned by the admin surface; the pipeline only reads active ones.
type Entry struct {
	ID        int64
	Category  string
	Question  string
	Answer    string // may contain *emphasis* markup
	Keywords  []string
	Active    bool
	CreatedAt int64
	UpdatedAt int64
}

// JoinKeywords is the stored form of Keywords (comma separated, order kept).
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

// SplitKeywords parses the stored form back into an ordered, de-duplicated set.
func SplitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
