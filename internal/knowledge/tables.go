package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTables []byte

// KeywordRule binds an intent label to the keywords that select it.
type KeywordRule struct {
	Intent string   `yaml:"intent"`
	Words  []string `yaml:"words"`
}

type QuickReply struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

type seedEntry struct {
	Category string   `yaml:"category"`
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Keywords []string `yaml:"keywords"`
}

// Tables is read-only after Load; share it by pointer, never mutate it.
type Tables struct {
	CannedActions      map[string]string   `yaml:"canned_actions"`
	Keywords           []KeywordRule       `yaml:"keywords"`
	Templates          map[string]string   `yaml:"templates"`
	Phrasings          map[string][]string `yaml:"phrasings"`
	QuickReplies       []QuickReply        `yaml:"quick_replies"`
	EscalationKeywords []string            `yaml:"escalation_keywords"`
	FallbackText       string              `yaml:"fallback_text"`
	HandoffText        string              `yaml:"handoff_text"`
	FAQs               []seedEntry         `yaml:"faqs"`
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot tables: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse bot tables: %w", err)
	}
	t.normalize()
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) normalize() {
	canned := make(map[string]string, len(t.CannedActions))
	for k, v := range t.CannedActions {
		canned[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	t.CannedActions = canned

	for i := range t.Keywords {
		t.Keywords[i].Intent = strings.ToLower(strings.TrimSpace(t.Keywords[i].Intent))
		t.Keywords[i].Words = lowerAll(t.Keywords[i].Words)
	}
	t.EscalationKeywords = lowerAll(t.EscalationKeywords)
	t.FallbackText = strings.TrimSpace(t.FallbackText)
	t.HandoffText = strings.TrimSpace(t.HandoffText)
}

func (t *Tables) validate() error {
	if t.FallbackText == "" {
		return errors.New("bot tables: fallback_text is required")
	}
	if t.HandoffText == "" {
		return errors.New("bot tables: handoff_text is required")
	}
	for _, rule := range t.Keywords {
		if rule.Intent == "" {
			return errors.New("bot tables: keyword rule without intent")
		}
	}
	return nil
}

// SeedEntries returns the default FAQ entries, all active.
func (t *Tables) SeedEntries() []Entry {
	out := make([]Entry, 0, len(t.FAQs))
	for _, f := range t.FAQs {
		out = append(out, Entry{
			Category: f.Category,
			Question: f.Question,
			Answer:   strings.TrimSpace(f.Answer),
			Keywords: lowerAll(f.Keywords),
			Active:   true,
		})
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
