package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/ai"
	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

type Intent string

const (
	IntentPricing   Intent = "pricing"
	IntentSupport   Intent = "support"
	IntentProducts  Intent = "products"
	IntentContact   Intent = "contact"
	IntentGreeting  Intent = "greeting"
	IntentThanks    Intent = "thanks"
	IntentComplaint Intent = "complaint"
	IntentGeneral   Intent = "general"
)

var ErrUnknownIntent = errors.New("unknown intent")

var intents = map[Intent]bool{
	IntentPricing: true, IntentSupport: true, IntentProducts: true, IntentContact: true,
	IntentGreeting: true, IntentThanks: true, IntentComplaint: true, IntentGeneral: true,
}

// ParseIntent accepts only the closed label set.
func ParseIntent(s string) (Intent, error) {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if !intents[i] {
		return "", fmt.Errorf("%w: %q", ErrUnknownIntent, s)
	}
	return i, nil
}

// IntentSource records which stage produced a label.
type IntentSource string

const (
	SourceCanned   IntentSource = "canned"
	SourceKeyword  IntentSource = "keyword"
	SourceExternal IntentSource = "external"
	SourceDefault  IntentSource = "default"
)

type Classification struct {
	Intent  Intent
	Source  IntentSource
	Keyword string // matched keyword or canned action key
}

type keywordRule struct {
	intent Intent
	words  []string
}

// Classifier resolves canned action keys, then the keyword table, then the
// external model. It never fails: the last resort is general.
type Classifier struct {
	canned   map[string]Intent
	rules    []keywordRule
	external ai.Classifier // may be nil
	timeout  time.Duration
	log      *zap.Logger
}

func NewClassifier(tables *knowledge.Tables, external ai.Classifier, timeout time.Duration, log *zap.Logger) (*Classifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Classifier{
		canned:   make(map[string]Intent, len(tables.CannedActions)),
		external: external,
		timeout:  timeout,
		log:      log,
	}

	for key, label := range tables.CannedActions {
		in, err := ParseIntent(label)
		if err != nil {
			return nil, fmt.Errorf("canned action %q: %w", key, err)
		}
		c.canned[key] = in
	}

	for _, r := range tables.Keywords {
		in, err := ParseIntent(r.Intent)
		if err != nil {
			return nil, fmt.Errorf("keyword table: %w", err)
		}
		c.rules = append(c.rules, keywordRule{intent: in, words: r.Words})
	}

	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	return c, nil
}

// CannedAction reports whether text is exactly a canned action key.
func (c *Classifier) CannedAction(text string) (Intent, bool) {
	in, ok := c.canned[strings.ToLower(strings.TrimSpace(text))]
	return in, ok
}

func (c *Classifier) Classify(ctx context.Context, text string) Classification {
	key := strings.ToLower(strings.TrimSpace(text))
	if in, ok := c.CannedAction(key); ok {
		return Classification{Intent: in, Source: SourceCanned, Keyword: key}
	}

	for _, r := range c.rules {
		for _, w := range r.words {
			if knowledge.ContainsKeyword(text, w) {
				return Classification{Intent: r.intent, Source: SourceKeyword, Keyword: w}
			}
		}
	}

	if c.external == nil || key == "" {
		return Classification{Intent: IntentGeneral, Source: SourceDefault}
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	label, err := c.external.Classify(cctx, text)
	if err != nil {
		c.log.Warn("external classification failed", zap.Error(err))
		return Classification{Intent: IntentGeneral, Source: SourceDefault}
	}

	in, err := ParseIntent(label)
	if err != nil {
		c.log.Warn("external classifier returned unusable label", zap.String("label", label))
		return Classification{Intent: IntentGeneral, Source: SourceDefault}
	}
	return Classification{Intent: in, Source: SourceExternal}
}
