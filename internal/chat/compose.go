package chat

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/ai"
	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

type CompositionKind string

const (
	KindTemplate  CompositionKind = "template"
	KindGenerated CompositionKind = "generated"
	KindFallback  CompositionKind = "fallback"
)

// Composition is raw marked-up text; rendering belongs to the display surface.
type Composition struct {
	Text         string
	Kind         CompositionKind
	Fallback     bool // composer could not produce an answer; escalate
	QuickReplies []knowledge.QuickReply
}

// Chooser picks an index in [0, n). Tests pass a fixed one.
type Chooser func(n int) int

// RandomChooser uses the global math/rand/v2 source.
func RandomChooser(n int) int {
	return rand.IntN(n)
}

type Composer struct {
	templates    map[Intent]string
	phrasings    map[Intent][]string
	quickReplies []knowledge.QuickReply
	fallback     string
	handoff      string

	responder ai.Responder // may be nil
	timeout   time.Duration
	topN      int
	choose    Chooser
	log       *zap.Logger
}

type ComposerOptions struct {
	Responder ai.Responder
	Timeout   time.Duration
	TopN      int
	Chooser   Chooser
}

func NewComposer(tables *knowledge.Tables, opts ComposerOptions, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Composer{
		templates:    make(map[Intent]string),
		phrasings:    make(map[Intent][]string),
		quickReplies: tables.QuickReplies,
		fallback:     tables.FallbackText,
		handoff:      tables.HandoffText,
		responder:    opts.Responder,
		timeout:      opts.Timeout,
		topN:         opts.TopN,
		choose:       opts.Chooser,
		log:          log,
	}

	for k, v := range tables.Templates {
		if in, err := ParseIntent(k); err == nil {
			c.templates[in] = strings.TrimSpace(v)
		}
	}
	for k, v := range tables.Phrasings {
		if in, err := ParseIntent(k); err == nil && len(v) > 0 {
			c.phrasings[in] = v
		}
	}

	if c.choose == nil {
		c.choose = RandomChooser
	}
	if c.timeout <= 0 {
		c.timeout = 8 * time.Second
	}
	if c.topN <= 0 {
		c.topN = 5
	}
	return c
}

// Compose answers from a template when the intent has one (or a random
// phrasing for greeting/thanks), otherwise asks the responder with the top
// ranked FAQ entries. A responder failure yields the fixed fallback text.
func (c *Composer) Compose(ctx context.Context, text string, intent Intent, note string, entries []knowledge.Entry) Composition {
	if options, ok := c.phrasings[intent]; ok {
		return Composition{
			Text:         options[c.choose(len(options))],
			Kind:         KindTemplate,
			QuickReplies: c.quickReplies,
		}
	}

	if tpl, ok := c.templates[intent]; ok {
		return Composition{Text: tpl, Kind: KindTemplate}
	}

	if c.responder == nil {
		return c.Fallback()
	}

	top := knowledge.Rank(text, entries, c.topN)
	faqs := make([]ai.FAQ, 0, len(top))
	for _, e := range top {
		faqs = append(faqs, ai.FAQ{Question: e.Question, Answer: e.Answer})
	}

	gctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.responder.Generate(gctx, text, note, faqs)
	if err != nil || strings.TrimSpace(answer) == "" {
		c.log.Warn("responder failed, using fallback", zap.Error(err))
		return c.Fallback()
	}

	return Composition{Text: strings.TrimSpace(answer), Kind: KindGenerated}
}

// Fallback is the static answer used when nothing else worked.
func (c *Composer) Fallback() Composition {
	return Composition{Text: c.fallback, Kind: KindFallback, Fallback: true}
}

// Handoff is the notice sent instead of a generated answer once a human is looped in.
func (c *Composer) Handoff() string {
	return c.handoff
}
