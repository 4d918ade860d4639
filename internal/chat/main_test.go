package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/ai"
	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClassifier struct {
	label string
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.label, f.err
}

type fakeResponder struct {
	answer string
	err    error
	block  bool

	mu   sync.Mutex
	faqs []ai.FAQ
	note string
}

func (f *fakeResponder) Generate(ctx context.Context, _, note string, faqs []ai.FAQ) (string, error) {
	f.mu.Lock()
	f.faqs, f.note = faqs, note
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Escalation
	err error
}

func (n *recordingNotifier) NotifyEscalation(_ context.Context, e Escalation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, e)
	return n.err
}

func (n *recordingNotifier) all() []Escalation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Escalation(nil), n.got...)
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []Outbound
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, out Outbound) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, out)
	return d.err
}

func (d *recordingDispatcher) all() []Outbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Outbound(nil), d.got...)
}

func testTables(t *testing.T) *knowledge.Tables {
	t.Helper()
	tables, err := knowledge.Default()
	require.NoError(t, err)
	return tables
}

type fixture struct {
	svc       Service
	repo      Repo
	tables    *knowledge.Tables
	external  *fakeClassifier
	responder *fakeResponder
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		repo:      NewMemoryRepo(),
		tables:    testTables(t),
		external:  &fakeClassifier{label: "general"},
		responder: &fakeResponder{answer: "We integrate with most CRMs."},
		notifier:  &recordingNotifier{},
	}
	_, err := f.repo.SeedEntries(context.Background(), f.tables.SeedEntries())
	require.NoError(t, err)

	cl, err := NewClassifier(f.tables, f.external, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	comp := NewComposer(f.tables, ComposerOptions{
		Responder: f.responder,
		Timeout:   50 * time.Millisecond,
		Chooser:   func(int) int { return 0 },
	}, zap.NewNop())

	o := Options{
		Repo:       f.repo,
		Classifier: cl,
		Composer:   comp,
		Policy:     NewEscalationPolicy(f.tables.EscalationKeywords),
		Notifier:   f.notifier,
		Log:        zap.NewNop(),
	}
	for _, m := range mutate {
		m(&o)
	}
	f.repo = o.Repo
	f.svc = NewService(o)
	t.Cleanup(f.svc.Wait)
	return f
}
