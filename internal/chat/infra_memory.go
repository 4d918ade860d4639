package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

// memoryRepo keeps everything in process; for development and tests.
type memoryRepo struct {
	mu       sync.RWMutex
	messages []Message
	entries  []knowledge.Entry
	events   []AnalyticsEvent
	nextID   int64
}

func NewMemoryRepo() Repo {
	return &memoryRepo{}
}

func (r *memoryRepo) Migrate(context.Context) error { return nil }

func (r *memoryRepo) SaveMessage(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memoryRepo) SessionMessages(_ context.Context, sessionID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	all, _ := r.SessionMessages(ctx, sessionID)

	out := make([]Message, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) ListSessions(_ context.Context, limit int) ([]SessionSummary, error) {
	r.mu.RLock()
	msgs := append([]Message(nil), r.messages...)
	r.mu.RUnlock()

	groups := GroupSessions(msgs)
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	out := make([]SessionSummary, len(groups))
	for i, g := range groups {
		out[i] = g.SessionSummary
	}
	return out, nil
}

func (r *memoryRepo) ActiveEntries(context.Context) ([]knowledge.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []knowledge.Entry
	for _, e := range r.entries {
		if e.Active {
			e.Keywords = append([]string(nil), e.Keywords...)
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) SeedEntries(_ context.Context, entries []knowledge.Entry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) > 0 {
		return 0, nil
	}
	now := time.Now().UnixMilli()
	for _, e := range entries {
		r.nextID++
		e.ID = r.nextID
		e.CreatedAt, e.UpdatedAt = now, now
		r.entries = append(r.entries, e)
	}
	return len(entries), nil
}

func (r *memoryRepo) RecordAnalytics(_ context.Context, ev *AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ev.ID = r.nextID
	r.events = append(r.events, *ev)
	return nil
}

func (r *memoryRepo) Stats(_ context.Context, since time.Time) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b := newStatsBuilder(since)
	for _, m := range r.messages {
		if !m.CreatedAt.Before(since) {
			b.addMessage(m)
		}
	}
	for _, ev := range r.events {
		if !ev.CreatedAt.Before(since) {
			b.addEvent(ev)
		}
	}
	return b.build(), nil
}

func (r *memoryRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	msgs := r.messages[:0]
	for _, m := range r.messages {
		if m.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		msgs = append(msgs, m)
	}
	r.messages = msgs

	events := r.events[:0]
	for _, ev := range r.events {
		if ev.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		events = append(events, ev)
	}
	r.events = events

	return removed, nil
}

func (r *memoryRepo) Close() error { return nil }
