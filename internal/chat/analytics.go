package chat

import (
	"context"
	"errors"
	"sort"
	"time"
)

// AnalyticsRecorder appends one event per completed pipeline run. It never
// updates or deletes; aggregation is left to reporting.
type AnalyticsRecorder interface {
	Record(ctx context.Context, ev AnalyticsEvent) error
}

type analyticsRecorder struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsRecorder(store AnalyticsStore, now func() time.Time) AnalyticsRecorder {
	if now == nil {
		now = time.Now
	}
	return &analyticsRecorder{store: store, now: now}
}

func (r *analyticsRecorder) Record(ctx context.Context, ev AnalyticsEvent) error {
	if ev.SessionID == "" {
		return errors.New("analytics event without session id")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	ev.ID = 0
	return r.store.RecordAnalytics(ctx, &ev)
}

// statsBuilder folds rows into Stats for stores that cannot aggregate natively.
type statsBuilder struct {
	stats        Stats
	sessions     map[string]bool
	days         map[string]int
	events       int
	escalated    int
	satisfaction []int
	responseSum  time.Duration
	responseN    int
}

func newStatsBuilder(since time.Time) *statsBuilder {
	return &statsBuilder{
		stats:    Stats{Since: since, IntentDistribution: make(map[Intent]int)},
		sessions: make(map[string]bool),
		days:     make(map[string]int),
	}
}

func (b *statsBuilder) addMessage(m Message) {
	b.sessions[m.SessionID] = true
	b.stats.TotalMessages++
	b.days[m.CreatedAt.UTC().Format("2006-01-02")]++
}

func (b *statsBuilder) addEvent(ev AnalyticsEvent) {
	b.events++
	if ev.Escalated {
		b.escalated++
	}
	if ev.Intent != "" {
		b.stats.IntentDistribution[ev.Intent]++
	}
	if ev.SatisfactionScore != nil {
		b.satisfaction = append(b.satisfaction, *ev.SatisfactionScore)
	}
	if ev.ResponseTime != nil {
		b.responseSum += *ev.ResponseTime
		b.responseN++
	}
}

func (b *statsBuilder) build() Stats {
	s := b.stats
	s.TotalConversations = len(b.sessions)
	if b.events > 0 {
		s.EscalationRate = float64(b.escalated) * 100 / float64(b.events)
	}
	if len(b.satisfaction) > 0 {
		sum := 0
		for _, v := range b.satisfaction {
			sum += v
		}
		s.AvgSatisfaction = float64(sum) / float64(len(b.satisfaction))
	}
	if b.responseN > 0 {
		s.AvgResponseTime = b.responseSum / time.Duration(b.responseN)
	}
	for d, n := range b.days {
		s.DailyActivity = append(s.DailyActivity, DailyCount{Date: d, Messages: n})
	}
	sort.Slice(s.DailyActivity, func(i, j int) bool {
		return s.DailyActivity[i].Date < s.DailyActivity[j].Date
	})
	return s
}
