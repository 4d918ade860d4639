package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReporter struct {
	got []chat.Stats
	err error
}

func (r *fakeReporter) SendDailyReport(_ context.Context, s chat.Stats) error {
	r.got = append(r.got, s)
	return r.err
}

func TestReportSchedule(t *testing.T) {
	sched, err := cron.ParseStandard(ReportSpec(9))
	require.NoError(t, err)

	loc := time.UTC
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 5, 10, 8, 59, 0, 0, loc), time.Date(2024, 5, 10, 9, 0, 0, 0, loc)},
		{time.Date(2024, 5, 10, 9, 0, 0, 0, loc), time.Date(2024, 5, 11, 9, 0, 0, 0, loc)},
		{time.Date(2024, 5, 31, 23, 0, 0, 0, loc), time.Date(2024, 6, 1, 9, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sched.Next(tc.now), tc.now)
	}
}

func TestCleanupSchedule(t *testing.T) {
	sched, err := cron.ParseStandard(CleanupSpec)
	require.NoError(t, err)

	loc := time.UTC
	// 2024-05-10 is a Friday, 2024-05-12 a Sunday
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 5, 10, 12, 0, 0, 0, loc), time.Date(2024, 5, 12, 2, 0, 0, 0, loc)},
		{time.Date(2024, 5, 12, 1, 0, 0, 0, loc), time.Date(2024, 5, 12, 2, 0, 0, 0, loc)},
		{time.Date(2024, 5, 12, 2, 0, 0, 0, loc), time.Date(2024, 5, 19, 2, 0, 0, 0, loc)},
		{time.Date(2024, 5, 12, 3, 0, 0, 0, loc), time.Date(2024, 5, 19, 2, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sched.Next(tc.now), tc.now)
	}
}

func TestSchedulerRegistersBothJobs(t *testing.T) {
	s := New(Options{Store: chat.NewMemoryRepo(), Reporter: &fakeReporter{}, ReportHour: 9, Location: time.UTC})

	c, err := s.cron(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestRunRejectsBadReportHour(t *testing.T) {
	s := New(Options{Store: chat.NewMemoryRepo(), Reporter: &fakeReporter{}, ReportHour: 25})
	assert.Error(t, s.Run(context.Background()))
}

func TestJobRunsWithDeadline(t *testing.T) {
	s := New(Options{Store: chat.NewMemoryRepo(), Reporter: &fakeReporter{}, TaskTimeout: time.Minute})

	var hasDeadline bool
	s.job(context.Background(), "test", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return errors.New("logged, not returned")
	})()
	assert.True(t, hasDeadline)
}

func TestRunReport(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := chat.NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.SaveMessage(ctx, &chat.Message{ID: "1", SessionID: "a", Sender: chat.SenderUser, Text: "hi", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.SaveMessage(ctx, &chat.Message{ID: "2", SessionID: "b", Sender: chat.SenderUser, Text: "hi", CreatedAt: now.Add(-48 * time.Hour)}))

	rep := &fakeReporter{}
	s := New(Options{Store: repo, Reporter: rep, Now: func() time.Time { return now }})

	require.NoError(t, s.RunReport(ctx))
	require.Len(t, rep.got, 1)
	assert.Equal(t, 1, rep.got[0].TotalMessages)
	assert.Equal(t, now.Add(-24*time.Hour), rep.got[0].Since)

	rep.err = errors.New("smtp down")
	assert.Error(t, s.RunReport(ctx))
}

func TestRunCleanup(t *testing.T) {
	now := time.Date(2024, 5, 12, 2, 0, 0, 0, time.UTC)
	repo := chat.NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.SaveMessage(ctx, &chat.Message{ID: "old", SessionID: "a", CreatedAt: now.AddDate(0, 0, -91)}))
	require.NoError(t, repo.SaveMessage(ctx, &chat.Message{ID: "new", SessionID: "a", CreatedAt: now.AddDate(0, 0, -89)}))

	s := New(Options{Store: repo, Reporter: &fakeReporter{}, Now: func() time.Time { return now }})

	n, err := s.RunCleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.SessionMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Store: chat.NewMemoryRepo(), Reporter: &fakeReporter{}, ReportHour: 9})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
