package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKeepsExistingID(t *testing.T) {
	tr := NewSessionTracker(30 * time.Minute)
	assert.Equal(t, "abc", tr.Resolve(ChannelWhatsApp, "15550001", " abc ", time.Now()))
	assert.Equal(t, "web_1", tr.Resolve(ChannelWeb, "u1", "web_1", time.Now()))
}

func TestResolveWebGetsFreshIDs(t *testing.T) {
	tr := NewSessionTracker(0)
	a := tr.Resolve(ChannelWeb, "u1", "", time.Now())
	b := tr.Resolve(ChannelWeb, "u1", "", time.Now())

	assert.True(t, strings.HasPrefix(a, "web_"))
	assert.NotEqual(t, a, b)
}

func TestResolveWhatsAppBucketsByWindow(t *testing.T) {
	tr := NewSessionTracker(30 * time.Minute)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := tr.Resolve(ChannelWhatsApp, "15550001", "", base.Add(time.Minute))
	same := tr.Resolve(ChannelWhatsApp, "15550001", "", base.Add(29*time.Minute))
	next := tr.Resolve(ChannelWhatsApp, "15550001", "", base.Add(31*time.Minute))
	other := tr.Resolve(ChannelWhatsApp, "15550002", "", base.Add(time.Minute))

	assert.Equal(t, "wa_15550001_1714557600", first)
	assert.Equal(t, first, same)
	assert.NotEqual(t, first, next)
	assert.NotEqual(t, first, other)
}

func TestResolveWithoutParticipant(t *testing.T) {
	tr := NewSessionTracker(time.Minute)
	id := tr.Resolve(ChannelWhatsApp, "", "", time.Now())
	assert.True(t, strings.HasPrefix(id, "wa_"))
	assert.Len(t, strings.Split(id, "_"), 2)
}

func TestGroupSessions(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "2", SessionID: "a", Channel: ChannelWeb, Sender: SenderBot, CreatedAt: t0.Add(2 * time.Second)},
		{ID: "1", SessionID: "a", Channel: ChannelWeb, Sender: SenderUser, CreatedAt: t0},
		{ID: "3", SessionID: "b", Channel: ChannelWhatsApp, ContactName: "Ana", CreatedAt: t0.Add(time.Minute)},
	}

	got := GroupSessions(msgs)
	require.Len(t, got, 2)

	assert.Equal(t, "b", got[0].SessionID)
	assert.Equal(t, "Ana", got[0].ContactName)

	assert.Equal(t, "a", got[1].SessionID)
	assert.Equal(t, 2, got[1].SessionSummary.Messages)
	assert.Equal(t, t0, got[1].StartedAt)
	assert.Equal(t, t0.Add(2*time.Second), got[1].LastActivity)
	assert.Equal(t, "1", got[1].Messages[0].ID)
	assert.Equal(t, "2", got[1].Messages[1].ID)
}
