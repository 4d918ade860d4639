package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
)

type captured struct {
	from    string
	to      []string
	subject string
	html    string
	raw     string
}

func capture(t *testing.T, msg *mail.Msg) captured {
	t.Helper()
	from, err := msg.GetSender(false)
	require.NoError(t, err)
	to, err := msg.GetRecipients()
	require.NoError(t, err)

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	html, err := parts[0].GetContent()
	require.NoError(t, err)

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)

	c := captured{from: from, to: to, html: string(html), raw: raw.String()}
	if subj := msg.GetGenHeader(mail.HeaderSubject); len(subj) > 0 {
		c.subject = subj[0]
	}
	return c
}

func newTestMailer(t *testing.T, sendErr error) (*Mailer, *[]captured) {
	t.Helper()
	var got []captured
	m, err := NewMailer(SMTPConfig{Host: "smtp.example.com", User: "bot@example.com", To: "ops@example.com"}, zap.NewNop(),
		WithClock(func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }),
		WithSendFunc(func(_ context.Context, msg *mail.Msg) error {
			got = append(got, capture(t, msg))
			return sendErr
		}))
	require.NoError(t, err)
	return m, &got
}

func TestNewMailerRequiresHostAndRecipient(t *testing.T) {
	_, err := NewMailer(SMTPConfig{Host: "smtp.example.com"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(SMTPConfig{To: "ops@example.com"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNotifyEscalation(t *testing.T) {
	m, got := newTestMailer(t, nil)
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	err := m.NotifyEscalation(context.Background(), chat.Escalation{
		SessionID:     "wa_15550001_1715328000",
		Channel:       chat.ChannelWhatsApp,
		ParticipantID: "15550001",
		ContactName:   "Ana",
		Reason:        chat.ReasonKeyword,
		Query:         "refund <now>",
		Recent: []chat.Message{
			{Sender: chat.SenderBot, Text: "second", CreatedAt: at.Add(time.Second)},
			{Sender: chat.SenderUser, Text: "first", CreatedAt: at},
		},
		At: at,
	})
	require.NoError(t, err)
	require.Len(t, *got, 1)

	c := (*got)[0]
	assert.Equal(t, "bot@example.com", c.from)
	assert.Equal(t, []string{"ops@example.com"}, c.to)
	assert.Equal(t, "🚨 Customer Escalation Required - Ana", c.subject)
	assert.Contains(t, c.raw, "Content-Type: text/html")
	assert.Contains(t, c.html, "<strong>Name:</strong> Ana")
	assert.Contains(t, c.html, "keyword-match")
	assert.Contains(t, c.html, "refund &lt;now&gt;")
	assert.Less(t, strings.Index(c.html, "first"), strings.Index(c.html, "second"))
	assert.Contains(t, c.html, "<strong>Customer:</strong> first")
	assert.Contains(t, c.html, "<strong>Bot:</strong> second")
}

func TestNotifyEscalationWithoutHistory(t *testing.T) {
	m, got := newTestMailer(t, nil)

	require.NoError(t, m.NotifyEscalation(context.Background(), chat.Escalation{SessionID: "s", Query: "help"}))
	assert.Contains(t, (*got)[0].html, "No history available.")
	assert.Contains(t, (*got)[0].html, "<strong>Name:</strong> Unknown")
}

func TestSendDailyReport(t *testing.T) {
	m, got := newTestMailer(t, nil)

	err := m.SendDailyReport(context.Background(), chat.Stats{
		TotalConversations: 12,
		TotalMessages:      40,
		EscalationRate:     12.5,
		AvgResponseTime:    1234567 * time.Microsecond,
		IntentDistribution: map[chat.Intent]int{chat.IntentGeneral: 2, chat.IntentPricing: 5},
	})
	require.NoError(t, err)

	msg := (*got)[0].html
	assert.Contains(t, msg, "2024-05-10")
	assert.Contains(t, msg, "<strong>12</strong>")
	assert.Contains(t, msg, "<strong>12.5%</strong>")
	assert.Contains(t, msg, "1.235s")
	assert.Less(t, strings.Index(msg, "pricing: 5"), strings.Index(msg, "general: 2"))
}

func TestLongTranscriptStaysWithinLineLimit(t *testing.T) {
	m, got := newTestMailer(t, nil)

	long := strings.Repeat("my order never arrived and nobody answers ", 200)
	require.NoError(t, m.NotifyEscalation(context.Background(), chat.Escalation{
		SessionID: "s",
		Query:     long,
		Recent:    []chat.Message{{Sender: chat.SenderUser, Text: long}},
	}))

	c := (*got)[0]
	assert.Contains(t, c.html, long)
	assert.Contains(t, c.raw, "Content-Transfer-Encoding: quoted-printable")
	for _, line := range strings.Split(c.raw, "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}
}

func TestDeliverWrapsSendError(t *testing.T) {
	m, _ := newTestMailer(t, errors.New("connection refused"))

	err := m.SendDailyReport(context.Background(), chat.Stats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send mail")
}

// fakeSMTP accepts one plain SMTP session and records the DATA payload.
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	data := make(chan string, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	t.Cleanup(wg.Wait)
	t.Cleanup(func() { ln.Close() })

	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		reply("220 fake ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				var body strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				data <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p, data
}

func TestSMTPSend(t *testing.T) {
	host, port, data := fakeSMTP(t)
	m, err := NewMailer(SMTPConfig{Host: host, Port: port, From: "bot@example.com", To: "ops@example.com"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.SendDailyReport(ctx, chat.Stats{TotalMessages: 3}))

	select {
	case body := <-data:
		assert.Contains(t, body, "ops@example.com")
		assert.Contains(t, body, "=?UTF-8?q?")
		assert.Contains(t, body, "Content-Transfer-Encoding: quoted-printable")
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	assert.NoError(t, n.NotifyEscalation(context.Background(), chat.Escalation{SessionID: "s"}))
	assert.NoError(t, n.SendDailyReport(context.Background(), chat.Stats{}))
}
