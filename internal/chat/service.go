package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("empty message")

// State is the position of a run in the pipeline state machine.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateSessionResolved   State = "SESSION_RESOLVED"
	StateClassified        State = "CLASSIFIED"
	StateComposed          State = "COMPOSED"
	StateEscalationDecided State = "ESCALATION_DECIDED"
	StateDispatched        State = "DISPATCHED"
	StatePersisted         State = "PERSISTED"
	StateAnalyticsRecorded State = "ANALYTICS_RECORDED"
	StateFailed            State = "FAILED"
)

// Inbound is one user message as handed over by a channel adapter.
type Inbound struct {
	Channel           Channel
	ParticipantID     string
	SessionID         string // optional; kept verbatim when set
	Text              string
	PlatformMessageID string
	ContactName       string
	ReceivedAt        time.Time
}

type Result struct {
	SessionID      string
	State          State
	Classification Classification
	Composition    Composition
	Decision       EscalationDecision
	Response       string
	Dispatched     bool
	DispatchErr    error // wraps ErrTransport; the run itself still completes
	Latency        time.Duration
}

// Service — orchestration of one inbound message end to end.
type Service interface {
	Process(ctx context.Context, in Inbound, out Dispatcher) (Result, error)
	// Wait blocks until background escalation notifications are done.
	Wait()
	// ActiveSessions is the number of sessions with a run queued or in flight.
	ActiveSessions() int
}

type Options struct {
	Repo       Repo
	Tracker    *SessionTracker
	Classifier *Classifier
	Composer   *Composer
	Policy     EscalationPolicy
	Queue      *SessionQueue
	Recorder   AnalyticsRecorder // defaults to Repo
	Notifier   Notifier          // may be nil

	RecentWindow    int
	DispatchTimeout time.Duration
	NotifyTimeout   time.Duration

	Now func() time.Time
	Log *zap.Logger
}

type service struct {
	repo       Repo
	tracker    *SessionTracker
	classifier *Classifier
	composer   *Composer
	policy     EscalationPolicy
	queue      *SessionQueue
	recorder   AnalyticsRecorder
	notifier   Notifier

	recentWindow    int
	dispatchTimeout time.Duration
	notifyTimeout   time.Duration

	now func() time.Time
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewService(o Options) Service {
	s := &service{
		repo:            o.Repo,
		tracker:         o.Tracker,
		classifier:      o.Classifier,
		composer:        o.Composer,
		policy:          o.Policy,
		queue:           o.Queue,
		recorder:        o.Recorder,
		notifier:        o.Notifier,
		recentWindow:    o.RecentWindow,
		dispatchTimeout: o.DispatchTimeout,
		notifyTimeout:   o.NotifyTimeout,
		now:             o.Now,
		log:             o.Log,
	}

	if s.tracker == nil {
		s.tracker = NewSessionTracker(0)
	}
	if s.queue == nil {
		s.queue = NewSessionQueue()
	}
	if s.recentWindow <= 0 {
		s.recentWindow = 10
	}
	if s.dispatchTimeout <= 0 {
		s.dispatchTimeout = 10 * time.Second
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 15 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.recorder == nil {
		s.recorder = NewAnalyticsRecorder(s.repo, s.now)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Process runs the pipeline for one message. Runs of the same session are
// serialized in arrival order. A transport failure is reported in
// Result.DispatchErr and does not fail the run; a persistence failure
// returns an error wrapping ErrPersistence.
func (s *service) Process(ctx context.Context, in Inbound, out Dispatcher) (Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{State: StateFailed}, ErrEmptyMessage
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = s.now()
	}

	res := Result{State: StateReceived}
	res.SessionID = s.tracker.Resolve(in.Channel, in.ParticipantID, in.SessionID, in.ReceivedAt)
	res.State = StateSessionResolved

	var err error
	s.queue.Do(res.SessionID, func() {
		res, err = s.run(ctx, in, out, res)
	})
	return res, err
}

func (s *service) run(ctx context.Context, in Inbound, out Dispatcher, res Result) (Result, error) {
	start := s.now()
	log := s.log.With(zap.String("session_id", res.SessionID), zap.String("channel", string(in.Channel)))

	// Persistence and analytics outlive the request.
	durable := context.WithoutCancel(ctx)

	user := &Message{
		ID:                uuid.NewString(),
		SessionID:         res.SessionID,
		ParticipantID:     in.ParticipantID,
		Channel:           in.Channel,
		Sender:            SenderUser,
		Text:              in.Text,
		PlatformMessageID: in.PlatformMessageID,
		ContactName:       in.ContactName,
		CreatedAt:         in.ReceivedAt,
	}
	if err := s.repo.SaveMessage(durable, user); err != nil {
		log.Error("save inbound message failed", zap.Error(err))
		res.Composition = s.composer.Fallback()
		res.Decision = EscalationDecision{Escalate: true, Reason: ReasonComposition}
		res.Response = res.Composition.Text
		s.dispatch(ctx, log, out, in, &res)
		res.State = StateFailed
		res.Latency = s.now().Sub(start)
		return res, fmt.Errorf("%w: save inbound message: %w", ErrPersistence, err)
	}

	entries, err := s.repo.ActiveEntries(durable)
	if err != nil {
		log.Warn("load knowledge entries failed", zap.Error(err))
	}

	res.Classification = s.classifier.Classify(ctx, in.Text)
	res.State = StateClassified
	log.Debug("classified",
		zap.String("intent", string(res.Classification.Intent)),
		zap.String("source", string(res.Classification.Source)))

	res.Composition = s.composer.Compose(ctx, in.Text, res.Classification.Intent, contactNote(in), entries)
	res.State = StateComposed

	res.Decision = s.policy.Decide(in.Text, res.Classification, res.Composition)
	res.State = StateEscalationDecided
	res.Response = s.finalText(res)
	log.Debug("escalation decided",
		zap.Bool("escalate", res.Decision.Escalate),
		zap.String("reason", string(res.Decision.Reason)))

	s.dispatch(ctx, log, out, in, &res)

	var persistErr error
	bot := &Message{
		ID:            uuid.NewString(),
		SessionID:     res.SessionID,
		ParticipantID: in.ParticipantID,
		Channel:       in.Channel,
		Sender:        SenderBot,
		Text:          res.Response,
		CreatedAt:     s.now(),
	}
	if err := s.repo.SaveMessage(durable, bot); err != nil {
		log.Error("save bot message failed", zap.Error(err))
		persistErr = fmt.Errorf("%w: save bot message: %w", ErrPersistence, err)
	} else {
		res.State = StatePersisted
	}

	if res.Decision.Escalate {
		s.escalate(durable, log, in, res)
	}

	res.Latency = s.now().Sub(start)
	latency := res.Latency
	ev := AnalyticsEvent{
		SessionID:    res.SessionID,
		Query:        in.Text,
		Response:     res.Response,
		Escalated:    res.Decision.Escalate,
		Intent:       res.Classification.Intent,
		ResponseTime: &latency,
		CreatedAt:    s.now(),
	}
	if err := s.recorder.Record(durable, ev); err != nil {
		log.Error("record analytics failed", zap.Error(err))
		persistErr = errors.Join(persistErr, fmt.Errorf("%w: record analytics: %w", ErrPersistence, err))
	}

	if persistErr != nil {
		res.State = StateFailed
		return res, persistErr
	}

	res.State = StateAnalyticsRecorded
	log.Info("message processed",
		zap.String("intent", string(res.Classification.Intent)),
		zap.Bool("escalated", res.Decision.Escalate),
		zap.Bool("dispatched", res.Dispatched),
		zap.Duration("latency", res.Latency))
	return res, nil
}

// finalText replaces a generated answer with the handoff notice once a
// human is looped in; templates other than contact get the notice appended.
func (s *service) finalText(res Result) string {
	if !res.Decision.Escalate {
		return res.Composition.Text
	}

	switch res.Composition.Kind {
	case KindGenerated:
		return s.composer.Handoff()
	case KindTemplate:
		if res.Classification.Intent == IntentContact {
			return res.Composition.Text
		}
		return res.Composition.Text + "\n\n" + s.composer.Handoff()
	default:
		return res.Composition.Text
	}
}

func (s *service) dispatch(ctx context.Context, log *zap.Logger, out Dispatcher, in Inbound, res *Result) {
	if out == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		log.Warn("request cancelled before dispatch, skipping", zap.Error(err))
		res.DispatchErr = fmt.Errorf("%w: %w", ErrTransport, err)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	msg := Outbound{Recipient: in.ParticipantID, Text: res.Response}
	if !res.Decision.Escalate {
		msg.QuickReplies = res.Composition.QuickReplies
	}

	if err := out.Dispatch(dctx, msg); err != nil {
		log.Error("dispatch failed", zap.Error(err))
		res.DispatchErr = fmt.Errorf("%w: %w", ErrTransport, err)
		return
	}
	res.Dispatched = true
	if res.State != StateFailed {
		res.State = StateDispatched
	}
}

func (s *service) escalate(ctx context.Context, log *zap.Logger, in Inbound, res Result) {
	if s.notifier == nil {
		log.Warn("escalation without notifier", zap.String("reason", string(res.Decision.Reason)))
		return
	}

	recent, err := s.repo.RecentMessages(ctx, res.SessionID, s.recentWindow)
	if err != nil {
		log.Warn("load recent messages for escalation failed", zap.Error(err))
	}

	e := Escalation{
		SessionID:     res.SessionID,
		Channel:       in.Channel,
		ParticipantID: in.ParticipantID,
		ContactName:   in.ContactName,
		Reason:        res.Decision.Reason,
		Query:         in.Text,
		Recent:        recent,
		At:            s.now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyEscalation(nctx, e); err != nil {
			log.Error("escalation notification failed", zap.Error(err))
		}
	}()
}

func (s *service) Wait() {
	s.wg.Wait()
}

func (s *service) ActiveSessions() int {
	return s.queue.Active()
}

func contactNote(in Inbound) string {
	if in.ContactName == "" {
		return ""
	}
	return "Customer name: " + in.ContactName
}
