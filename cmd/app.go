package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/ai"
	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
	"github.com/Vovarama1992/faq-bot-bridge/internal/config"
	"github.com/Vovarama1992/faq-bot-bridge/internal/dedup"
	"github.com/Vovarama1992/faq-bot-bridge/internal/jobs"
	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
	"github.com/Vovarama1992/faq-bot-bridge/internal/logging"
	"github.com/Vovarama1992/faq-bot-bridge/internal/notify"
	"github.com/Vovarama1992/faq-bot-bridge/internal/whatsapp"
)

// operatorChannel receives escalations and daily reports.
type operatorChannel interface {
	chat.Notifier
	jobs.Reporter
}

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	tables *knowledge.Tables
	repo   chat.Repo
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	tables, err := knowledge.Load(cfg.BotTables)
	if err != nil {
		return nil, err
	}

	repo, err := chat.OpenRepo(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	log.Info("store ready", zap.String("driver", cfg.Database.Driver))

	return &app{cfg: cfg, log: log, tables: tables, repo: repo}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) seed(ctx context.Context) error {
	n, err := a.repo.SeedEntries(ctx, a.tables.SeedEntries())
	if err != nil {
		return fmt.Errorf("seed faqs: %w", err)
	}
	if n > 0 {
		a.log.Info("default faqs seeded", zap.Int("entries", n))
	}
	return nil
}

func (a *app) operator() operatorChannel {
	log := a.log.Named("notify")
	if !a.cfg.SMTP.Enabled() {
		log.Warn("SMTP not configured, escalations and reports go to the log")
		return notify.NewLogNotifier(log)
	}

	m, err := notify.NewMailer(notify.SMTPConfig{
		Host: a.cfg.SMTP.Host,
		Port: a.cfg.SMTP.Port,
		User: a.cfg.SMTP.User,
		Pass: a.cfg.SMTP.Pass,
		To:   a.cfg.SMTP.AdminEmail,
	}, log)
	if err != nil {
		log.Warn("mailer unavailable, using log", zap.Error(err))
		return notify.NewLogNotifier(log)
	}
	return m
}

func (a *app) scheduler(reporter jobs.Reporter) *jobs.Scheduler {
	return jobs.New(jobs.Options{
		Store:         a.repo,
		Reporter:      reporter,
		ReportHour:    a.cfg.Jobs.ReportHour,
		RetentionDays: a.cfg.Jobs.RetentionDays,
		Log:           a.log.Named("jobs"),
	})
}

func (a *app) service(notifier chat.Notifier) (chat.Service, error) {
	var (
		external  ai.Classifier
		responder ai.Responder
	)
	if a.cfg.AI.Enabled() {
		client := ai.NewOpenAIClient(a.cfg.AI.APIKey, a.cfg.AI.Model, a.cfg.AI.BaseURL, a.log.Named("ai"))
		external, responder = client, client
	} else {
		a.log.Warn("OPENAI_API_KEY not set, unmatched questions get the fallback answer")
	}

	classifier, err := chat.NewClassifier(a.tables, external, a.cfg.AI.ClassifierTimeout, a.log.Named("classifier"))
	if err != nil {
		return nil, err
	}
	composer := chat.NewComposer(a.tables, chat.ComposerOptions{
		Responder: responder,
		Timeout:   a.cfg.AI.ResponderTimeout,
		TopN:      a.cfg.Pipeline.KnowledgeTopN,
	}, a.log.Named("composer"))

	return chat.NewService(chat.Options{
		Repo:            a.repo,
		Tracker:         chat.NewSessionTracker(a.cfg.Pipeline.SessionWindow),
		Classifier:      classifier,
		Composer:        composer,
		Policy:          chat.NewEscalationPolicy(a.tables.EscalationKeywords),
		Notifier:        notifier,
		RecentWindow:    a.cfg.Pipeline.RecentWindow,
		DispatchTimeout: a.cfg.WhatsApp.Timeout,
		NotifyTimeout:   a.cfg.SMTP.Timeout,
		Log:             a.log.Named("pipeline"),
	}), nil
}

func (a *app) whatsApp() chat.WhatsAppSender {
	if !a.cfg.WhatsApp.Enabled() {
		a.log.Warn("WhatsApp credentials not set, webhook replies are not delivered")
		return nil
	}
	return whatsapp.NewClient(whatsapp.ClientConfig{
		BaseURL:       a.cfg.WhatsApp.BaseURL,
		APIVersion:    a.cfg.WhatsApp.APIVersion,
		PhoneNumberID: a.cfg.WhatsApp.PhoneNumberID,
		AccessToken:   a.cfg.WhatsApp.AccessToken,
		Timeout:       a.cfg.WhatsApp.Timeout,
	}, a.log.Named("whatsapp"))
}

// dedupStore is Redis backed when REDIS_URL is set so replicas share it.
func (a *app) dedupStore(ctx context.Context) (dedup.Store, error) {
	if a.cfg.Redis.URL == "" {
		return dedup.NewStore(dedup.StoreTypeMemory, dedup.WithTTL(a.cfg.Redis.DedupTTL))
	}

	opts, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return dedup.NewStore(dedup.StoreTypeRedis, dedup.WithRedisClient(client), dedup.WithTTL(a.cfg.Redis.DedupTTL))
}
