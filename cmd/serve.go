package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
	"github.com/Vovarama1992/faq-bot-bridge/internal/logging"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.seed(ctx); err != nil {
		return err
	}

	operator := a.operator()
	svc, err := a.service(operator)
	if err != nil {
		return err
	}

	seen, err := a.dedupStore(ctx)
	if err != nil {
		return err
	}
	defer seen.Close()

	wa := a.whatsApp()
	handler := chat.NewHandler(chat.HandlerOptions{
		Service:     svc,
		Store:       a.repo,
		Analytics:   a.repo,
		WhatsApp:    wa,
		VerifyToken: a.cfg.WhatsApp.VerifyToken,
		Dedup:       seen,
		Features: map[string]bool{
			"ai":       a.cfg.AI.Enabled(),
			"whatsapp": wa != nil,
			"email":    a.cfg.SMTP.Enabled(),
			"redis":    a.cfg.Redis.URL != "",
		},
		Log: a.log.Named("http"),
	})

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Requests(a.log.Named("access")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	chat.RegisterRoutes(r, handler)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.scheduler(operator).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	svc.Wait()
	a.log.Info("stopped")
	return err
}
