package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/pulse-chat/backend/internal/config"
	"github.com/zhouzirui/pulse-chat/backend/internal/format"
	"github.com/zhouzirui/pulse-chat/backend/internal/handler"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Fatalf("failed to initialise logger: %v", err)
	}
	if envErr != nil {
		logger.Warnf("failed to load .env file: %v, continuing with system environment variables only", envErr)
	}

	client := analytics.NewClient(cfg.Analytics.BaseURL, analytics.NewHTTPClient(cfg.Analytics.HTTPTimeout))
	logger.Infof("analytics backend: %s", client.BaseURL())

	workspaces := workspace.NewService(client, chat.Options{RequestTimeout: cfg.Analytics.RequestTimeout})
	defer workspaces.Close()

	router := handler.NewRouter(handler.Dependencies{
		Accounts:           client,
		Workspaces:         workspaces,
		FAQs:               faq.NewCatalog(faq.Seed()),
		Renderer:           format.NewRenderer(),
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		LoginRatePerMinute: cfg.Server.LoginRatePerMinute,
		CookieSecure:       cfg.Server.CookieSecure,
		TrustProxy:         cfg.Server.TrustProxy,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Infof("Pulse chat gateway listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
