package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doacao112-dotcom/Freefire/internal/attribution"
	"github.com/doacao112-dotcom/Freefire/internal/config"
	httpd "github.com/doacao112-dotcom/Freefire/internal/delivery/http"
	"github.com/doacao112-dotcom/Freefire/internal/gateway"
	"github.com/doacao112-dotcom/Freefire/internal/store"
	"github.com/doacao112-dotcom/Freefire/internal/usecase"
)

func secretPreview(secret string) string {
	if secret == "" {
		return "unset"
	}
	if len(secret) > 10 {
		secret = secret[:10]
	}
	return secret + "..."
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gw := gateway.NewClient(cfg.SkalePayBaseURL, cfg.SkalePaySecret, cfg.CallbackURL)
	reporter := attribution.NewReporter(cfg.UTMifyBaseURL, cfg.UTMifyAPIToken)
	uc := usecase.NewDonationUsecase(store.NewMemoryStore(), gw, reporter)
	h := httpd.NewHandler(uc, secretPreview(cfg.SkalePaySecret))

	srv := &http.Server{
		Addr: ":" + cfg.AppPort,
		Handler: h.Routes(cfg.CORSOrigins, httpd.SigConfig{
			Secret:        cfg.WebhookHMACSecret,
			MaxAgeSeconds: cfg.SigMaxAgeSeconds,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server listening", "addr", srv.Addr, "callback_url", cfg.CallbackURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}

	// drain detached attribution reports before exit
	uc.Wait()
}
