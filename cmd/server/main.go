package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/config"
	"github.com/DoyleJ11/otrio-backend/internal/httpapi"
	"github.com/DoyleJ11/otrio-backend/internal/logging"
	"github.com/DoyleJ11/otrio-backend/internal/registry"
	"github.com/DoyleJ11/otrio-backend/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load(nil)

	logger, err := logging.New(cfg.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	reg := registry.New(ctx, cfg, logger)
	dispatcher := session.New(reg, logger, cfg.MaxInvalidMessages)
	handler := httpapi.SetupRoutes(reg, dispatcher, logger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(serveErr))
		}
	}()

	// gelmium/graceful-shutdown runs each named operation on SIGINT/SIGTERM
	// and returns the process exit code once every one has finished or the
	// timeout elapses.
	wait := gfshutdown.GracefulShutdown(
		ctx,
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"registry": func(ctx context.Context) error {
				reg.Shutdown()
				return reg.Wait()
			},
		},
	)

	exitCode := <-wait
	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
