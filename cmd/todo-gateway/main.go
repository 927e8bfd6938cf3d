// Command todo-gateway serves the web frontend behind the route guard and
// proxies API calls to the remote todo service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-client/config"
	"todo-client/gateway"
	"todo-client/guard"
)

func main() {
	logger := config.NewLogger()

	cfg, err := config.LoadGateway()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	guardCfg := guard.DefaultConfig()
	guardCfg.ProtectedPrefixes = cfg.ProtectedPrefixes
	guardCfg.APIPrefix = cfg.APIPrefix
	guardCfg.SigninPath = cfg.SigninPath

	srv, err := gateway.New(gateway.Config{
		ListenAddr: cfg.ListenAddr,
		StaticDir:  cfg.StaticDir,
		Upstream:   cfg.Upstream,
		Guard:      guardCfg,
	}, logger)
	if err != nil {
		logger.Fatalf("gateway: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("serve: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(log.Fields{"error": err.Error()}).Error("gateway.shutdown_failed")
		}
	}
}
