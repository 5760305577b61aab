package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgard/pontebot/internal/config"
)

// keepAliveServer is a minimal HTTP server that answers liveness probes
// so hosting platforms do not put the bot to sleep.
type keepAliveServer struct {
	logger *slog.Logger
	server *http.Server
}

func newKeepAliveServer(logger *slog.Logger, cfg config.ServerConfig) *keepAliveServer {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Bot is alive!"))
	})

	return &keepAliveServer{
		logger: logger.With("component", "keepalive_server"),
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (k *keepAliveServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		k.logger.Info("Starting keep-alive HTTP server", "addr", k.server.Addr)
		if err := k.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := k.server.Shutdown(shutdownCtx); err != nil {
			k.logger.Error("Error shutting down keep-alive server", "error", err)
		}
		<-errCh
		k.logger.Info("Keep-alive HTTP server stopped.")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("keep-alive server failed: %w", err)
		}
		return nil
	}
}
