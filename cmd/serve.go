package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/api"
	"github.com/fleetmarket/vinfill/internal/draft"
	"github.com/fleetmarket/vinfill/internal/store"
)

var servePort int

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listing wizard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDecoder(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		drafts, err := draft.NewManager(cfg.Drafts.Max, env.Decoder, cfg.Drafts.DecodeTimeout())
		if err != nil {
			return err
		}
		defer drafts.Close()

		opts := []api.Option{api.WithCORSOrigins(cfg.Server.CORSOrigins)}
		if env.Store != nil {
			opts = append(opts, api.WithPinger(env.Store))
			go pruneLoop(ctx, env.Store, pruneInterval)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.New(drafts, env.Decoder, opts...).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// pruneLoop deletes expired cached decodes until ctx ends.
func pruneLoop(ctx context.Context, st store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpired(ctx)
			if err != nil {
				zap.L().Warn("prune expired decodes", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("pruned expired decodes", zap.Int("deleted", n))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
