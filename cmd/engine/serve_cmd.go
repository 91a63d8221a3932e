package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	core "synnergy-network/core"
	appconfig "synnergy-network/pkg/config"
)

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newServeCmd() *cobra.Command {
	var env, listen, dataDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP surface for genesis/upgrade/execute/commit/query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(env, listen, dataDir)
		},
	}
	cmd.Flags().StringVar(&env, "env", os.Getenv("SYNN_ENV"), "config environment overlay (dev, staging, prod)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides config")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "global state data directory, overrides config")
	return cmd
}

func runServe(env, listenOverride, dataDirOverride string) error {
	cfg, err := appconfig.Load(env)
	if err != nil {
		log.WithError(err).Warn("engine: config load failed, using defaults")
		cfg = &appconfig.Config{}
	}

	addr := cfg.Server.ListenAddr
	if listenOverride != "" {
		addr = listenOverride
	}
	if addr == "" {
		addr = "127.0.0.1:8090"
	}

	dir := cfg.Storage.DataDir
	if dataDirOverride != "" {
		dir = dataDirOverride
	}
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	gsCfg := core.GlobalStateConfigFromDir(dir)
	gsCfg.SnapshotInterval = cfg.Storage.SnapshotInterval
	gsCfg.PruneInterval = cfg.Storage.PruneInterval
	gsCfg.SnapshotCacheSize = cfg.Storage.SnapshotCacheSize

	gs, err := core.NewGlobalState(gsCfg)
	if err != nil {
		return err
	}
	defer gs.Close()

	trace, err := zap.NewProduction()
	if err != nil {
		trace = zap.NewNop()
	}
	defer trace.Sync()

	protocolVersion := core.NewProtocolVersion(cfg.Protocol.Major, cfg.Protocol.Minor, cfg.Protocol.Patch)
	engine := core.NewEngineService(gs, trace, protocolVersion)
	srv := &Server{engine: engine}

	rps := cfg.Server.RequestsPerSecond
	if rps <= 0 {
		rps = 200
	}
	burst := cfg.Server.Burst
	if burst <= 0 {
		burst = 100
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(rateLimit(limiter))
	r.Post("/genesis", srv.handleGenesis)
	r.Post("/upgrade", srv.handleUpgrade)
	r.Post("/execute", srv.handleExecute)
	r.Post("/commit", srv.handleCommit)
	r.Post("/query", srv.handleQuery)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("engine: listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
