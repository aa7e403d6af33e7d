package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zenibako/cueforge/config"
	"github.com/zenibako/cueforge/cuelist"
	"github.com/zenibako/cueforge/journal"
	"github.com/zenibako/cueforge/metrics"
	"github.com/zenibako/cueforge/remote"
	"golang.org/x/sync/errgroup"
)

// errQuit ends a show from the console without it being an error.
var errQuit = errors.New("quit")

// consoleFunc drives the manager until it returns.
type consoleFunc func(ctx context.Context, m *cuelist.Manager) error

func newRunCommand(ctx *commandContext) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run [workspace]",
		Short: "Run a show with the simulated engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := workspaceArg(cfg, args)
			if err != nil {
				log.Info("Starting with an empty workspace")
				path = ""
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var console consoleFunc
			if !headless && isTerminal(os.Stdin) && isTerminal(cmd.OutOrStdout()) {
				console = runConsole
			} else {
				log.Info("Running until interrupted")
			}
			return serveShow(signalCtx, cfg, path, console)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Do not start the interactive console")
	return cmd
}

// serveShow runs the engine, the manager sweep and every enabled service
// until ctx ends or the console returns.
func serveShow(ctx context.Context, cfg *config.Config, path string, console consoleFunc) error {
	engine := newEngine(cfg)
	m := cuelist.New(engine, cuelist.WithSweepInterval(cfg.ReconcileInterval()))
	defer m.Close()

	if path != "" {
		if err := m.OpenWorkspace(path); err != nil {
			return err
		}
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		defer j.Attach(m)()
		log.Info("Journal enabled", "path", j.Path())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return m.Run(gctx) })

	if cfg.Remote.Enabled {
		srv, err := remote.New(m, remote.Options{
			Addr:        cfg.Remote.Listen,
			WorkspaceID: cfg.Remote.WorkspaceID,
			Feedback:    cfg.Remote.Feedback,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	if cfg.Metrics.Enabled {
		met := metrics.New()
		defer met.Attach(m)()
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		httpSrv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("Metrics listening", "addr", cfg.Metrics.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if console != nil {
		g.Go(func() error { return console(gctx, m) })
	}

	err := g.Wait()
	if m.HasUnsavedChanges() {
		log.Warn("Show ended with unsaved changes", "workspace", m.WorkspaceTitle())
	}
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}
