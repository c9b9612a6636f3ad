package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sova-tungnv/web-ai/internal/app"
	"github.com/sova-tungnv/web-ai/internal/config"
	"github.com/sova-tungnv/web-ai/internal/detector"
	"github.com/sova-tungnv/web-ai/internal/hook"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/metrics"
	"github.com/sova-tungnv/web-ai/internal/server"
	"github.com/sova-tungnv/web-ai/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the camera session and the web UI",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	log := logger.For("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
	}

	loader, err := newLoader(cfg.MediaPipe)
	if err != nil {
		return err
	}

	m := metrics.New()
	events := server.NewEventHub()

	opts := []app.Option{
		app.WithLoader(loader),
		app.WithMetrics(m),
		app.WithSink(events),
		app.WithFaceListener(events.Tracker("face")),
		app.WithReporter(events),
	}
	if st != nil {
		opts = append(opts, app.WithStore(st))
	}

	hooks := hook.NewManager(cfg.Hooks.Dir)
	if err := hooks.Discover(); err != nil {
		return fmt.Errorf("failed to discover hooks: %w", err)
	}
	var dispatcher *hook.Dispatcher
	if len(hooks.List()) > 0 {
		dispatcher = hook.NewDispatcher(hooks, hook.NewExecutor(cfg.Hooks.Timeout))
		opts = append(opts, app.WithSink(dispatcher))
	}
	a, err := app.New(app.Config{
		Camera:      cfg.Camera,
		Activity:    cfg.Activity,
		Watchdog:    cfg.Watchdog,
		Hand:        cfg.Hand,
		FaceEnabled: cfg.FaceEnabled,
		Face:        cfg.Face,
		Gesture:     cfg.Gesture,
	}, opts...)
	if err != nil {
		return err
	}

	webDir := cfg.Server.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Registry:  a.Registry(),
		Events:    events,
		Metrics:   m,
		Status:    func() any { return a.Status() },
		Session:   a,
	})

	// A camera failure leaves the UI up; the error is visible in /api/status.
	if err := a.Start(ctx); err != nil {
		log.Error("session not started", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Addr)
	})
	if dispatcher != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		a.Stop()
		return nil
	})
	g.Go(func() error {
		if err := a.Wait(); err != nil && gctx.Err() == nil {
			log.Error("session ended", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func newLoader(cfg config.MediaPipe) (detector.Loader, error) {
	if cfg.Mock {
		return detector.NewMockDetector().Loader(), nil
	}
	loader, err := detector.MediaPipeLoader(detector.MediaPipeOptions{
		ScriptPath: cfg.Script,
		Python:     cfg.Python,
	})
	if err != nil {
		return nil, fmt.Errorf("mediapipe: %w (set mediapipe.mock to run without it)", err)
	}
	return loader, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handpipe/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dir := config.DataDir()
	if dir == "" {
		return ""
	}
	homeWebDir := filepath.Join(dir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
