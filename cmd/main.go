package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/efast/internal/adapters/http/api"
	"github.com/okian/efast/internal/adapters/http/live"
	"github.com/okian/efast/internal/adapters/http/site"
	"github.com/okian/efast/internal/adapters/render"
	"github.com/okian/efast/internal/adapters/repository"
	app "github.com/okian/efast/internal/app"
	"github.com/okian/efast/internal/config"
	"github.com/okian/efast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// We collect our own runtime metrics on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Logs go to stderr; stdout carries the run summary.
	if err := logger.InitWithWriter(os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString("efast: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// cliFlags override the matching configuration keys.
type cliFlags struct {
	input  string
	format string
	serve  bool
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("efast", flag.ContinueOnError)
	fs.StringVar(&f.input, "input", "", "event stream to replay (overrides EFAST_INPUT)")
	fs.StringVar(&f.format, "format", "", "input format: cbor or text (overrides EFAST_INPUT_FORMAT)")
	fs.BoolVar(&f.serve, "serve", false, "keep the HTTP server up after the replay finishes")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.input == "" && fs.NArg() > 0 {
		f.input = fs.Arg(0)
	}
	return f, nil
}

// run loads configuration, wires the outputs and replays the input once.
// The run summary is written to stdout as JSON.
func run(ctx context.Context, args []string, stdout io.Writer) error { //nolint:funlen,gocyclo // top-level wiring
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Load configuration (defaults -> optional file -> env), then flags.
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if flags.input != "" {
		cfg.Input = flags.input
	}
	if flags.format != "" {
		cfg.InputFormat = flags.format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.LogFormat == logger.FormatJSON {
		if err := logger.InitWithFormat(os.Stderr, cfg.LogFormat); err != nil {
			return err
		}
	}

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithSensor(cfg.SensorWidth, cfg.SensorHeight),
		app.WithMaxScale(cfg.MaxScale),
		app.WithInput(cfg.Input, cfg.InputFormat),
		app.WithTextPacketSize(cfg.TextPacketSize),
		app.WithQueueSize(cfg.QueueSize),
		app.WithFeatureSetSize(cfg.FeatureSetSize),
		app.WithMetricsInterval(cfg.MetricsInterval),
	}

	var store *repository.SQLiteStore
	if cfg.FeatureLog != "" {
		store, err = repository.OpenSQLite(ctx, cfg.FeatureLog, repository.WithLogger(log.Named("repository")))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error(ctx, "closing feature log", logger.Error(err))
			}
		}()
		opts = append(opts, app.WithStore(store))
	}

	if cfg.TextLog != "" {
		// The text log closes the file when the run ends.
		f, err := os.Create(cfg.TextLog)
		if err != nil {
			return fmt.Errorf("create text log: %w", err)
		}
		opts = append(opts, app.WithTextLog(f))
	}

	var frameHandlers []render.FrameHandler
	if cfg.FrameDir != "" {
		dw, err := render.NewDirWriter(cfg.FrameDir)
		if err != nil {
			return err
		}
		frameHandlers = append(frameHandlers, dw)
	}

	var hub *live.Hub
	if cfg.Live {
		hub = live.NewHub(cfg.SensorWidth, cfg.SensorHeight, live.WithLogger(log.Named("live")))
		frameHandlers = append(frameHandlers, hub)
		opts = append(opts, app.WithSinks(hub))
	}
	if len(frameHandlers) > 0 {
		opts = append(opts, app.WithFrames(cfg.FrameIntervalUS, cfg.MarkRadius, frameHandlers...))
	}

	svc := app.New(opts...)

	if hub != nil {
		// The hub serves the active set on snapshot requests.
		hub.SetActiveSet(svc.ActiveSet())
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go hub.Run(hubCtx)
	}

	var srv *http.Server
	if cfg.Addr != "" {
		srv, err = startHTTP(ctx, cfg.Addr, svc, store, hub)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
		}()
	}

	sum, runErr := svc.Run(ctx)
	if runErr != nil && !(errors.Is(runErr, context.Canceled) && ctx.Err() != nil) {
		return runErr
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if flags.serve && srv != nil && ctx.Err() == nil {
		log.Info(ctx, "replay finished; serving until interrupted", logger.String("addr", srv.Addr))
		<-ctx.Done()
	}
	return nil
}

// startHTTP binds addr and serves the API in the background.
func startHTTP(ctx context.Context, addr string, svc *app.Service, store *repository.SQLiteStore, hub *live.Hub) (*http.Server, error) {
	apiOpts := []api.Option{api.WithActiveSet(svc.ActiveSet())}
	if store != nil {
		apiOpts = append(apiOpts, api.WithRuns(store))
	}
	if hub != nil {
		apiOpts = append(apiOpts, api.WithLive(hub))
	}

	mux := http.NewServeMux()
	api.NewServer(svc, apiOpts...).Register(mux)
	if err := site.Register(mux); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log := logger.Get()
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()
	return srv, nil
}
