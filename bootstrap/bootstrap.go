// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/metergate/adapters/clock"
	"github.com/artpar/metergate/adapters/jsonfile"
	"github.com/artpar/metergate/adapters/metrics"
	"github.com/artpar/metergate/adapters/sqlite"
	"github.com/artpar/metergate/app"
	"github.com/artpar/metergate/config"
	"github.com/artpar/metergate/ports"
	"github.com/artpar/metergate/web"
)

// Options configures application startup.
type Options struct {
	// ConfigPath is the YAML config file. When empty or missing,
	// configuration comes from METERGATE_* environment variables.
	ConfigPath string

	// HotReload watches the config file and listens for SIGHUP.
	HotReload bool
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	Engine     *app.Engine
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	db *sqlite.DB // nil for the json daily driver
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	holder, cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing metergate")

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	store, err := a.openDailyStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open daily store: %w", err)
	}

	a.Engine = app.NewEngine(app.Config{
		Background:      cfg.Stats.Mode != "sync",
		BatchInterval:   cfg.Stats.BatchInterval,
		FlushInterval:   cfg.Stats.FlushInterval,
		CleanupInterval: cfg.Stats.CleanupInterval,
		QueueCapacity:   cfg.Stats.QueueCapacity,
		RecentCapacity:  cfg.Stats.RecentCalls,
		DailyLimit:      cfg.Stats.DailyLimit,
		RetentionDays:   cfg.Stats.RetentionDays,
		SeriesRetention: cfg.Stats.SeriesRetention,
	}, store, clock.Real{}, logger, a.Metrics)

	if holder != nil {
		holder.OnChange(func(newCfg *config.Config) {
			a.Engine.SetDailyLimit(newCfg.Stats.DailyLimit)
		})
		if opts.HotReload {
			if err := holder.WatchFile(); err != nil {
				logger.Warn().Err(err).Msg("config file watch unavailable")
			}
			holder.WatchSignals()
		}
	}

	a.initHTTPServer(cfg)

	return a, nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	if a.Holder != nil {
		return a.Holder.Get()
	}
	return nil
}

func loadConfig(path string) (*config.Holder, *config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			h, err := config.NewHolder(path, zerolog.New(os.Stdout).With().Timestamp().Logger())
			if err != nil {
				return nil, nil, err
			}
			return h, h.Get(), nil
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	return nil, cfg, nil
}

func (a *App) openDailyStore(cfg *config.Config) (ports.DailySnapshotStore, error) {
	switch cfg.Daily.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Daily.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.Logger.Info().Str("path", cfg.Daily.Path).Msg("daily rollups in sqlite")
		return sqlite.NewDailyStore(db), nil
	default:
		a.Logger.Info().Str("path", cfg.Daily.Path).Msg("daily rollups in json snapshot")
		return jsonfile.NewDailyStore(cfg.Daily.Path), nil
	}
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := web.NewHandler(web.Deps{
		Meter:  a.Engine,
		Logger: a.Logger,
		AuthKey: func() string {
			if c := a.Config(); c != nil {
				return c.Auth.Key
			}
			return cfg.Auth.Key
		},
		Models: func() ([]string, []string) {
			if c := a.Config(); c != nil {
				return c.Models.Standard, c.Models.Express
			}
			return cfg.Models.Standard, cfg.Models.Express
		},
	})

	r := chi.NewRouter()
	r.Mount("/", handler.Router())
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. The engine is closed
// after the server so in-flight requests can still record usage; Close
// drains the queue and flushes daily rollups before returning.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("engine close error")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
