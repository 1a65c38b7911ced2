package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/specialistvlad/babago/internal/bundle"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/engine"
	"github.com/specialistvlad/babago/internal/fetch"
	"github.com/specialistvlad/babago/internal/jshost"
	"github.com/specialistvlad/babago/internal/manifest"
	"github.com/specialistvlad/babago/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	ctx        context.Context
	config     *Config
	registry   *registry.Registry
	httpServer *http.Server
	closers    []io.Closer
}

// NewApp is the constructor for the main application. Rendered output goes to
// outW and logs to logW. Failing to load templates is a fatal startup error
// and panics.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(engine.New(jshost.New()), registry.WithConcurrency(cfg.Concurrency))
	a := &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		registry: reg,
	}

	var m *manifest.Manifest
	if cfg.TemplatesPath != "" {
		var err error
		m, err = reg.LoadManifests(ctx, cfg.TemplatesPath)
		if err != nil {
			panic(fmt.Errorf("failed to load templates: %w", err))
		}
	}

	if cfg.BundlePath != "" {
		if err := a.loadBundle(cfg.BundlePath); err != nil {
			panic(fmt.Errorf("failed to load bundle: %w", err))
		}
	}

	if f := a.newFetcher(m); f != nil {
		reg.SetFetcher(f)
	}

	logger.Debug("App initialised.", "templates", len(reg.Names()))
	return a
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases resources held by the app.
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	a.closers = nil
	return nil
}

// newFetcher picks the fetch source: the BaseURL setting first, then the
// manifests' fetch block.
func (a *App) newFetcher(m *manifest.Manifest) fetch.Fetcher {
	if a.config.BaseURL != "" {
		a.logger.Debug("Fetching missing resources over HTTP.", "base_url", a.config.BaseURL)
		f := fetch.NewHTTPFetcher(a.config.BaseURL, manifest.DefaultExtension, a.httpOptions()...)
		a.closers = append(a.closers, f)
		return f
	}
	if m == nil || m.Fetch == nil {
		return nil
	}
	if m.Fetch.BaseURL != "" {
		a.logger.Debug("Fetching missing resources over HTTP.", "base_url", m.Fetch.BaseURL)
		f := fetch.NewHTTPFetcher(m.Fetch.BaseURL, m.Fetch.Extension, a.httpOptions()...)
		a.closers = append(a.closers, f)
		return f
	}
	a.logger.Debug("Fetching missing resources from disk.", "dir", m.Fetch.Dir)
	return &fetch.FileFetcher{Root: m.Fetch.Dir, Ext: m.Fetch.Extension}
}

func (a *App) httpOptions() []fetch.HTTPOption {
	if a.config.FetchTimeout > 0 {
		return []fetch.HTTPOption{fetch.WithTimeout(a.config.FetchTimeout)}
	}
	return nil
}

func (a *App) loadBundle(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	templates, err := bundle.Read(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for name, tpl := range templates {
		a.registry.AddCompiled(name, tpl)
	}
	a.logger.Info("Bundle loaded.", "path", path, "templates", len(templates))
	return nil
}

func (a *App) writeBundle(path string) error {
	templates := a.registry.Templates()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bundle.Write(f, templates); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("Bundle written.", "path", path, "templates", len(templates))
	return nil
}
