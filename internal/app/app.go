package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"sync"

	"github.com/5g-empower/empower-agent/internal/config"
	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/metrics"
	"github.com/5g-empower/empower-agent/internal/registry"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version is reported by the global "version" handler.
var Version = "0.1.0"

// swap is a hot swap waiting for the running router to stop.
type swap struct {
	next *router.Router
	done chan error
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	registry *registry.Registry
	loader   config.Loader

	mu      sync.Mutex
	router  *router.Router
	running bool
	// stopped is set once Run has returned; the router is cleaned up then.
	stopped bool
	pending *swap
	// swapMu serializes hot swaps.
	swapMu sync.Mutex

	promReg    *prometheus.Registry
	collector  *metrics.Collector
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads the router
// configuration, builds the router and brings it up. Configuration problems
// are returned with every collected message.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.ValidateRegistry(ctx); err != nil {
		// A module whose classes do not hold together is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		loader:   loader,
		promReg:  prometheus.NewRegistry(),
	}
	a.collector = metrics.NewCollector(a.Router)
	a.promReg.MustRegister(a.collector, collectors.NewGoCollector())

	model, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.", "elements", len(model.Elements), "connections", len(model.Connections))

	r, err := a.bringUp(ctx, model)
	if err != nil {
		return nil, err
	}
	a.router = r
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }

// Router returns the installed router.
func (a *App) Router() *router.Router {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.router
}

func (a *App) routerConfig() router.Config {
	return router.Config{
		Threads:  a.cfg.Threads,
		Stride:   a.cfg.Stride,
		MaxDepth: a.cfg.MaxDepth,
		Logger:   a.logger,
		Version:  Version,
	}
}

// bringUp builds and initializes a router from model. On failure nothing
// is left running and the error lists every problem found.
func (a *App) bringUp(ctx context.Context, model *config.Model) (*router.Router, error) {
	eh := errh.New(a.logger)
	r, err := a.registry.Build(ctx, model, a.routerConfig(), eh)
	if err != nil {
		return nil, err
	}
	if err := r.Subscribe(newEventSink(a.logger)); err != nil {
		a.logger.Warn("Lifecycle events will not be logged.", "error", err)
	}
	if err := r.Initialize(ctx, eh); err != nil {
		return nil, err
	}
	return r, nil
}

// ErrAppStopped is returned by Hotswap once Run has returned.
var ErrAppStopped = errors.New("app stopped: no router to replace")

// Hotswap builds a router from src and replaces the installed one with it.
// The old router keeps running untouched when the new configuration fails
// to come up. State moves from old elements to new ones by name; a state
// transfer error is returned but does not undo the swap, since the old
// router has already been stopped and drained.
func (a *App) Hotswap(ctx context.Context, name, src string) error {
	a.swapMu.Lock()
	defer a.swapMu.Unlock()
	logger := ctxlog.FromContext(ctx)

	if a.isStopped() {
		return ErrAppStopped
	}
	model, err := a.loader.LoadString(ctx, name, src)
	if err != nil {
		return err
	}
	next, err := a.bringUp(ctx, model)
	if err != nil {
		logger.Warn("Hot swap rejected, keeping the running router.", "error", err)
		return err
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		if cerr := next.Cleanup(); cerr != nil {
			logger.Debug("Rejected router cleanup.", "error", cerr)
		}
		return ErrAppStopped
	}
	old := a.router
	if !a.running {
		a.router = next
		a.mu.Unlock()
		return a.finishSwap(old, next)
	}
	sw := &swap{next: next, done: make(chan error, 1)}
	a.pending = sw
	a.mu.Unlock()

	old.Stop()
	select {
	case err := <-sw.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// finishSwap moves state from the stopped old router into next and
// releases old.
func (a *App) finishSwap(old, next *router.Router) error {
	for old.Master().Running() {
		runtime.Gosched()
	}
	err := next.TakeState(old, errh.New(a.logger))
	if cerr := old.Cleanup(); cerr != nil {
		a.logger.Debug("Old router cleanup.", "error", cerr)
	}
	a.collector.Hotswapped()
	a.logger.Info("Router hot swapped.", "old", old.ID().String(), "new", next.ID().String())
	if err != nil {
		return fmt.Errorf("hot swap: %w", err)
	}
	return nil
}
