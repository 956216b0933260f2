package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/dustin/go-humanize"
)

var errSwapAbandoned = errors.New("hot swap abandoned: router stopped")

// Run drives the installed router until its driver stops or ctx is
// cancelled. A hot swap requested meanwhile replaces the router and the
// loop continues with the new one. Afterwards the configured handlers are
// read and printed, and the router is cleaned up.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.HTTPPort > 0 {
		if err := a.startServer(a.cfg.HTTPPort); err != nil {
			return err
		}
		defer a.stopServer()
	}

	a.mu.Lock()
	r := a.router
	a.running = true
	a.mu.Unlock()

	start := time.Now()
	var sweeps uint64
	var runErr error
	for {
		a.logger.Info("Router running.", "router", r.ID().String(), "threads", r.Master().NThreads())
		runErr = r.Run(ctx)
		sweeps += r.Master().Sweeps()

		a.mu.Lock()
		sw := a.pending
		a.pending = nil
		if sw == nil || runErr != nil || ctx.Err() != nil {
			a.running = false
			a.stopped = true
			a.mu.Unlock()
			if sw != nil {
				if err := sw.next.Cleanup(); err != nil {
					a.logger.Debug("Abandoned router cleanup.", "error", err)
				}
				sw.done <- errSwapAbandoned
			}
			break
		}
		a.router = sw.next
		a.mu.Unlock()

		sw.done <- a.finishSwap(r, sw.next)
		r = sw.next
	}
	elapsed := time.Since(start)
	a.logger.Info("Router stopped.", "router", r.ID().String(), "elapsed", elapsed.String())

	if a.cfg.Time {
		fmt.Fprintf(a.outW, "%s elapsed, %s sweeps\n",
			elapsed.Round(time.Microsecond), humanize.Comma(int64(sweeps)))
	}
	hErr := a.printHandlers()

	if err := r.Cleanup(); err != nil {
		a.logger.Debug("Router cleanup.", "error", err)
	}
	a.logger.Debug("App.Run method finished.")
	if runErr != nil {
		return fmt.Errorf("router stopped: %w", runErr)
	}
	return hErr
}

// printHandlers reads every handler named with -h and writes it to outW.
func (a *App) printHandlers() error {
	r := a.Router()
	var errs []error
	for _, ref := range a.cfg.Handlers {
		v, err := r.CallRead(ref, nil)
		if err != nil {
			a.logger.Error("Handler read failed.", "handler", ref, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		if v != "" && !strings.HasSuffix(v, "\n") {
			v += "\n"
		}
		fmt.Fprintf(a.outW, "%s:\n%s", ref, v)
	}
	return errors.Join(errs...)
}
