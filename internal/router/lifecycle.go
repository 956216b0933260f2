package router

import (
	"context"
	"fmt"

	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
)

// Initialize brings the router up: it freezes ports, resolves disciplines,
// configures every element and then initializes them, both in configure
// phase order. All configuration errors are collected before giving up.
// The first initialization failure stops bring-up. On any failure every
// element is cleaned up in reverse order with the stage it reached, the
// router is left dead and the collected errors are returned. eh may be nil.
func (r *Router) Initialize(ctx context.Context, eh *errh.Handler) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StatePreinitialized)) {
		return ErrAlreadyInitialized
	}
	if eh == nil {
		eh = errh.New(r.logger)
	}
	logger := ctxlog.FromContext(ctx).With("router", r.id.String())
	r.publish(EventBuilt, "")

	stages := make([]element.CleanupStage, len(r.elements))
	for i := range stages {
		stages[i] = element.CleanupBeforeConfigure
	}

	r.preinitialize(eh)
	if eh.NErrors() > 0 {
		return r.abort(eh, stages, "router preinitialization failed")
	}
	logger.Debug("Router preinitialized.", "elements", len(r.elements), "connections", len(r.conns))

	r.setState(StateInitializing)
	r.ordered = r.configureOrder()
	for _, i := range r.ordered {
		if r.configureElement(i, eh) {
			stages[i] = element.CleanupConfigured
		} else {
			stages[i] = element.CleanupConfigureFailed
		}
	}
	if eh.NErrors() > 0 {
		return r.abort(eh, stages, "router configuration failed")
	}
	r.publish(EventConfigured, "")

	for _, i := range r.ordered {
		if !r.initializeElement(i, eh) {
			stages[i] = element.CleanupInitializeFailed
			return r.abort(eh, stages, "router initialization failed")
		}
		stages[i] = element.CleanupInitialized
	}

	r.addElementHandlers()
	r.setState(StateLive)
	logger.Info("Router initialized.", "elements", len(r.elements))
	r.publish(EventInitialized, "")
	return nil
}

// configureElement runs Configure on element i and reports whether it
// succeeded. Errors returned without being reported are reported here.
func (r *Router) configureElement(i int, eh *errh.Handler) bool {
	c, ok := r.elements[i].(element.Configurer)
	if !ok {
		return true
	}
	ceh := r.context(eh, i)
	before := ceh.NErrors()
	err := c.Configure(r.elements[i].BaseElement().Conf(), ceh)
	if err != nil {
		ceh.Report(err)
	}
	return err == nil && ceh.NErrors() == before
}

func (r *Router) initializeElement(i int, eh *errh.Handler) bool {
	in, ok := r.elements[i].(element.Initializer)
	if !ok {
		return true
	}
	ceh := r.context(eh, i)
	before := ceh.NErrors()
	err := in.Initialize(ceh)
	if err != nil {
		ceh.Report(err)
	}
	return err == nil && ceh.NErrors() == before
}

// abort cleans up every element in reverse configure order and marks the
// router dead.
func (r *Router) abort(eh *errh.Handler, stages []element.CleanupStage, summary string) error {
	order := r.ordered
	if order == nil {
		order = r.configureOrder()
	}
	r.cleanupElements(order, stages)
	r.setState(StateDead)
	r.publish(EventFailed, "")
	r.events.Close()
	return eh.Err(summary)
}

func (r *Router) cleanupElements(order []int, stages []element.CleanupStage) {
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		e := r.elements[i]
		for _, t := range e.BaseElement().Tasks() {
			t.Unschedule()
		}
		for _, t := range e.BaseElement().Timers() {
			t.Unschedule()
		}
		if c, ok := e.(element.Cleaner); ok {
			c.Cleanup(stages[i])
		}
	}
}

// Run drives the router until it is stopped, its driver decides to stop,
// or ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	if !r.Live() {
		return ErrNotRunning
	}
	ctx = ctxlog.With(ctx, "router", r.id.String())
	r.publish(EventRunning, "")
	err := r.master.Run(ctx)
	r.publish(EventStopped, "")
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop halts the driver. Run returns once every thread has observed it.
func (r *Router) Stop() { r.master.Stop() }

// Cleanup releases a live router's elements in reverse configure order.
// The driver must not be running.
func (r *Router) Cleanup() error {
	if r.master.Running() {
		return fmt.Errorf("cleanup: driver still running")
	}
	if !r.state.CompareAndSwap(int32(StateLive), int32(StateCleaned)) {
		return ErrNotRunning
	}
	stages := make([]element.CleanupStage, len(r.elements))
	for i := range stages {
		stages[i] = element.CleanupRouterInitialized
	}
	r.cleanupElements(r.ordered, stages)
	r.master.Timers().UnscheduleAll()
	r.logger.Debug("Router cleaned up.")
	r.publish(EventCleanedUp, "")
	r.events.Close()
	return nil
}

// TakeState transfers state from old, a stopped router being replaced.
// Every StateTaker element receives the element of old with the same name,
// or nothing when old has no such element.
func (r *Router) TakeState(old *Router, eh *errh.Handler) error {
	if !r.Live() {
		return ErrNotRunning
	}
	if old.master.Running() {
		return fmt.Errorf("take state: old driver still running")
	}
	if eh == nil {
		eh = errh.New(r.logger)
	}
	for _, i := range r.ordered {
		e := r.elements[i]
		st, ok := e.(element.StateTaker)
		if !ok {
			continue
		}
		prev, ok := old.ElementByName(e.BaseElement().Name())
		if !ok {
			continue
		}
		st.TakeState(prev, r.context(eh, i))
	}
	r.publish(EventHotswapped, "")
	return eh.Err("take state failed")
}
