package registry

import (
	"context"

	"github.com/5g-empower/empower-agent/internal/config"
	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/router"
)

// Build creates an uninitialized router from model. Every problem in the
// model is reported through eh before Build gives up, so one call lists
// all of them.
func (r *Registry) Build(ctx context.Context, model *config.Model, cfg router.Config, eh *errh.Handler) (*router.Router, error) {
	logger := ctxlog.FromContext(ctx)

	model.Validate(eh)
	for _, req := range model.Requirements {
		if !r.Provides(req.Name) {
			rng := req.Range
			eh.WithRange("require", &rng).Error("unknown requirement %q", req.Name)
		}
	}
	for _, e := range model.Elements {
		if _, ok := r.classes[e.Class]; !ok && e.Class != "" {
			rng := e.Range
			eh.WithRange(e.Name, &rng).Error("unknown element class %q", e.Class)
		}
	}
	if eh.NErrors() > 0 {
		return nil, eh.Err("invalid configuration")
	}

	cfg.Text = model.Text
	cfg.Classes = r.Classes()
	rt := router.New(cfg)
	for _, req := range model.Requirements {
		rt.AddRequirement(req.Name)
	}

	nthreads := rt.Master().NThreads()
	for _, decl := range model.Elements {
		rng := decl.Range
		deh := eh.WithRange(decl.Name, &rng)
		e := r.classes[decl.Class]()
		if _, err := rt.AddElement(e, decl.Name, decl.Config, config.Landmark(decl.Range)); err != nil {
			_ = deh.Report(err)
			continue
		}
		if decl.Thread != nil {
			if t := *decl.Thread; t < 0 || t >= nthreads {
				deh.Error("thread %d out of range, the router has %d threads", t, nthreads)
			} else {
				e.BaseElement().SetHomeThread(t)
			}
		}
	}
	for _, c := range model.Connections {
		rng := c.Range
		if err := rt.Connect(c.From.Name, c.From.PortOr(0), c.To.Name, c.To.PortOr(0)); err != nil {
			_ = eh.WithRange("connect "+c.From.String()+" -> "+c.To.String(), &rng).Report(err)
		}
	}
	if eh.NErrors() > 0 {
		return nil, eh.Err("invalid configuration")
	}

	logger.Debug("Router built.", "router", rt.ID().String(), "elements", len(model.Elements), "connections", len(model.Connections))
	return rt, nil
}
