package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/flow"
)

// ValidateRegistry checks every registered class: the factory must return a
// new element each call, the element must report its registered class name,
// and its port count, processing and flow code declarations must parse.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, class := range r.Classes() {
		f := r.classes[class]
		e := f()
		if e == nil {
			errs = append(errs, fmt.Sprintf("class '%s': factory returned nil", class))
			continue
		}
		if got := e.Class(); got != class {
			errs = append(errs, fmt.Sprintf("class '%s': element reports class '%s'", class, got))
		}
		if e2 := f(); e2 == e {
			errs = append(errs, fmt.Sprintf("class '%s': factory must return a new element each call", class))
		}
		if pc, ok := e.(element.PortCounter); ok {
			if _, err := element.ParsePortCount(pc.PortCount()); err != nil {
				errs = append(errs, fmt.Sprintf("class '%s': bad port count: %v", class, err))
			}
		}
		if _, _, err := element.ParseProcessing(element.ProcessingCode(e), 1, 1); err != nil {
			errs = append(errs, fmt.Sprintf("class '%s': bad processing code: %v", class, err))
		}
		if fc, ok := e.(element.FlowCoder); ok {
			if _, err := flow.Parse(fc.FlowCode()); err != nil {
				errs = append(errs, fmt.Sprintf("class '%s': bad flow code: %v", class, err))
			}
		}
		if _, ok := e.(element.LiveConfigurer); ok {
			if _, ok := e.(element.LiveReconfigurer); !ok {
				logger.Warn("Class implements LiveReconfigure but never allows it.", "class", class)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validated.", "classes", len(r.classes))
	return nil
}
