package hcl

import (
	"fmt"
	"os"
	"strings"

	"github.com/5g-empower/empower-agent/internal/config"
	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/hookup"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// envFunc reads an environment variable, returning "" when unset.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "name", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":    envFunc,
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
		},
	}
}

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	return rng.End.Byte > rng.Start.Byte
}

func (l *Loader) translateElement(block *hcl.Block, ectx *hcl.EvalContext) (*config.Element, hcl.Diagnostics) {
	var body elementBody
	diags := gohcl.DecodeBody(block.Body, ectx, &body)
	if diags.HasErrors() {
		return nil, diags
	}
	e := &config.Element{
		Name:   block.Labels[0],
		Class:  body.Class,
		Thread: body.Thread,
		Range:  block.DefRange,
	}
	if isExprDefined(body.Config) {
		conf, cdiags := translateConfig(body.Config, ectx)
		diags = append(diags, cdiags...)
		e.Config = conf
	}
	return e, diags
}

// translateConfig turns a config attribute into an argument list. A string
// is split at top-level commas; a list contributes one argument per item.
func translateConfig(expr hcl.Expression, ectx *hcl.EvalContext) ([]string, hcl.Diagnostics) {
	val, diags := expr.Value(ectx)
	if diags.HasErrors() || val.IsNull() {
		return nil, diags
	}
	rng := expr.Range()
	ty := val.Type()
	switch {
	case ty == cty.String:
		return confparse.SplitArgs(val.AsString()), diags
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []string
		for it := val.ElementIterator(); it.Next(); {
			_, item := it.Element()
			s, err := convert.Convert(item, cty.String)
			if err != nil || s.IsNull() || !s.IsKnown() {
				return nil, append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid config argument",
					Detail:   fmt.Sprintf("Every config argument must be convertible to a string, got %s.", item.Type().FriendlyName()),
					Subject:  &rng,
				})
			}
			out = append(out, strings.TrimSpace(s.AsString()))
		}
		return out, diags
	default:
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid config",
			Detail:   fmt.Sprintf("config must be a string or a list of strings, got %s.", ty.FriendlyName()),
			Subject:  &rng,
		})
	}
}

func (l *Loader) translateConnection(block *hcl.Block, ectx *hcl.EvalContext) (*config.Connection, hcl.Diagnostics) {
	var body connectBody
	diags := gohcl.DecodeBody(block.Body, ectx, &body)
	if diags.HasErrors() {
		return nil, diags
	}
	from, err := hookup.Parse(body.From)
	if err != nil {
		return nil, append(diags, badHookup(block, "from", err))
	}
	to, err := hookup.Parse(body.To)
	if err != nil {
		return nil, append(diags, badHookup(block, "to", err))
	}
	// A bare name on either side means port 0.
	from.Port = from.PortOr(0)
	to.Port = to.PortOr(0)
	return &config.Connection{From: from, To: to, Range: block.DefRange}, diags
}

func badHookup(block *hcl.Block, attr string, err error) *hcl.Diagnostic {
	rng := block.DefRange
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid connection endpoint",
		Detail:   fmt.Sprintf("%s: %v", attr, err),
		Subject:  &rng,
	}
}
