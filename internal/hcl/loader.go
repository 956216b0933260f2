package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/5g-empower/empower-agent/internal/config"
	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and merges the results.
// Paths that do not exist are skipped.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no configuration files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}
	var diags hcl.Diagnostics
	for _, file := range files {
		f, pdiags := parser.ParseHCLFile(file)
		diags = append(diags, pdiags...)
		if pdiags.HasErrors() {
			continue
		}
		m, ddiags := l.decode(f)
		diags = append(diags, ddiags...)
		m.Text = string(f.Bytes)
		model.Merge(m)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to load configuration: %w", diags)
	}

	logger.Debug("HCL loading complete.", "elements", len(model.Elements), "connections", len(model.Connections), "requirements", len(model.Requirements))
	return model, nil
}

// LoadString parses src as a configuration named name.
func (l *Loader) LoadString(ctx context.Context, name, src string) (*config.Model, error) {
	ctxlog.FromContext(ctx).Debug("Parsing HCL configuration text.", "name", name, "bytes", len(src))
	f, diags := hclparse.NewParser().ParseHCL([]byte(src), name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", name, diags)
	}
	model, diags := l.decode(f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", name, diags)
	}
	model.Text = src
	return model, nil
}

// decode translates every top-level block of f. Diagnostics from all blocks
// are collected so that one pass reports every problem.
func (l *Loader) decode(f *hcl.File) (*config.Model, hcl.Diagnostics) {
	model := &config.Model{}
	content, diags := f.Body.Content(rootSchema)
	ectx := evalContext()
	for _, block := range content.Blocks {
		switch block.Type {
		case "require":
			var body requireBody
			diags = append(diags, gohcl.DecodeBody(block.Body, ectx, &body)...)
			model.Requirements = append(model.Requirements, &config.Requirement{
				Name:  block.Labels[0],
				Range: block.DefRange,
			})
		case "element":
			e, ediags := l.translateElement(block, ectx)
			diags = append(diags, ediags...)
			if e != nil {
				model.Elements = append(model.Elements, e)
			}
		case "connect":
			c, cdiags := l.translateConnection(block, ectx)
			diags = append(diags, cdiags...)
			if c != nil {
				model.Connections = append(model.Connections, c)
			}
		}
	}
	return model, diags
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
