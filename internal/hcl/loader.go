// Package hcl is the HCL implementation of the config.Loader interface. It
// discovers .hcl files under the given paths, decodes the report, state,
// plotdef, and tab blocks from any file, and merges them into the
// format-agnostic model.
package hcl

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/detsumm/internal/config"
	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the HCL configuration loading process. It is agnostic to
// the origin of the paths and parses any known block from any file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl configuration files found under %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := &config.Model{
		PlotDefs: make(map[string]*config.PlotDef),
	}
	haveReport := false

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.Report != nil {
			if haveReport {
				return nil, fmt.Errorf("duplicate report block in %s", file)
			}
			haveReport = true
			model.Report = config.Report{
				Title:  root.Report.Title,
				Start:  root.Report.Start,
				End:    root.Report.End,
				Output: root.Report.Output,
			}
		}
		for _, s := range root.States {
			model.States = append(model.States, &config.StateDef{
				Name:       s.Name,
				Definition: s.Definition,
			})
		}
		for _, pd := range root.PlotDefs {
			def, err := translatePlotDef(pd)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			if _, ok := model.PlotDefs[def.Name]; ok {
				return nil, fmt.Errorf("duplicate plotdef %q in %s", def.Name, file)
			}
			model.PlotDefs[def.Name] = def
		}
		for _, t := range root.Tabs {
			section, err := translateTab(t)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			model.Tabs = append(model.Tabs, section)
		}
	}

	if !haveReport {
		return nil, fmt.Errorf("no report block found in %d configuration files", len(files))
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.",
		"states", len(model.States), "plotdefs", len(model.PlotDefs), "tabs", len(model.Tabs))
	return model, nil
}

func translatePlotDef(pd *plotdefBlock) (*config.PlotDef, error) {
	sources := splitSources(pd.Channels)
	if flags := splitSources(pd.Flags); len(flags) > 0 {
		if len(sources) > 0 {
			return nil, fmt.Errorf("plotdef %q sets both channels and flags", pd.Name)
		}
		sources = flags
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("plotdef %q has no channels or flags", pd.Name)
	}
	return &config.PlotDef{Name: pd.Name, Type: pd.Type, Sources: sources}, nil
}

func translateTab(t *tabBlock) (*config.TabSection, error) {
	section := &config.TabSection{
		Name:    t.Name,
		Parent:  t.Parent,
		States:  t.States,
		Options: make(map[string]string),
	}
	if t.Subplot != nil {
		section.Subplot = &config.SubplotSpec{
			Source:   t.Subplot.Source,
			Duration: t.Subplot.Duration,
		}
	}
	seen := make(map[int]bool, len(t.Entries))
	for _, e := range t.Entries {
		idx, err := strconv.Atoi(e.Index)
		if err != nil {
			return nil, fmt.Errorf("tab %q: entry label %q is not an integer", t.Name, e.Index)
		}
		if seen[idx] {
			return nil, fmt.Errorf("tab %q: duplicate entry index %d", t.Name, idx)
		}
		seen[idx] = true
		section.Entries = append(section.Entries, config.Entry{
			Index:      idx,
			Definition: e.Definition,
		})
		for name, raw := range e.Options {
			section.Options[fmt.Sprintf("%d-%s", idx, name)] = raw
		}
	}
	sort.Slice(section.Entries, func(i, j int) bool {
		return section.Entries[i].Index < section.Entries[j].Index
	})
	return section, nil
}

func splitSources(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
