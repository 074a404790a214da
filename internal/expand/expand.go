// Package expand turns the declarative configuration model into the report's
// tab tree and its concrete render jobs: one job per (definition, state)
// pair, plus derived sub-interval jobs.
package expand

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/detsumm/internal/config"
	"github.com/vk/detsumm/internal/literal"
	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
	"github.com/vk/detsumm/internal/tab"
)

// ConfigError reports an unresolvable category or malformed entry. It is
// fatal and always raised before any job executes.
type ConfigError struct {
	Tab string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Tab == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: tab %q: %v", e.Tab, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Expander builds tabs and jobs from one loaded model. State instances are
// shared across tabs by name, so each resolves at most once per run.
type Expander struct {
	env    *plot.Env
	defs   map[string]*config.PlotDef
	states map[string]*state.State
	order  []*state.State
	all    *state.State
	window segments.Span
}

// New prepares an expander over the model's analysis window.
func New(env *plot.Env, model *config.Model) *Expander {
	window := segments.NewSpan(model.Report.Start, model.Report.End)
	e := &Expander{
		env:    env,
		defs:   model.PlotDefs,
		states: make(map[string]*state.State, len(model.States)),
		all:    state.NewAll(),
		window: window,
	}
	e.order = append(e.order, e.all)
	for _, def := range model.States {
		s := state.New(def.Name, def.Definition)
		e.states[def.Name] = s
		e.order = append(e.order, s)
	}
	return e
}

// States returns the run's distinct states, the all-data state first, then
// definition order.
func (e *Expander) States() []*state.State { return e.order }

// All returns the reserved all-data state.
func (e *Expander) All() *state.State { return e.all }

// Window returns the analysis window.
func (e *Expander) Window() segments.Span { return e.window }

// Expand builds every tab section into a Tab with its job list, wiring
// parent links. Tabs come back in definition order; roots are the ones
// without a parent.
func (e *Expander) Expand(model *config.Model) ([]*tab.Tab, error) {
	byName := make(map[string]*tab.Tab, len(model.Tabs))
	var tabs []*tab.Tab
	for _, section := range model.Tabs {
		t, err := e.expandTab(section)
		if err != nil {
			return nil, err
		}
		byName[section.Name] = t
		tabs = append(tabs, t)
	}
	for i, section := range model.Tabs {
		if section.Parent == "" {
			continue
		}
		parent, ok := byName[section.Parent]
		if !ok {
			return nil, &ConfigError{Tab: section.Name, Err: fmt.Errorf("unknown parent tab %q", section.Parent)}
		}
		parent.AddChild(tabs[i])
	}
	return tabs, nil
}

func (e *Expander) expandTab(section *config.TabSection) (*tab.Tab, error) {
	t := tab.New(section.Name, e.window)

	var targets []*state.State
	for _, name := range section.States {
		s, ok := e.states[name]
		if !ok {
			return nil, &ConfigError{Tab: section.Name, Err: fmt.Errorf("unknown state %q", name)}
		}
		targets = append(targets, s)
	}
	if len(targets) == 0 {
		targets = []*state.State{e.all}
	}
	for _, s := range targets {
		t.AddState(s)
	}

	for _, entry := range section.Entries {
		kind, sources, options, err := e.resolveEntry(section, entry)
		if err != nil {
			return nil, &ConfigError{Tab: section.Name, Err: err}
		}

		allData := false
		if v, ok := options["all-data"]; ok && v.Type() == cty.Bool {
			allData = v.True()
			delete(options, "all-data")
		}

		entryStates := targets
		if allData {
			// One unbound job covering the whole window regardless of state.
			entryStates = []*state.State{nil}
		}

		var entryPlots []*plot.Plot
		for _, s := range entryStates {
			p, err := plot.New(e.env, kind, sources, s, e.window, options)
			if err != nil {
				return nil, &ConfigError{Tab: section.Name, Err: fmt.Errorf("entry %d: %w", entry.Index, err)}
			}
			t.AddPlot(p)
			entryPlots = append(entryPlots, p)
		}

		if section.Subplot != nil && section.Subplot.Source == entry.Index {
			duration := section.Subplot.Duration
			if duration <= 0 {
				duration = defaultSubplotDuration(e.window.Duration())
			}
			for _, p := range entryPlots {
				for _, span := range segments.Partition(e.window, duration) {
					t.AddSubplot(p.CloneSpan(span))
				}
			}
		}
	}
	return t, nil
}

// resolveEntry parses one entry definition into a kind, its sources, and the
// merged option map. Kind-derived options (event type, column) lose to
// explicit per-entry overrides.
func (e *Expander) resolveEntry(section *config.TabSection, entry config.Entry) (plot.Kind, []string, map[string]cty.Value, error) {
	fields := strings.Fields(entry.Definition)
	if len(fields) == 0 {
		return "", nil, nil, fmt.Errorf("entry %d is empty", entry.Index)
	}

	var rawKind string
	var sources []string
	if len(fields) == 1 {
		def, ok := e.defs[fields[0]]
		if !ok {
			return "", nil, nil, fmt.Errorf("entry %d: %q is neither a plot definition nor an inline entry", entry.Index, fields[0])
		}
		rawKind = def.Type
		sources = def.Sources
	} else {
		rawKind = fields[0]
		for _, part := range strings.Split(strings.Join(fields[1:], " "), ",") {
			if part = strings.TrimSpace(part); part != "" {
				sources = append(sources, part)
			}
		}
	}

	kind, derived, err := resolveKind(rawKind)
	if err != nil {
		return "", nil, nil, fmt.Errorf("entry %d: %w", entry.Index, err)
	}

	options := make(map[string]cty.Value, len(derived))
	for name, v := range derived {
		options[name] = v
	}
	prefix := fmt.Sprintf("%d-", entry.Index)
	for key, raw := range section.Options {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimPrefix(key, prefix)
		v, err := literal.Parse(raw)
		if err != nil {
			return "", nil, nil, fmt.Errorf("entry %d: option %q: %w", entry.Index, name, err)
		}
		options[name] = v
	}
	return kind, sources, options, nil
}

// resolveKind maps a raw category token onto a registered plot kind.
// Registered names match exactly; otherwise "<etg>-<column>-histogram"
// decomposes to a trigger histogram and "<etg>-rate" to a trigger rate.
func resolveKind(raw string) (plot.Kind, map[string]cty.Value, error) {
	if kind := plot.Kind(raw); plot.Known(kind) {
		return kind, nil, nil
	}
	if rest, ok := strings.CutSuffix(raw, "-histogram"); ok {
		i := strings.LastIndex(rest, "-")
		if i <= 0 || i == len(rest)-1 {
			return "", nil, fmt.Errorf("unknown plot category %q", raw)
		}
		return plot.TriggerHistogram, map[string]cty.Value{
			"etg":    cty.StringVal(rest[:i]),
			"column": cty.StringVal(rest[i+1:]),
		}, nil
	}
	if etg, ok := strings.CutSuffix(raw, "-rate"); ok && etg != "" {
		return plot.TriggerRate, map[string]cty.Value{
			"etg": cty.StringVal(etg),
		}, nil
	}
	return "", nil, fmt.Errorf("unknown plot category %q", raw)
}

// defaultSubplotDuration picks the sub-interval length for a window when the
// configuration does not set one.
func defaultSubplotDuration(window int64) int64 {
	switch {
	case window <= 600:
		return 60
	case window <= 7200:
		return 600
	case window <= 86400:
		return 3600
	case window <= 259200:
		return 21600
	default:
		return 86400
	}
}
