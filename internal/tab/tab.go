// Package tab models one report section: a node in the report tree covering
// a fixed analysis window, one or more operational states, and an ordered
// list of render jobs.
package tab

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
)

var reSlug = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Tab is one report section. Children, states, and plots keep their
// insertion order; the derived path depends only on the name and the
// ancestor chain.
type Tab struct {
	name     string
	parent   *Tab
	children []*Tab
	states   []*state.State
	plots    []*plot.Plot
	subplots []*plot.Plot
	span     segments.Span

	path string // cached derived path; "" = not yet derived
}

// New returns a tab with the given name over the analysis window.
func New(name string, span segments.Span) *Tab {
	return &Tab{name: name, span: span}
}

// Name returns the tab's display name.
func (t *Tab) Name() string { return t.name }

// Span returns the tab's analysis window.
func (t *Tab) Span() segments.Span { return t.span }

// Parent returns the parent tab, or nil for a top-level tab.
func (t *Tab) Parent() *Tab { return t.parent }

// Children returns the ordered child tabs.
func (t *Tab) Children() []*Tab { return t.children }

// States returns the tab's ordered states.
func (t *Tab) States() []*state.State { return t.states }

// Plots returns the tab's ordered render jobs.
func (t *Tab) Plots() []*plot.Plot { return t.plots }

// Subplots returns the ordered sub-interval jobs derived from the plots.
func (t *Tab) Subplots() []*plot.Plot { return t.subplots }

// AddChild appends a child tab and records the parent back-link.
func (t *Tab) AddChild(child *Tab) {
	child.parent = t
	child.invalidatePath()
	t.children = append(t.children, child)
}

// Child finds a direct child by name.
func (t *Tab) Child(name string) (*Tab, error) {
	for _, c := range t.children {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("tab %q has no child named %q", t.name, name)
}

// AddState appends a state to the tab.
func (t *Tab) AddState(s *state.State) {
	t.states = append(t.states, s)
}

// SortStates re-orders the tab's states by descending total active duration,
// stable for ties. Call after resolution; the first state becomes the tab's
// primary display state.
func (t *Tab) SortStates() {
	state.SortByActive(t.states)
}

// AddPlot appends a render job.
func (t *Tab) AddPlot(p *plot.Plot) {
	t.plots = append(t.plots, p)
}

// AddSubplot appends a sub-interval render job.
func (t *Tab) AddSubplot(p *plot.Plot) {
	t.subplots = append(t.subplots, p)
}

// Rename changes the tab's name and invalidates the cached derived path of
// this tab and every descendant.
func (t *Tab) Rename(name string) {
	t.name = name
	t.invalidatePath()
}

func (t *Tab) invalidatePath() {
	t.path = ""
	for _, c := range t.children {
		c.invalidatePath()
	}
}

// Path returns the tab's output directory relative to the report root. The
// top-level "Summary" tab maps to the root itself; every other tab maps to
// its slug nested under the ancestor chain.
func (t *Tab) Path() string {
	if t.path == "" {
		p := slug(t.name)
		if strings.EqualFold(t.name, "summary") {
			p = "."
		}
		if t.parent != nil {
			p = path.Join(t.parent.Path(), slug(t.name))
		}
		t.path = p
	}
	return t.path
}

func slug(name string) string {
	return strings.ToLower(reSlug.ReplaceAllString(name, "_"))
}
