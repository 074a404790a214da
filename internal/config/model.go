package config

import "fmt"

// Model is the unified, format-agnostic representation of one report
// configuration: the analysis window, the state definitions, the shared plot
// definitions, and the tab sections.
type Model struct {
	Report   Report
	States   []*StateDef
	PlotDefs map[string]*PlotDef
	Tabs     []*TabSection
}

// Report carries the run-wide settings: title, analysis window, and output
// directory. Start and End are integer seconds, [Start, End).
type Report struct {
	Title  string
	Start  int64
	End    int64
	Output string
}

// StateDef names an operational state and the flag expression that defines
// its intervals. The reserved all-data state needs no definition and must
// not appear here.
type StateDef struct {
	Name       string
	Definition string
}

// PlotDef is a named, shared plot definition referenced by tab entries.
type PlotDef struct {
	Name    string
	Type    string
	Sources []string
}

// TabSection is the format-agnostic representation of one `tab` block.
// Entries keep their configured integer-index order; Options holds the raw
// per-entry override values flattened to "<index>-<option>" keys, left as
// uninterpreted literal strings for the expander to parse.
type TabSection struct {
	Name    string
	Parent  string
	States  []string
	Entries []Entry
	Options map[string]string
	Subplot *SubplotSpec
}

// Entry is one ordered plot entry: either an inline "<kind> <sources>"
// definition or the name of a shared PlotDef.
type Entry struct {
	Index      int
	Definition string
}

// SubplotSpec requests derived sub-interval jobs cloned from the entry at
// Source. A zero Duration means the default ladder for the window length.
type SubplotSpec struct {
	Source   int
	Duration int64
}

// Validate checks the model's internal consistency before expansion.
func (m *Model) Validate() error {
	if m.Report.End <= m.Report.Start {
		return fmt.Errorf("report window [%d, %d) is empty or inverted", m.Report.Start, m.Report.End)
	}
	stateNames := make(map[string]bool, len(m.States))
	for _, s := range m.States {
		if s.Name == "" || s.Definition == "" {
			return fmt.Errorf("state %q needs both a name and a definition", s.Name)
		}
		if stateNames[s.Name] {
			return fmt.Errorf("state %q defined twice", s.Name)
		}
		stateNames[s.Name] = true
	}
	tabNames := make(map[string]bool, len(m.Tabs))
	for _, t := range m.Tabs {
		if tabNames[t.Name] {
			return fmt.Errorf("tab %q defined twice", t.Name)
		}
		tabNames[t.Name] = true
		for _, want := range t.States {
			if !stateNames[want] {
				return fmt.Errorf("tab %q references undefined state %q", t.Name, want)
			}
		}
	}
	for _, t := range m.Tabs {
		if t.Parent != "" && !tabNames[t.Parent] {
			return fmt.Errorf("tab %q references undefined parent %q", t.Name, t.Parent)
		}
	}
	return nil
}
