package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes all possible top-level blocks from any configuration file.
// Blocks may be split across files; the loader merges them.
type fileRoot struct {
	Report   *reportBlock    `hcl:"report,block"`
	States   []*stateBlock   `hcl:"state,block"`
	PlotDefs []*plotdefBlock `hcl:"plotdef,block"`
	Tabs     []*tabBlock     `hcl:"tab,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

// reportBlock carries the run-wide settings. Exactly one per run.
type reportBlock struct {
	Title  string `hcl:"title,optional"`
	Start  int64  `hcl:"start"`
	End    int64  `hcl:"end"`
	Output string `hcl:"output,optional"`
}

// stateBlock defines one operational state by its flag expression.
type stateBlock struct {
	Name       string `hcl:"name,label"`
	Definition string `hcl:"definition"`
}

// plotdefBlock is a named, shared plot definition. Channel kinds list their
// sources in `channels`, flag kinds in `flags`; exactly one must be set.
type plotdefBlock struct {
	Name     string `hcl:"name,label"`
	Type     string `hcl:"type"`
	Channels string `hcl:"channels,optional"`
	Flags    string `hcl:"flags,optional"`
}

// tabBlock is one report section.
type tabBlock struct {
	Name    string        `hcl:"name,label"`
	Parent  string        `hcl:"parent,optional"`
	States  []string      `hcl:"states,optional"`
	Subplot *subplotBlock `hcl:"subplot,block"`
	Entries []*entryBlock `hcl:"entry,block"`
}

// subplotBlock requests derived sub-interval jobs cloned from the entry with
// the given index. A zero duration picks the default ladder for the window.
type subplotBlock struct {
	Source   int   `hcl:"source"`
	Duration int64 `hcl:"duration,optional"`
}

// entryBlock is one ordered plot entry. The label is the integer index as a
// string; option values stay raw literal strings for the expander's grammar.
type entryBlock struct {
	Index      string            `hcl:"index,label"`
	Definition string            `hcl:"definition"`
	Options    map[string]string `hcl:"options,optional"`
}
