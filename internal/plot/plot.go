// Package plot models render jobs: one renderable output unit bound to data
// sources and, optionally, one operational state.
//
// A plot is a tagged union over its kind. The kind selects, at construction,
// a Renderer capability that decides concurrency safety and produces the
// output artifact, so dispatch never needs runtime type inspection.
package plot

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
)

// Kind tags the data category of a plot.
type Kind string

const (
	TimeSeries           Kind = "timeseries"
	Spectrum             Kind = "spectrum"
	Spectrogram          Kind = "spectrogram"
	CoherenceSpectrogram Kind = "coherence-spectrogram"
	StateVector          Kind = "statevector"
	Segments             Kind = "segments"
	Triggers             Kind = "triggers"
	TriggerRate          Kind = "trigger-rate"
	TriggerHistogram     Kind = "trigger-histogram"
	RangeHistogram       Kind = "range-histogram"
	SegmentHistogram     Kind = "segment-histogram"
)

// segmentKinds take data-quality flags as sources instead of channels.
var segmentKinds = map[Kind]bool{
	Segments:         true,
	SegmentHistogram: true,
}

// triggerKinds consume event-trigger tables.
var triggerKinds = map[Kind]bool{
	Triggers:         true,
	TriggerRate:      true,
	TriggerHistogram: true,
}

// ChannelKinds lists the kinds whose sources are data channels.
func ChannelKinds() []Kind {
	return []Kind{TimeSeries, Spectrum, Spectrogram, CoherenceSpectrogram, RangeHistogram, StateVector}
}

// SegmentKinds lists the kinds whose sources are data-quality flags.
func SegmentKinds() []Kind {
	return []Kind{Segments, SegmentHistogram}
}

// TriggerKinds lists the kinds that consume event-trigger tables.
func TriggerKinds() []Kind {
	return []Kind{Triggers, TriggerRate, TriggerHistogram}
}

// Renderer is the capability half of a plot, selected from the kind registry
// at construction.
type Renderer interface {
	// ConcurrencySafe reports whether the render may run in a worker.
	ConcurrencySafe() bool
	// Render produces the plot's artifact. Failures are isolated per plot.
	Render(ctx context.Context, p *Plot) error
}

// Env binds renderers to the run's fetched data and output directory.
type Env struct {
	Store  *datastore.Store
	OutDir string
}

// builders maps each kind to its renderer factory.
var builders = map[Kind]func(*Env) Renderer{}

func register(kind Kind, fn func(*Env) Renderer) {
	builders[kind] = fn
}

// Known reports whether kind is a registered plot kind.
func Known(kind Kind) bool {
	_, ok := builders[kind]
	return ok
}

// Plot is one render job.
type Plot struct {
	kind    Kind
	sources []string
	state   *state.State // nil = all-states / all-data
	span    segments.Span
	options map[string]cty.Value

	env      *Env
	renderer Renderer
	pending  bool

	outputFile string // cached artifact identifier
}

// New constructs a plot of the given kind. Unknown kinds are a configuration
// error surfaced before any job executes.
func New(env *Env, kind Kind, sources []string, st *state.State, span segments.Span, options map[string]cty.Value) (*Plot, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown plot kind %q", kind)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("plot kind %q has no data sources", kind)
	}
	if options == nil {
		options = map[string]cty.Value{}
	}
	return &Plot{
		kind:     kind,
		sources:  sources,
		state:    st,
		span:     span,
		options:  options,
		env:      env,
		renderer: build(env),
		pending:  true,
	}, nil
}

// Kind returns the plot's data category tag.
func (p *Plot) Kind() Kind { return p.kind }

// Sources returns the raw source identifiers (channels or flags).
func (p *Plot) Sources() []string { return p.sources }

// Channels returns the source channels; empty for segment kinds.
func (p *Plot) Channels() []string {
	if segmentKinds[p.kind] {
		return nil
	}
	return p.sources
}

// Flags returns the source data-quality flags; empty for channel kinds.
func (p *Plot) Flags() []string {
	if segmentKinds[p.kind] {
		return p.sources
	}
	return nil
}

// State returns the owning state, or nil for an all-states plot.
func (p *Plot) State() *state.State { return p.state }

// Span returns the plot's interval.
func (p *Plot) Span() segments.Span { return p.span }

// Pending reports whether the plot still needs rendering this run.
func (p *Plot) Pending() bool { return p.pending }

// Option returns a typed override value by name.
func (p *Plot) Option(name string) (cty.Value, bool) {
	v, ok := p.options[name]
	return v, ok
}

// StringOption returns a string override, or def when absent or non-string.
func (p *Plot) StringOption(name, def string) string {
	if v, ok := p.options[name]; ok && v.Type() == cty.String {
		return v.AsString()
	}
	return def
}

// BoolOption returns a boolean override, or def when absent or non-boolean.
func (p *Plot) BoolOption(name string, def bool) bool {
	if v, ok := p.options[name]; ok && v.Type() == cty.Bool {
		return v.True()
	}
	return def
}

// ETG returns the event-trigger-generator tag for trigger kinds.
func (p *Plot) ETG() string { return p.StringOption("etg", "") }

// Column returns the event column for histogram kinds.
func (p *Plot) Column() string { return p.StringOption("column", "") }

// BitChannels expands each source of a derived-channel plot into its
// configured bitmask channels ("<channel>.<bit>"). Non-statevector plots and
// plots without a bits override return the sources unchanged.
func (p *Plot) BitChannels() []string {
	bits, ok := p.options["bits"]
	if p.kind != StateVector || !ok || !bits.Type().IsTupleType() {
		return p.sources
	}
	var out []string
	for _, ch := range p.sources {
		for it := bits.ElementIterator(); it.Next(); {
			_, v := it.Element()
			if v.Type() != cty.Number {
				continue
			}
			bit, _ := v.AsBigFloat().Int64()
			out = append(out, fmt.Sprintf("%s.%d", ch, bit))
		}
	}
	if len(out) == 0 {
		return p.sources
	}
	return out
}

// ConcurrencySafe reports whether this plot may render in a worker.
func (p *Plot) ConcurrencySafe() bool {
	return p.renderer.ConcurrencySafe()
}

// Render produces the output artifact. The plot is marked not-pending whether
// or not the render succeeds: an attempted artifact is never retried within
// the run.
func (p *Plot) Render(ctx context.Context) error {
	p.pending = false
	return p.renderer.Render(ctx, p)
}

// CloneSpan returns an independent copy of the plot covering a sub-interval
// of the parent window. All other fields are preserved.
func (p *Plot) CloneSpan(span segments.Span) *Plot {
	clone := *p
	clone.span = span
	clone.outputFile = ""
	clone.pending = true
	return &clone
}

var reToken = regexp.MustCompile(`[^A-Za-z0-9]+`)

// OutputFile returns the unique artifact identifier for this plot. It depends
// only on the leading source, kind, owning state, and interval, so two plots
// describing the same output collide here and the completion cache
// deduplicates them.
func (p *Plot) OutputFile() string {
	if p.outputFile == "" {
		stateSlug := "all"
		if p.state != nil {
			stateSlug = strings.ToLower(reToken.ReplaceAllString(p.state.Name, "_"))
		}
		tag := strings.ToUpper(reToken.ReplaceAllString(p.sources[0], "_"))
		name := fmt.Sprintf("%s-%s-%s-%d-%d.json",
			tag, p.kind, stateSlug, p.span.Start, p.span.Duration())
		p.outputFile = filepath.Join(p.env.OutDir, name)
	}
	return p.outputFile
}

// active returns the intervals this plot should summarize: the owning
// state's active segments clipped to the plot span, or the whole span for
// all-states plots.
func (p *Plot) active() segments.List {
	if p.state == nil {
		return segments.NewList(p.span)
	}
	return p.state.Active.Clip(p.span)
}
