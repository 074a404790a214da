package plot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/datastore"
)

func init() {
	register(TimeSeries, func(e *Env) Renderer { return &seriesRenderer{env: e} })
	register(Spectrum, func(e *Env) Renderer { return &seriesRenderer{env: e} })
	register(Spectrogram, func(e *Env) Renderer { return &seriesRenderer{env: e} })
	register(CoherenceSpectrogram, func(e *Env) Renderer { return &seriesRenderer{env: e} })
	register(RangeHistogram, func(e *Env) Renderer { return &seriesRenderer{env: e} })
	register(StateVector, func(e *Env) Renderer { return &stateVectorRenderer{env: e} })
	register(Segments, func(e *Env) Renderer { return &segmentsRenderer{env: e} })
	register(SegmentHistogram, func(e *Env) Renderer { return &segmentsRenderer{env: e} })
	register(Triggers, func(e *Env) Renderer { return &triggerRenderer{env: e} })
	register(TriggerRate, func(e *Env) Renderer { return &triggerRenderer{env: e} })
	register(TriggerHistogram, func(e *Env) Renderer { return &triggerRenderer{env: e} })
}

// artifact is the JSON document written for every rendered plot. Plots whose
// data has not been fetched still produce an artifact with NoData set, so a
// missing page is always distinguishable from a page not yet generated.
type artifact struct {
	Kind     Kind     `json:"kind"`
	State    string   `json:"state,omitempty"`
	Span     [2]int64 `json:"span"`
	Channels []string `json:"channels,omitempty"`
	Flags    []string `json:"flags,omitempty"`
	NoData   bool     `json:"no_data,omitempty"`
	Summary  any      `json:"summary,omitempty"`
}

func (p *Plot) writeArtifact(ctx context.Context, a artifact) error {
	a.Kind = p.kind
	a.Span = [2]int64{p.span.Start, p.span.End}
	if p.state != nil {
		a.State = p.state.Name
	}
	out := p.OutputFile()
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	buf, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Artifact written.", "file", out, "kind", p.kind)
	return nil
}

// seriesStats summarizes one channel's samples within the active intervals.
type seriesStats struct {
	Channel string  `json:"channel"`
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
}

func summarizeSeries(store *datastore.Store, channels []string, p *Plot) ([]seriesStats, bool) {
	active := p.active()
	stats := make([]seriesStats, 0, len(channels))
	hasData := false
	for _, ch := range channels {
		samples := store.SeriesIn(ch, active)
		st := seriesStats{Channel: ch, Samples: len(samples)}
		if len(samples) > 0 {
			hasData = true
			st.Min = math.Inf(1)
			st.Max = math.Inf(-1)
			var sum float64
			for _, sp := range samples {
				v := float64(sp.Value)
				st.Min = math.Min(st.Min, v)
				st.Max = math.Max(st.Max, v)
				sum += v
			}
			st.Mean = sum / float64(len(samples))
		}
		stats = append(stats, st)
	}
	return stats, hasData
}

// seriesRenderer covers all plain channel-data kinds. Safe for workers: it
// only reads the store and writes its own artifact file.
type seriesRenderer struct {
	env *Env
}

func (r *seriesRenderer) ConcurrencySafe() bool { return true }

func (r *seriesRenderer) Render(ctx context.Context, p *Plot) error {
	stats, hasData := summarizeSeries(r.env.Store, p.Channels(), p)
	return p.writeArtifact(ctx, artifact{
		Channels: p.Channels(),
		NoData:   !hasData,
		Summary:  stats,
	})
}

// stateVectorRenderer summarizes the bitmask-derived channels of each source.
type stateVectorRenderer struct {
	env *Env
}

func (r *stateVectorRenderer) ConcurrencySafe() bool { return true }

func (r *stateVectorRenderer) Render(ctx context.Context, p *Plot) error {
	channels := p.BitChannels()
	stats, hasData := summarizeSeries(r.env.Store, channels, p)
	return p.writeArtifact(ctx, artifact{
		Channels: channels,
		NoData:   !hasData,
		Summary:  stats,
	})
}

// flagStats summarizes one data-quality flag within the plot interval.
type flagStats struct {
	Flag      string  `json:"flag"`
	KnownSec  int64   `json:"known_seconds"`
	ActiveSec int64   `json:"active_seconds"`
	DutyPct   float64 `json:"duty_percent"`
}

// segmentsRenderer covers the flag-based kinds. It is concurrency-unsafe and
// always renders in the orchestrating goroutine.
type segmentsRenderer struct {
	env *Env
}

func (r *segmentsRenderer) ConcurrencySafe() bool { return false }

func (r *segmentsRenderer) Render(ctx context.Context, p *Plot) error {
	active := p.active()
	stats := make([]flagStats, 0, len(p.Flags()))
	hasData := false
	for _, flag := range p.Flags() {
		fs, ok := r.env.Store.Flag(flag)
		st := flagStats{Flag: flag}
		if ok {
			hasData = true
			known := fs.Known.Clip(p.span).Intersect(active)
			st.KnownSec = known.Duration()
			st.ActiveSec = fs.Active.Clip(p.span).Intersect(active).Duration()
			if st.KnownSec > 0 {
				st.DutyPct = 100 * float64(st.ActiveSec) / float64(st.KnownSec)
			}
		}
		stats = append(stats, st)
	}
	return p.writeArtifact(ctx, artifact{
		Flags:   p.Flags(),
		NoData:  !hasData,
		Summary: stats,
	})
}

// triggerStats summarizes one event stream within the plot interval.
type triggerStats struct {
	ETG     string    `json:"etg"`
	Channel string    `json:"channel"`
	Events  int       `json:"events"`
	Rate    float64   `json:"rate_hz,omitempty"`
	Column  string    `json:"column,omitempty"`
	Bins    []histBin `json:"bins,omitempty"`
}

type histBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// triggerRenderer covers the event-trigger kinds; the kind tag on the plot
// picks between raw events, rate, and column histogram summaries.
type triggerRenderer struct {
	env *Env
}

func (r *triggerRenderer) ConcurrencySafe() bool { return true }

func (r *triggerRenderer) Render(ctx context.Context, p *Plot) error {
	active := p.active()
	stats := make([]triggerStats, 0, len(p.Channels()))
	hasData := false
	for _, ch := range p.Channels() {
		key := datastore.TriggerKey{ETG: p.ETG(), Channel: ch}
		events := r.env.Store.TriggersIn(key, active)
		if _, ok := r.env.Store.Triggers(key); ok {
			hasData = true
		}
		st := triggerStats{ETG: p.ETG(), Channel: ch, Events: len(events)}
		switch p.kind {
		case TriggerRate:
			if d := active.Duration(); d > 0 {
				st.Rate = float64(len(events)) / float64(d)
			}
		case TriggerHistogram:
			st.Column = p.Column()
			st.Bins = histogram(events, p.Column(), 10)
		}
		stats = append(stats, st)
	}
	return p.writeArtifact(ctx, artifact{
		Channels: p.Channels(),
		NoData:   !hasData,
		Summary:  stats,
	})
}

// histogram bins the named column of an event table into n equal-width bins.
func histogram(events []datastore.Event, column string, n int) []histBin {
	var values []float64
	for _, ev := range events {
		if v, ok := ev.Columns[column]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []histBin{{Low: lo, High: hi, Count: len(values)}}
	}
	width := (hi - lo) / float64(n)
	bins := make([]histBin, n)
	for i := range bins {
		bins[i] = histBin{Low: lo + float64(i)*width, High: lo + float64(i+1)*width}
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}
