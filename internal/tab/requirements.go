package tab

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/plot"
)

// reFlagDiv splits compound flag expressions on boolean-combination
// delimiters, leaving the atomic flag names.
var reFlagDiv = regexp.MustCompile(`[&|!,]`)

// ReqOption adjusts requirement aggregation.
type ReqOption func(*reqOptions)

type reqOptions struct {
	pendingOnly bool
	filter      func(*plot.Plot) bool
}

// IncludeRendered lifts the default pending-only restriction.
func IncludeRendered() ReqOption {
	return func(o *reqOptions) { o.pendingOnly = false }
}

// Where restricts aggregation to plots matching an arbitrary predicate, for
// example a single state during a per-state pass.
func Where(fn func(*plot.Plot) bool) ReqOption {
	return func(o *reqOptions) { o.filter = fn }
}

func buildOptions(opts []ReqOption) reqOptions {
	o := reqOptions{pendingOnly: true}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (t *Tab) eachMatching(kinds []plot.Kind, o reqOptions, visit func(*plot.Plot)) {
	kindSet := make(map[plot.Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	for _, p := range append(append([]*plot.Plot{}, t.plots...), t.subplots...) {
		if !kindSet[p.Kind()] {
			continue
		}
		if o.pendingOnly && !p.Pending() {
			continue
		}
		if o.filter != nil && !o.filter(p) {
			continue
		}
		visit(p)
	}
}

// Channels returns the deduplicated set of data channels required by plots of
// the given kinds. Derived-channel (statevector) plots expand each source
// into its bitmask channels. Order is first-encounter; callers must not rely
// on it.
func (t *Tab) Channels(kinds []plot.Kind, opts ...ReqOption) []string {
	o := buildOptions(opts)
	seen := make(map[string]bool)
	var out []string
	t.eachMatching(kinds, o, func(p *plot.Plot) {
		channels := p.Channels()
		if p.Kind() == plot.StateVector {
			channels = p.BitChannels()
		}
		for _, ch := range channels {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	})
	return out
}

// Flags returns the atomic data-quality flag names required by plots of the
// given kinds. Compound expressions are split on boolean delimiters; the
// result is deduplicated and sorted for deterministic downstream batching.
func (t *Tab) Flags(kinds []plot.Kind, opts ...ReqOption) []string {
	o := buildOptions(opts)
	seen := make(map[string]bool)
	var out []string
	t.eachMatching(kinds, o, func(p *plot.Plot) {
		for _, compound := range p.Flags() {
			for _, atom := range reFlagDiv.Split(compound, -1) {
				atom = strings.TrimSpace(atom)
				if atom == "" || seen[atom] {
					continue
				}
				seen[atom] = true
				out = append(out, atom)
			}
		}
	})
	sort.Strings(out)
	return out
}

// TriggerStreams returns the (event type, channel) pairs required by plots of
// the given kinds. The same channel appears once per distinct event type;
// results are sorted by channel then event type.
func (t *Tab) TriggerStreams(kinds []plot.Kind, opts ...ReqOption) []datastore.TriggerKey {
	o := buildOptions(opts)
	seen := make(map[datastore.TriggerKey]bool)
	var out []datastore.TriggerKey
	t.eachMatching(kinds, o, func(p *plot.Plot) {
		for _, ch := range p.Channels() {
			key := datastore.TriggerKey{ETG: p.ETG(), Channel: ch}
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel == out[j].Channel {
			return out[i].ETG < out[j].ETG
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}
