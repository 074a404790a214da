// Package segments provides integer-second interval arithmetic for analysis
// windows and operational-state segment lists.
package segments

import (
	"fmt"
	"sort"
)

// Span is a half-open interval [Start, End) in integer seconds.
type Span struct {
	Start int64
	End   int64
}

// NewSpan returns the span [start, end). It panics if end < start, which is
// always a programmer error.
func NewSpan(start, end int64) Span {
	if end < start {
		panic(fmt.Sprintf("segments: invalid span [%d, %d)", start, end))
	}
	return Span{Start: start, End: end}
}

// Duration returns the length of the span in seconds.
func (s Span) Duration() int64 {
	return s.End - s.Start
}

// IsZero reports whether the span is empty.
func (s Span) IsZero() bool {
	return s.Duration() == 0
}

// Contains reports whether t lies inside the span.
func (s Span) Contains(t int64) bool {
	return t >= s.Start && t < s.End
}

// Intersect returns the overlap of two spans and whether it is non-empty.
func (s Span) Intersect(other Span) (Span, bool) {
	start := max(s.Start, other.Start)
	end := min(s.End, other.End)
	if end <= start {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}

// String implements fmt.Stringer.
func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// List is a normalized set of spans: sorted by start time, non-overlapping,
// with adjacent spans coalesced. Use NewList to build one.
type List []Span

// NewList normalizes the given spans into a List. Empty spans are dropped.
func NewList(spans ...Span) List {
	in := make([]Span, 0, len(spans))
	for _, s := range spans {
		if !s.IsZero() {
			in = append(in, s)
		}
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].Start == in[j].Start {
			return in[i].End < in[j].End
		}
		return in[i].Start < in[j].Start
	})
	var out List
	for _, s := range in {
		if n := len(out); n > 0 && s.Start <= out[n-1].End {
			if s.End > out[n-1].End {
				out[n-1].End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Duration returns the total covered duration in seconds.
func (l List) Duration() int64 {
	var total int64
	for _, s := range l {
		total += s.Duration()
	}
	return total
}

// Contains reports whether t lies inside any span of the list.
func (l List) Contains(t int64) bool {
	for _, s := range l {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// Intersect returns the overlap of two lists.
func (l List) Intersect(other List) List {
	var out []Span
	i, j := 0, 0
	for i < len(l) && j < len(other) {
		if s, ok := l[i].Intersect(other[j]); ok {
			out = append(out, s)
		}
		if l[i].End < other[j].End {
			i++
		} else {
			j++
		}
	}
	return NewList(out...)
}

// Union returns the combined coverage of two lists.
func (l List) Union(other List) List {
	return NewList(append(append([]Span{}, l...), other...)...)
}

// Clip restricts the list to the given window.
func (l List) Clip(window Span) List {
	var out []Span
	for _, s := range l {
		if c, ok := s.Intersect(window); ok {
			out = append(out, c)
		}
	}
	return NewList(out...)
}

// Partition splits window into consecutive non-overlapping sub-spans of the
// given duration. The final sub-span is truncated to the window end, never
// dropped or padded.
func Partition(window Span, duration int64) []Span {
	if duration <= 0 {
		panic(fmt.Sprintf("segments: invalid partition duration %d", duration))
	}
	var out []Span
	for start := window.Start; start < window.End; start += duration {
		out = append(out, Span{Start: start, End: min(start+duration, window.End)})
	}
	return out
}
