package state

import (
	"context"
	"fmt"

	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/segments"
)

// SegmentSource fetches known and active intervals for a state predicate
// from the segment database.
type SegmentSource interface {
	FetchStateIntervals(ctx context.Context, definition string, window segments.Span) (known, active segments.List, err error)
}

// ErrorPolicy controls how segment-database failures are handled.
type ErrorPolicy string

const (
	// PolicyRaise propagates the fetch error to the caller.
	PolicyRaise ErrorPolicy = "raise"
	// PolicyWarn logs the failure and marks the state ready with empty intervals.
	PolicyWarn ErrorPolicy = "warn"
	// PolicyIgnore silently marks the state ready with empty intervals.
	PolicyIgnore ErrorPolicy = "ignore"
)

// ParsePolicy validates a policy string from configuration.
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(s); p {
	case PolicyRaise, PolicyWarn, PolicyIgnore:
		return p, nil
	}
	return "", fmt.Errorf("invalid segment error policy %q: must be 'raise', 'warn', or 'ignore'", s)
}

// ResolutionError wraps a segment-database failure for one state.
type ResolutionError struct {
	State string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving state %q: %v", e.State, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver turns symbolic state references into concrete interval sets,
// one collaborator call per distinct state, cached for the run via the
// per-state ready flag.
type Resolver struct {
	source SegmentSource
	window segments.Span
	policy ErrorPolicy
}

// NewResolver returns a resolver for one run window. source may be nil, in
// which case non-trivial states degrade to empty intervals under the policy.
func NewResolver(source SegmentSource, window segments.Span, policy ErrorPolicy) *Resolver {
	return &Resolver{source: source, window: window, policy: policy}
}

// Resolve mutates the given states in place. The "All" state resolves first,
// unconditionally and without a predicate query. Already-ready states are
// never re-queried.
func (r *Resolver) Resolve(ctx context.Context, states []*State) error {
	logger := ctxlog.FromContext(ctx)

	for _, s := range states {
		if s.IsAll() && !s.ready {
			s.Known = segments.NewList(r.window)
			s.Active = segments.NewList(r.window)
			s.ready = true
			logger.Debug("Resolved whole-window state.", "window", r.window.String())
		}
	}

	for _, s := range states {
		if s.ready || s.IsAll() {
			continue
		}
		known, active, err := r.fetch(ctx, s)
		if err != nil {
			switch r.policy {
			case PolicyRaise:
				return &ResolutionError{State: s.Name, Err: err}
			case PolicyWarn:
				logger.Warn("State interval query failed, continuing with empty intervals.",
					"state", s.Name, "error", err)
			}
			known, active = nil, nil
		}
		s.Known = known.Clip(r.window)
		s.Active = active.Clip(r.window)
		s.ready = true
		logger.Debug("State resolved.",
			"state", s.Name, "known", s.Known.Duration(), "active", s.Active.Duration())
	}
	return nil
}

func (r *Resolver) fetch(ctx context.Context, s *State) (segments.List, segments.List, error) {
	if r.source == nil {
		return nil, nil, fmt.Errorf("no segment source configured")
	}
	if s.Definition == "" {
		return nil, nil, fmt.Errorf("state has no predicate definition")
	}
	return r.source.FetchStateIntervals(ctx, s.Definition, r.window)
}
