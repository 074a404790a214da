// Package datastore holds the data fetched for one run: time series keyed by
// channel, segment lists keyed by flag, and event-trigger tables keyed by
// (event type, channel).
//
// The store is an explicit run-scoped object passed down from the
// orchestrator, so concurrent runs (for example under test) never interfere.
package datastore

import (
	"sync"

	"github.com/prometheus/common/model"

	"github.com/vk/detsumm/internal/segments"
)

// TriggerKey identifies one event-trigger stream.
type TriggerKey struct {
	ETG     string // event trigger generator, e.g. "omicron"
	Channel string
}

// Event is a single transient event trigger with named columns.
type Event struct {
	Time    model.Time
	Columns map[string]float64
}

// FlagSegments holds the resolved interval sets for one data-quality flag.
type FlagSegments struct {
	Known  segments.List
	Active segments.List
}

// Store is the run-scoped data cache. All methods are safe for concurrent
// use: render workers read while the orchestrator has finished writing.
type Store struct {
	mu       sync.RWMutex
	series   map[string][]model.SamplePair
	flags    map[string]FlagSegments
	triggers map[TriggerKey][]Event
}

// New returns an empty store for one run.
func New() *Store {
	return &Store{
		series:   make(map[string][]model.SamplePair),
		flags:    make(map[string]FlagSegments),
		triggers: make(map[TriggerKey][]Event),
	}
}

// SetSeries binds fetched samples for a channel.
func (s *Store) SetSeries(channel string, samples []model.SamplePair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[channel] = samples
}

// Series returns the samples bound for a channel, if any.
func (s *Store) Series(channel string) ([]model.SamplePair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples, ok := s.series[channel]
	return samples, ok
}

// SetFlag binds resolved segments for a data-quality flag.
func (s *Store) SetFlag(flag string, segs FlagSegments) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flag] = segs
}

// Flag returns the segments bound for a flag, if any.
func (s *Store) Flag(flag string) (FlagSegments, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segs, ok := s.flags[flag]
	return segs, ok
}

// SetTriggers binds a fetched event table.
func (s *Store) SetTriggers(key TriggerKey, events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[key] = events
}

// Triggers returns the event table for a stream, if any.
func (s *Store) Triggers(key TriggerKey) ([]Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.triggers[key]
	return events, ok
}

// SeriesIn returns the channel's samples restricted to the given intervals.
func (s *Store) SeriesIn(channel string, within segments.List) []model.SamplePair {
	samples, ok := s.Series(channel)
	if !ok {
		return nil
	}
	out := make([]model.SamplePair, 0, len(samples))
	for _, sp := range samples {
		if within.Contains(int64(sp.Timestamp) / 1000) {
			out = append(out, sp)
		}
	}
	return out
}

// TriggersIn returns the stream's events restricted to the given intervals.
func (s *Store) TriggersIn(key TriggerKey, within segments.List) []Event {
	events, ok := s.Triggers(key)
	if !ok {
		return nil
	}
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if within.Contains(int64(ev.Time) / 1000) {
			out = append(out, ev)
		}
	}
	return out
}
