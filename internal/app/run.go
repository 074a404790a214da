package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/detsumm/internal/cache"
	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/datasource"
	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/expand"
	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/report"
	"github.com/vk/detsumm/internal/scheduler"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
	"github.com/vk/detsumm/internal/tab"
)

// Run executes one report run: expand the configuration into jobs, resolve
// states, then render each state pass through the scheduler and write the
// report pages. Render failures are collected per artifact and surfaced
// after the run; they never abort sibling jobs.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	window := segments.NewSpan(a.model.Report.Start, a.model.Report.End)
	outDir := a.model.Report.Output
	store := datastore.New()
	env := &plot.Env{Store: store, OutDir: filepath.Join(outDir, "plots")}

	expander := expand.New(env, a.model)
	tabs, err := expander.Expand(a.model)
	if err != nil {
		return err
	}
	a.logger.Debug("Configuration expanded.", "tabs", len(tabs), "states", len(expander.States()))

	var client *datasource.Client
	var source state.SegmentSource
	if appConfig.DataURL != "" {
		client = datasource.NewClient(appConfig.DataURL, nil)
		source = client
	}
	policy, err := state.ParsePolicy(appConfig.SegmentPolicy)
	if err != nil {
		return err
	}
	resolver := state.NewResolver(source, window, policy)
	if err := resolver.Resolve(ctx, expander.States()); err != nil {
		return err
	}
	for _, t := range tabs {
		t.SortStates()
	}

	// Pass order: most active states first; the all-data state's active
	// interval is the whole window, so it leads.
	passes := append([]*state.State{}, expander.States()...)
	state.SortByActive(passes)

	done := cache.NewCompletion()
	var renderErrs []error
	for _, st := range passes {
		for _, t := range tabs {
			jobs := passJobs(t, st)
			if len(jobs) == 0 {
				continue
			}
			if client != nil {
				if err := a.fetchFor(ctx, client, store, t, st, window); err != nil {
					return err
				}
			}
			stats, err := scheduler.Run(ctx, jobs, appConfig.WorkerCount, done)
			if err != nil {
				renderErrs = append(renderErrs, err)
			}
			a.logger.Info("State pass complete.", "tab", t.Name(), "state", st.Name,
				"rendered", stats.Rendered, "skipped", stats.Skipped, "workers", stats.Workers)
		}
	}

	if err := a.writePages(ctx, tabs); err != nil {
		return err
	}

	a.logger.Debug("App.Run method finished.")
	if len(renderErrs) > 0 {
		return fmt.Errorf("report incomplete: %w", errors.Join(renderErrs...))
	}
	return nil
}

// passJobs collects the tab's pending jobs owned by the pass state. The
// all-data pass also picks up unbound jobs.
func passJobs(t *tab.Tab, st *state.State) []scheduler.Job {
	var jobs []scheduler.Job
	collect := func(plots []*plot.Plot) {
		for _, p := range plots {
			if !p.Pending() {
				continue
			}
			if p.State() == st || (st.IsAll() && p.State() == nil) {
				jobs = append(jobs, p)
			}
		}
	}
	collect(t.Plots())
	collect(t.Subplots())
	return jobs
}

// fetchFor fetches and binds the data this pass's jobs require, skipping
// channels, flags, and streams already bound by an earlier pass.
func (a *App) fetchFor(ctx context.Context, client *datasource.Client, store *datastore.Store, t *tab.Tab, st *state.State, window segments.Span) error {
	logger := ctxlog.FromContext(ctx)
	owned := tab.Where(func(p *plot.Plot) bool {
		return p.State() == st || (st.IsAll() && p.State() == nil)
	})

	var channels []string
	for _, ch := range t.Channels(plot.ChannelKinds(), owned) {
		if _, ok := store.Series(ch); !ok {
			channels = append(channels, ch)
		}
	}
	if len(channels) > 0 {
		if err := client.FetchChannelData(ctx, store, channels, window); err != nil {
			return err
		}
	}

	var flags []string
	for _, flag := range t.Flags(plot.SegmentKinds(), owned) {
		if _, ok := store.Flag(flag); !ok {
			flags = append(flags, flag)
		}
	}
	if len(flags) > 0 {
		if err := client.FetchFlagSegments(ctx, store, flags, window); err != nil {
			return err
		}
	}

	var streams []datastore.TriggerKey
	for _, key := range t.TriggerStreams(plot.TriggerKinds(), owned) {
		if _, ok := store.Triggers(key); !ok {
			streams = append(streams, key)
		}
	}
	if len(streams) > 0 {
		if err := client.FetchTriggers(ctx, store, streams, window); err != nil {
			return err
		}
	}

	logger.Debug("Pass data bound.", "tab", t.Name(), "state", st.Name,
		"channels", len(channels), "flags", len(flags), "streams", len(streams))
	return nil
}

// writePages writes one page per (tab, state); the most active state becomes
// the tab index. A named state with no active time gets the placeholder page
// so "not generated yet" stays distinguishable from "failed".
func (a *App) writePages(ctx context.Context, tabs []*tab.Tab) error {
	writer, err := report.NewWriter(a.model.Report.Output, a.model.Report.Title)
	if err != nil {
		return err
	}
	for _, t := range tabs {
		for i, st := range t.States() {
			if !st.IsAll() && st.ActiveDuration() == 0 {
				if err := writer.WritePlaceholder(ctx, t, st); err != nil {
					return err
				}
				continue
			}
			if err := writer.WritePage(ctx, t, st, i == 0); err != nil {
				return err
			}
		}
	}
	return nil
}
