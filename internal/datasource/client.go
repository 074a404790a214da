// Package datasource implements the run's external data collaborators
// against an HTTP JSON data service: state intervals from the segment
// database, channel samples, and event-trigger tables. Fetched data is bound
// into the run datastore; plots never talk to the network themselves.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/common/model"

	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/segments"
)

// Client talks to the data service. It satisfies state.SegmentSource.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a client for the service at baseURL. A nil hc gets a
// default client with a request timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: baseURL, hc: hc}
}

// segmentsResponse is the wire form of one flag query: interval pairs in
// integer seconds.
type segmentsResponse struct {
	Known  [][2]int64 `json:"known"`
	Active [][2]int64 `json:"active"`
}

// seriesResponse carries one channel's samples; each sample is a
// [seconds, "value"] pair.
type seriesResponse struct {
	Samples []model.SamplePair `json:"samples"`
}

// triggersResponse carries one event stream.
type triggersResponse struct {
	Events []struct {
		Time    model.Time         `json:"time"`
		Columns map[string]float64 `json:"columns"`
	} `json:"events"`
}

// FetchStateIntervals queries the segment database for one flag expression
// over the window.
func (c *Client) FetchStateIntervals(ctx context.Context, definition string, window segments.Span) (segments.List, segments.List, error) {
	var resp segmentsResponse
	if err := c.get(ctx, "/segments", url.Values{"flag": {definition}}, window, &resp); err != nil {
		return nil, nil, fmt.Errorf("fetching intervals for %q: %w", definition, err)
	}
	return toList(resp.Known), toList(resp.Active), nil
}

// FetchChannelData fetches samples for every channel and binds them into the
// store. A channel the service has no data for binds an empty series, so
// renderers can distinguish "fetched, empty" from "never fetched".
func (c *Client) FetchChannelData(ctx context.Context, store *datastore.Store, channels []string, window segments.Span) error {
	logger := ctxlog.FromContext(ctx)
	for _, ch := range channels {
		var resp seriesResponse
		if err := c.get(ctx, "/series", url.Values{"channel": {ch}}, window, &resp); err != nil {
			return fmt.Errorf("fetching channel %q: %w", ch, err)
		}
		store.SetSeries(ch, resp.Samples)
		logger.Debug("Channel data bound.", "channel", ch, "samples", len(resp.Samples))
	}
	return nil
}

// FetchFlagSegments fetches interval sets for every flag and binds them into
// the store.
func (c *Client) FetchFlagSegments(ctx context.Context, store *datastore.Store, flags []string, window segments.Span) error {
	logger := ctxlog.FromContext(ctx)
	for _, flag := range flags {
		var resp segmentsResponse
		if err := c.get(ctx, "/segments", url.Values{"flag": {flag}}, window, &resp); err != nil {
			return fmt.Errorf("fetching flag %q: %w", flag, err)
		}
		store.SetFlag(flag, datastore.FlagSegments{
			Known:  toList(resp.Known),
			Active: toList(resp.Active),
		})
		logger.Debug("Flag segments bound.", "flag", flag)
	}
	return nil
}

// FetchTriggers fetches the event table for every stream and binds it into
// the store.
func (c *Client) FetchTriggers(ctx context.Context, store *datastore.Store, keys []datastore.TriggerKey, window segments.Span) error {
	logger := ctxlog.FromContext(ctx)
	for _, key := range keys {
		var resp triggersResponse
		q := url.Values{"etg": {key.ETG}, "channel": {key.Channel}}
		if err := c.get(ctx, "/triggers", q, window, &resp); err != nil {
			return fmt.Errorf("fetching triggers %s/%s: %w", key.ETG, key.Channel, err)
		}
		events := make([]datastore.Event, 0, len(resp.Events))
		for _, ev := range resp.Events {
			events = append(events, datastore.Event{Time: ev.Time, Columns: ev.Columns})
		}
		store.SetTriggers(key, events)
		logger.Debug("Triggers bound.", "etg", key.ETG, "channel", key.Channel, "events", len(events))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, window segments.Span, out any) error {
	query.Set("start", strconv.FormatInt(window.Start, 10))
	query.Set("end", strconv.FormatInt(window.End, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("data service returned %s: %s", resp.Status, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toList(pairs [][2]int64) segments.List {
	spans := make([]segments.Span, 0, len(pairs))
	for _, p := range pairs {
		spans = append(spans, segments.NewSpan(p[0], p[1]))
	}
	return segments.NewList(spans...)
}
