package plot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
)

var window = segments.NewSpan(100, 200)

func newEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{Store: datastore.New(), OutDir: t.TempDir()}
}

func TestNew_Validation(t *testing.T) {
	env := newEnv(t)

	_, err := New(env, "hexbin", []string{"X1:A"}, nil, window, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plot kind")

	_, err = New(env, TimeSeries, nil, nil, window, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data sources")
}

func TestConcurrencySafety(t *testing.T) {
	env := newEnv(t)
	for kind, wantSafe := range map[Kind]bool{
		TimeSeries:       true,
		Spectrogram:      true,
		StateVector:      true,
		Triggers:         true,
		Segments:         false,
		SegmentHistogram: false,
	} {
		p, err := New(env, kind, []string{"X1:A"}, nil, window, nil)
		require.NoError(t, err)
		assert.Equal(t, wantSafe, p.ConcurrencySafe(), "kind %s", kind)
	}
}

func TestOutputFile_Identity(t *testing.T) {
	env := newEnv(t)
	science := state.New("Science Mode", "X1:SCIENCE:1")

	p, err := New(env, TimeSeries, []string{"X1:LSC-DARM_ERR"}, science, window, nil)
	require.NoError(t, err)

	got := p.OutputFile()
	assert.Equal(t, filepath.Join(env.OutDir, "X1_LSC_DARM_ERR-timeseries-science_mode-100-100.json"), got)
	// Cached: stable across calls.
	assert.Equal(t, got, p.OutputFile())

	unbound, err := New(env, TimeSeries, []string{"X1:LSC-DARM_ERR"}, nil, window, nil)
	require.NoError(t, err)
	assert.Contains(t, unbound.OutputFile(), "-all-")
}

func TestCloneSpan(t *testing.T) {
	env := newEnv(t)
	p, err := New(env, TimeSeries, []string{"X1:A"}, nil, window, map[string]cty.Value{
		"logy": cty.True,
	})
	require.NoError(t, err)
	require.NoError(t, p.Render(context.Background()))
	require.False(t, p.Pending())

	clone := p.CloneSpan(segments.NewSpan(100, 150))
	assert.True(t, clone.Pending(), "clone is an independent pending job")
	assert.Equal(t, segments.NewSpan(100, 150), clone.Span())
	assert.True(t, clone.BoolOption("logy", false))
	assert.NotEqual(t, p.OutputFile(), clone.OutputFile())
	assert.False(t, p.Pending(), "parent unaffected")
}

func TestRender_MarksAttempted(t *testing.T) {
	env := newEnv(t)
	p, err := New(env, TimeSeries, []string{"X1:A"}, nil, window, nil)
	require.NoError(t, err)

	require.True(t, p.Pending())
	require.NoError(t, p.Render(context.Background()))
	assert.False(t, p.Pending())
}

func TestSeriesRender_Artifact(t *testing.T) {
	env := newEnv(t)
	env.Store.SetSeries("X1:A", []model.SamplePair{
		{Timestamp: model.TimeFromUnix(110), Value: 1.0},
		{Timestamp: model.TimeFromUnix(150), Value: 3.0},
	})

	p, err := New(env, TimeSeries, []string{"X1:A"}, nil, window, nil)
	require.NoError(t, err)
	require.NoError(t, p.Render(context.Background()))

	raw, err := os.ReadFile(p.OutputFile())
	require.NoError(t, err)
	var artifact struct {
		Kind    Kind     `json:"kind"`
		Span    [2]int64 `json:"span"`
		NoData  bool     `json:"no_data"`
		Summary []struct {
			Channel string  `json:"channel"`
			Samples int     `json:"samples"`
			Mean    float64 `json:"mean"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &artifact))

	assert.Equal(t, TimeSeries, artifact.Kind)
	assert.Equal(t, [2]int64{100, 200}, artifact.Span)
	assert.False(t, artifact.NoData)
	require.Len(t, artifact.Summary, 1)
	assert.Equal(t, 2, artifact.Summary[0].Samples)
	assert.Equal(t, 2.0, artifact.Summary[0].Mean)
}

func TestSeriesRender_NoData(t *testing.T) {
	env := newEnv(t)
	p, err := New(env, TimeSeries, []string{"X1:MISSING"}, nil, window, nil)
	require.NoError(t, err)
	require.NoError(t, p.Render(context.Background()))

	raw, err := os.ReadFile(p.OutputFile())
	require.NoError(t, err)
	var artifact struct {
		NoData bool `json:"no_data"`
	}
	require.NoError(t, json.Unmarshal(raw, &artifact))
	assert.True(t, artifact.NoData)
}

func TestSegmentsRender_DutyCycle(t *testing.T) {
	env := newEnv(t)
	env.Store.SetFlag("X1:SCIENCE:1", datastore.FlagSegments{
		Known:  segments.NewList(segments.NewSpan(100, 200)),
		Active: segments.NewList(segments.NewSpan(100, 150)),
	})

	p, err := New(env, Segments, []string{"X1:SCIENCE:1"}, nil, window, nil)
	require.NoError(t, err)
	require.NoError(t, p.Render(context.Background()))

	raw, err := os.ReadFile(p.OutputFile())
	require.NoError(t, err)
	var artifact struct {
		Summary []struct {
			Flag      string  `json:"flag"`
			KnownSec  int64   `json:"known_seconds"`
			ActiveSec int64   `json:"active_seconds"`
			DutyPct   float64 `json:"duty_percent"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &artifact))
	require.Len(t, artifact.Summary, 1)
	assert.Equal(t, int64(100), artifact.Summary[0].KnownSec)
	assert.Equal(t, int64(50), artifact.Summary[0].ActiveSec)
	assert.Equal(t, 50.0, artifact.Summary[0].DutyPct)
}

func TestTriggerRender_RateAndHistogram(t *testing.T) {
	env := newEnv(t)
	key := datastore.TriggerKey{ETG: "omicron", Channel: "X1:A"}
	env.Store.SetTriggers(key, []datastore.Event{
		{Time: model.TimeFromUnix(110), Columns: map[string]float64{"snr": 5}},
		{Time: model.TimeFromUnix(120), Columns: map[string]float64{"snr": 7}},
		{Time: model.TimeFromUnix(130), Columns: map[string]float64{"snr": 9}},
	})
	opts := map[string]cty.Value{"etg": cty.StringVal("omicron")}

	rate, err := New(env, TriggerRate, []string{"X1:A"}, nil, window, opts)
	require.NoError(t, err)
	require.NoError(t, rate.Render(context.Background()))

	raw, err := os.ReadFile(rate.OutputFile())
	require.NoError(t, err)
	var rateArtifact struct {
		Summary []struct {
			Events int     `json:"events"`
			Rate   float64 `json:"rate_hz"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &rateArtifact))
	require.Len(t, rateArtifact.Summary, 1)
	assert.Equal(t, 3, rateArtifact.Summary[0].Events)
	assert.Equal(t, 0.03, rateArtifact.Summary[0].Rate)

	histOpts := map[string]cty.Value{
		"etg":    cty.StringVal("omicron"),
		"column": cty.StringVal("snr"),
	}
	hist, err := New(env, TriggerHistogram, []string{"X1:A"}, nil, window, histOpts)
	require.NoError(t, err)
	require.NoError(t, hist.Render(context.Background()))

	raw, err = os.ReadFile(hist.OutputFile())
	require.NoError(t, err)
	var histArtifact struct {
		Summary []struct {
			Column string `json:"column"`
			Bins   []struct {
				Count int `json:"count"`
			} `json:"bins"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &histArtifact))
	require.Len(t, histArtifact.Summary, 1)
	assert.Equal(t, "snr", histArtifact.Summary[0].Column)
	total := 0
	for _, b := range histArtifact.Summary[0].Bins {
		total += b.Count
	}
	assert.Equal(t, 3, total)
}

func TestStateActiveClipsSummary(t *testing.T) {
	env := newEnv(t)
	env.Store.SetSeries("X1:A", []model.SamplePair{
		{Timestamp: model.TimeFromUnix(110), Value: 1.0},
		{Timestamp: model.TimeFromUnix(190), Value: 100.0},
	})
	science := state.New("Science", "X1:SCIENCE:1")
	science.Active = segments.NewList(segments.NewSpan(100, 150))

	p, err := New(env, TimeSeries, []string{"X1:A"}, science, window, nil)
	require.NoError(t, err)
	require.NoError(t, p.Render(context.Background()))

	raw, err := os.ReadFile(p.OutputFile())
	require.NoError(t, err)
	var artifact struct {
		Summary []struct {
			Samples int `json:"samples"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &artifact))
	require.Len(t, artifact.Summary, 1)
	// The sample outside the state's active interval is excluded.
	assert.Equal(t, 1, artifact.Summary[0].Samples)
}
