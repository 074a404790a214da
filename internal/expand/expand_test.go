package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/detsumm/internal/config"
	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/segments"
)

func testModel() *config.Model {
	return &config.Model{
		Report: config.Report{Start: 1000000000, End: 1000003600},
		States: []*config.StateDef{
			{Name: "Science", Definition: "L1:DMT-SCIENCE:1"},
			{Name: "Locked", Definition: "L1:DMT-LOCKED:1"},
		},
		PlotDefs: map[string]*config.PlotDef{
			"strain-spectrogram": {
				Name:    "strain-spectrogram",
				Type:    "spectrogram",
				Sources: []string{"L1:GDS-CALIB_STRAIN"},
			},
		},
		Tabs: []*config.TabSection{
			{
				Name:   "Sensing",
				States: []string{"Science", "Locked"},
				Entries: []config.Entry{
					{Index: 1, Definition: "timeseries L1:LSC-DARM_ERR,L1:LSC-MICH_ERR"},
					{Index: 2, Definition: "strain-spectrogram"},
				},
				Options: map[string]string{
					"1-logy": "true",
					"1-ylim": "0.1, 100",
				},
			},
		},
	}
}

func newEnv(t *testing.T) *plot.Env {
	t.Helper()
	return &plot.Env{Store: datastore.New(), OutDir: t.TempDir()}
}

func TestExpand_PerStateRepetition(t *testing.T) {
	model := testModel()
	e := New(newEnv(t), model)

	tabs, err := e.Expand(model)
	require.NoError(t, err)
	require.Len(t, tabs, 1)

	plots := tabs[0].Plots()
	// Two entries, two states: one job per (definition, state) pair.
	require.Len(t, plots, 4)
	assert.Equal(t, plot.TimeSeries, plots[0].Kind())
	assert.Equal(t, "Science", plots[0].State().Name)
	assert.Equal(t, "Locked", plots[1].State().Name)
	assert.Equal(t, []string{"L1:LSC-DARM_ERR", "L1:LSC-MICH_ERR"}, plots[0].Sources())

	// Entry 2 resolved through the shared definition.
	assert.Equal(t, plot.Spectrogram, plots[2].Kind())
	assert.Equal(t, []string{"L1:GDS-CALIB_STRAIN"}, plots[2].Sources())

	// Overrides attach to entry 1 jobs only.
	assert.True(t, plots[0].BoolOption("logy", false))
	_, hasYlim := plots[0].Option("ylim")
	assert.True(t, hasYlim)
	_, leaked := plots[2].Option("logy")
	assert.False(t, leaked)
}

func TestExpand_DeterministicDoubleExpansion(t *testing.T) {
	model := testModel()
	env := newEnv(t)

	first, err := New(env, model).Expand(model)
	require.NoError(t, err)
	second, err := New(env, model).Expand(model)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		a, b := first[i].Plots(), second[i].Plots()
		require.Len(t, b, len(a))
		for j := range a {
			assert.Equal(t, a[j].Kind(), b[j].Kind())
			assert.Equal(t, a[j].Sources(), b[j].Sources())
			assert.Equal(t, a[j].OutputFile(), b[j].OutputFile())
		}
	}
}

func TestExpand_AllDataEntryIsUnbound(t *testing.T) {
	model := testModel()
	model.Tabs[0].Options["2-all-data"] = "true"

	tabs, err := New(newEnv(t), model).Expand(model)
	require.NoError(t, err)

	plots := tabs[0].Plots()
	// Entry 1 still expands per state; entry 2 collapses to one unbound job.
	require.Len(t, plots, 3)
	assert.Nil(t, plots[2].State())
}

func TestExpand_SubplotClones(t *testing.T) {
	model := testModel()
	model.Tabs[0].States = []string{"Science"}
	model.Tabs[0].Subplot = &config.SubplotSpec{Source: 1, Duration: 1800}

	tabs, err := New(newEnv(t), model).Expand(model)
	require.NoError(t, err)

	subs := tabs[0].Subplots()
	require.Len(t, subs, 2)
	assert.Equal(t, segments.NewSpan(1000000000, 1000001800), subs[0].Span())
	assert.Equal(t, segments.NewSpan(1000001800, 1000003600), subs[1].Span())
	for _, sub := range subs {
		assert.Equal(t, plot.TimeSeries, sub.Kind())
		assert.Equal(t, "Science", sub.State().Name)
		assert.True(t, sub.Pending())
	}
	// Clones carry distinct artifact identifiers from the parent.
	assert.NotEqual(t, tabs[0].Plots()[0].OutputFile(), subs[0].OutputFile())
	assert.NotEqual(t, subs[0].OutputFile(), subs[1].OutputFile())
}

func TestExpand_TabWithoutStatesGetsAllData(t *testing.T) {
	model := testModel()
	model.Tabs[0].States = nil

	tabs, err := New(newEnv(t), model).Expand(model)
	require.NoError(t, err)

	states := tabs[0].States()
	require.Len(t, states, 1)
	assert.True(t, states[0].IsAll())
}

func TestExpand_ParentWiring(t *testing.T) {
	model := testModel()
	model.Tabs = append(model.Tabs, &config.TabSection{Name: "LSC"})
	model.Tabs[0].Parent = "LSC"

	tabs, err := New(newEnv(t), model).Expand(model)
	require.NoError(t, err)
	require.Len(t, tabs, 2)

	sensing, lsc := tabs[0], tabs[1]
	assert.Same(t, lsc, sensing.Parent())
	require.Len(t, lsc.Children(), 1)
	assert.Same(t, sensing, lsc.Children()[0])
}

func TestExpand_SharedStateInstances(t *testing.T) {
	model := testModel()
	model.Tabs = append(model.Tabs, &config.TabSection{
		Name:   "Other",
		States: []string{"Science"},
	})

	e := New(newEnv(t), model)
	tabs, err := e.Expand(model)
	require.NoError(t, err)

	// Both tabs reference the same Science instance, so it resolves once.
	assert.Same(t, tabs[0].States()[0], tabs[1].States()[0])
	// Distinct states incl. the all-data state, which comes first.
	require.Len(t, e.States(), 3)
	assert.True(t, e.States()[0].IsAll())
}

func TestResolveKind(t *testing.T) {
	kind, opts, err := resolveKind("timeseries")
	require.NoError(t, err)
	assert.Equal(t, plot.TimeSeries, kind)
	assert.Empty(t, opts)

	kind, opts, err = resolveKind("omicron-snr-histogram")
	require.NoError(t, err)
	assert.Equal(t, plot.TriggerHistogram, kind)
	assert.Equal(t, "omicron", opts["etg"].AsString())
	assert.Equal(t, "snr", opts["column"].AsString())

	// Reserved histogram kinds resolve by exact name, not decomposition.
	kind, opts, err = resolveKind("range-histogram")
	require.NoError(t, err)
	assert.Equal(t, plot.RangeHistogram, kind)
	assert.Empty(t, opts)

	kind, opts, err = resolveKind("kleinewelle-rate")
	require.NoError(t, err)
	assert.Equal(t, plot.TriggerRate, kind)
	assert.Equal(t, "kleinewelle", opts["etg"].AsString())

	_, _, err = resolveKind("hexbin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plot category")
}

func TestExpand_ConfigErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Model)
		wantErr string
	}{
		{
			name: "unknown category",
			mutate: func(m *config.Model) {
				m.Tabs[0].Entries[0].Definition = "hexbin X1:A"
			},
			wantErr: "unknown plot category",
		},
		{
			name: "unknown definition reference",
			mutate: func(m *config.Model) {
				m.Tabs[0].Entries[0].Definition = "missing-def"
			},
			wantErr: "neither a plot definition",
		},
		{
			name: "malformed override literal",
			mutate: func(m *config.Model) {
				m.Tabs[0].Options["1-ylim"] = "$(rm -rf /)"
			},
			wantErr: "option",
		},
		{
			name: "unknown state",
			mutate: func(m *config.Model) {
				m.Tabs[0].States = []string{"Nope"}
			},
			wantErr: "unknown state",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := testModel()
			tc.mutate(model)
			_, err := New(newEnv(t), model).Expand(model)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "Sensing", cfgErr.Tab)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
