package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/detsumm/internal/datastore"
	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/segments"
	"github.com/vk/detsumm/internal/state"
	"github.com/vk/detsumm/internal/tab"
)

func buildTab(t *testing.T, outDir string) (*tab.Tab, *state.State) {
	t.Helper()
	window := segments.NewSpan(100, 200)
	science := state.New("Science", "X1:SCIENCE:1")

	tb := tab.New("Sensing", window)
	tb.AddState(science)

	env := &plot.Env{Store: datastore.New(), OutDir: outDir}
	p, err := plot.New(env, plot.TimeSeries, []string{"X1:A"}, science, window, nil)
	require.NoError(t, err)
	tb.AddPlot(p)
	return tb, science
}

func TestWritePage(t *testing.T) {
	dir := t.TempDir()
	tb, science := buildTab(t, dir)

	w, err := NewWriter(dir, "X1 Summary")
	require.NoError(t, err)
	require.NoError(t, w.WritePage(context.Background(), tb, science, true))

	page, err := os.ReadFile(filepath.Join(dir, "sensing", "science.html"))
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "X1 Summary")
	assert.Contains(t, html, "Sensing")
	assert.Contains(t, html, "Science")
	assert.Contains(t, html, "timeseries")
	assert.Contains(t, html, "X1:A")

	// Primary state doubles as the tab index.
	index, err := os.ReadFile(filepath.Join(dir, "sensing", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, html, string(index))
}

func TestWritePage_SummaryTabAtRoot(t *testing.T) {
	dir := t.TempDir()
	window := segments.NewSpan(100, 200)
	tb := tab.New("Summary", window)
	science := state.New("Science", "X1:SCIENCE:1")
	tb.AddState(science)

	w, err := NewWriter(dir, "X1 Summary")
	require.NoError(t, err)
	require.NoError(t, w.WritePage(context.Background(), tb, science, false))

	_, err = os.Stat(filepath.Join(dir, "science.html"))
	assert.NoError(t, err)
}

func TestWritePlaceholder(t *testing.T) {
	dir := t.TempDir()
	tb, science := buildTab(t, dir)

	w, err := NewWriter(dir, "X1 Summary")
	require.NoError(t, err)
	require.NoError(t, w.WritePlaceholder(context.Background(), tb, science))

	page, err := os.ReadFile(filepath.Join(dir, "sensing", "science.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "These data have not been generated yet")
}
