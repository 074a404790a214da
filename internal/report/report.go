// Package report writes the HTML pages of one run: a page per (tab, state)
// pair listing the state's artifacts, and a placeholder page for states whose
// data has not been processed yet.
package report

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/detsumm/internal/ctxlog"
	"github.com/vk/detsumm/internal/plot"
	"github.com/vk/detsumm/internal/state"
	"github.com/vk/detsumm/internal/tab"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var reSlug = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Writer renders report pages under one output directory.
type Writer struct {
	outDir string
	title  string
	tmpl   *template.Template
}

// NewWriter parses the embedded templates and returns a page writer.
func NewWriter(outDir, title string) (*Writer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing report templates: %w", err)
	}
	return &Writer{outDir: outDir, title: title, tmpl: tmpl}, nil
}

// pageData feeds the page and placeholder templates.
type pageData struct {
	Title    string
	TabName  string
	State    string
	Start    int64
	End      int64
	Plots    []plotEntry
	Subplots []plotEntry
	Channels []string
	Flags    []string
}

type plotEntry struct {
	Kind     plot.Kind
	Artifact string
	Start    int64
	Duration int64
}

// WritePage writes the page for one (tab, state) pair. When primary is true
// the page also becomes the tab's index.html.
func (w *Writer) WritePage(ctx context.Context, t *tab.Tab, st *state.State, primary bool) error {
	data := pageData{
		Title:    w.title,
		TabName:  t.Name(),
		State:    st.Name,
		Start:    t.Span().Start,
		End:      t.Span().End,
		Channels: t.Channels(allKinds(), tab.IncludeRendered()),
		Flags:    t.Flags(allKinds(), tab.IncludeRendered()),
	}
	pageDir := filepath.Join(w.outDir, filepath.FromSlash(t.Path()))
	for _, p := range t.Plots() {
		if owned(p, st) {
			data.Plots = append(data.Plots, toEntry(pageDir, p))
		}
	}
	for _, p := range t.Subplots() {
		if owned(p, st) {
			data.Subplots = append(data.Subplots, toEntry(pageDir, p))
		}
	}

	name := slug(st.Name) + ".html"
	if err := w.render(ctx, t, name, "page.html.tmpl", data); err != nil {
		return err
	}
	if primary {
		return w.render(ctx, t, "index.html", "page.html.tmpl", data)
	}
	return nil
}

// WritePlaceholder writes the "not generated yet" page for a state whose
// data was not processed this run, distinguishing it from a failed one.
func (w *Writer) WritePlaceholder(ctx context.Context, t *tab.Tab, st *state.State) error {
	data := pageData{
		Title:   w.title,
		TabName: t.Name(),
		State:   st.Name,
		Start:   t.Span().Start,
		End:     t.Span().End,
	}
	return w.render(ctx, t, slug(st.Name)+".html", "placeholder.html.tmpl", data)
}

func (w *Writer) render(ctx context.Context, t *tab.Tab, name, tmplName string, data pageData) error {
	dir := filepath.Join(w.outDir, filepath.FromSlash(t.Path()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating page directory: %w", err)
	}
	out := filepath.Join(dir, name)
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating page %s: %w", out, err)
	}
	defer f.Close()

	if err := w.tmpl.ExecuteTemplate(f, tmplName, data); err != nil {
		return fmt.Errorf("rendering page %s: %w", out, err)
	}
	ctxlog.FromContext(ctx).Debug("Page written.", "file", out, "template", tmplName)
	return nil
}

func owned(p *plot.Plot, st *state.State) bool {
	return p.State() == nil || p.State() == st
}

func toEntry(pageDir string, p *plot.Plot) plotEntry {
	href, err := filepath.Rel(pageDir, p.OutputFile())
	if err != nil {
		href = filepath.Base(p.OutputFile())
	}
	return plotEntry{
		Kind:     p.Kind(),
		Artifact: filepath.ToSlash(href),
		Start:    p.Span().Start,
		Duration: p.Span().Duration(),
	}
}

func allKinds() []plot.Kind {
	kinds := append([]plot.Kind{}, plot.ChannelKinds()...)
	kinds = append(kinds, plot.SegmentKinds()...)
	return append(kinds, plot.TriggerKinds()...)
}

func slug(name string) string {
	return strings.ToLower(reSlug.ReplaceAllString(name, "_"))
}
