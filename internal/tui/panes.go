package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"cidash/internal/interactive"
	"cidash/internal/model"
	"cidash/internal/params"
)

const (
	tabCommits = iota
	tabBuilds
)

// tab is the part of a paginated view the model drives. Controller methods
// are promoted from the embedded controller in pane.
type tab interface {
	Key() string
	Title() string
	Columns(width int) []table.Column
	Rows() []table.Row
	Link(i int) string
	Detail(i, width int) string

	HasRunInitialize() bool
	Initialize(initial params.Params)
	UpdateWithParams(patch params.Params, resetPage bool)
	Refresh()
	SetURLSync(enabled bool)
	UpdateWindowURL()
	HasNotLoadedInitialData() bool
	IsLoadingUpdatedData() bool
	DataForErrorMessage() *interactive.ErrorInfo
	CurrentParams() params.Params
	PaginationLinks() []interactive.Link
	NextPage() bool
	PreviousPage() bool
	Subscribe(fn func()) (cancel func())
	Close()
}

type pane[T any] struct {
	*interactive.Controller[T]
	key     string
	title   string
	columns func(width int) []table.Column
	row     func(T) table.Row
	link    func(T) string
	detail  func(T, int) string
}

func (p *pane[T]) Key() string                      { return p.key }
func (p *pane[T]) Title() string                    { return p.title }
func (p *pane[T]) Columns(width int) []table.Column { return p.columns(width) }

func (p *pane[T]) Rows() []table.Row {
	r := p.DataToShow()
	if r == nil {
		return nil
	}
	rows := make([]table.Row, len(r.Data))
	for i, v := range r.Data {
		rows[i] = p.row(v)
	}
	return rows
}

func (p *pane[T]) item(i int) (T, bool) {
	var zero T
	r := p.DataToShow()
	if r == nil || i < 0 || i >= len(r.Data) {
		return zero, false
	}
	return r.Data[i], true
}

func (p *pane[T]) Link(i int) string {
	v, ok := p.item(i)
	if !ok {
		return ""
	}
	return p.link(v)
}

func (p *pane[T]) Detail(i, width int) string {
	v, ok := p.item(i)
	if !ok {
		return ""
	}
	return p.detail(v, width)
}

// flexWidth is what is left for the one stretchy column once the fixed ones
// and the table's cell padding are taken.
func flexWidth(total int, fixed ...int) int {
	w := total - 4
	for _, f := range fixed {
		w -= f + 2
	}
	w -= 2
	if w < 12 {
		return 12
	}
	return w
}

// — commits —————————————————————————————————————————————————————————————————

func commitColumns(width int) []table.Column {
	return []table.Column{
		{Title: "Status", Width: 12},
		{Title: "History", Width: 7},
		{Title: "SHA", Width: 8},
		{Title: "Message", Width: flexWidth(width, 12, 7, 8, 16, 12)},
		{Title: "Author", Width: 16},
		{Title: "Committed", Width: 12},
	}
}

func commitRow(c model.Commit) table.Row {
	status := "—"
	if b := c.LastBuild(); b != nil {
		status = statusText(b.Status)
	}
	title := c.Title()
	if c.SkippedQueue() {
		title = "⤼ " + title
	}
	return table.Row{
		status,
		buildDots(c.Builds),
		c.ShortSHA(),
		title,
		c.Author.Name,
		formatTime(c.DateCommitted),
	}
}

// buildDots summarises the builds before the latest one, newest first.
func buildDots(builds []model.Build) string {
	if len(builds) < 2 {
		return ""
	}
	prev := builds[1:]
	if len(prev) > 5 {
		prev = prev[:5]
	}
	var b strings.Builder
	for _, build := range prev {
		switch build.Status {
		case "success":
			b.WriteString("●")
		case "failed":
			b.WriteString("✗")
		case "running", "pending":
			b.WriteString("◌")
		default:
			b.WriteString("·")
		}
	}
	return b.String()
}

func commitDetail(c model.Commit, width int) string {
	var b strings.Builder
	b.WriteString(detailHeadStyle.Render(truncate(c.Title(), width)) + "\n")
	b.WriteString(row("Commit   ", c.SHA))
	b.WriteString(row("Author   ", authorText(c.Author)))
	if c.SkippedQueue() {
		b.WriteString(row("Queue    ", warnStyle.Render("skipped the commit queue")))
	}
	if last := c.LastBuild(); last != nil {
		b.WriteString(row("Build    ", pipelineLabel(last.Status)+dimStyle.Render("  "+last.Name)))
	} else {
		b.WriteString(row("Build    ", dimStyle.Render("no builds")))
	}
	return b.String()
}

// — builds ——————————————————————————————————————————————————————————————————

func buildColumns(width int) []table.Column {
	return []table.Column{
		{Title: "Result", Width: 12},
		{Title: "Name", Width: flexWidth(width, 12, 10, 9, 16, 12)},
		{Title: "Target", Width: 10},
		{Title: "Cause", Width: 9},
		{Title: "Author", Width: 16},
		{Title: "Started", Width: 12},
	}
}

func buildRow(b model.Build) table.Row {
	return table.Row{
		statusText(b.Status),
		b.Name,
		targetText(b.Target),
		b.Cause,
		b.Author.Name,
		formatTime(b.DateStarted),
	}
}

func targetText(t model.Target) string {
	switch {
	case t.ArcTestBuild:
		return "arc test"
	case t.DiffID != "":
		return t.DiffID
	case len(t.Revision) > 7:
		return t.Revision[:7]
	default:
		return t.Revision
	}
}

func buildDetail(b model.Build, width int) string {
	var s strings.Builder
	s.WriteString(detailHeadStyle.Render(truncate(b.Name, width)) + "\n")
	s.WriteString(row("Result   ", pipelineLabel(b.Status)))
	s.WriteString(row("Target   ", targetText(b.Target)))
	if b.Target.DiffURL != "" {
		s.WriteString(row("Diff     ", b.Target.DiffURL))
	}
	s.WriteString(row("Author   ", authorText(b.Author)))
	if b.Cause != "" {
		s.WriteString(row("Cause    ", b.Cause))
	}
	return s.String()
}

// — shared helpers ——————————————————————————————————————————————————————————

func row(lbl, val string) string {
	return labelStyle.Render(lbl) + val + "\n"
}

func authorText(a model.Author) string {
	if a.Email == "" {
		return a.Name
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("Jan 02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
