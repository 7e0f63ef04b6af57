package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"

	"cidash/internal/forge"
	"cidash/internal/interactive"
	"cidash/internal/logging"
	"cidash/internal/model"
	"cidash/internal/pagestate"
	"cidash/internal/params"
	"cidash/internal/reqcache"
	"cidash/internal/transport"
	"cidash/internal/urlstore"
)

const (
	branchKey = "branch"
	queryKey  = "query"
)

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateSearch
	stateBranchPicker
)

type branchState int

const (
	branchesLoading branchState = iota
	branchesReady
	branchesUnavailable
	branchesFailed
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("196")).
			PaddingLeft(1).
			MarginLeft(2)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// — messages ————————————————————————————————————————————————————————————————

type projectLoadedMsg struct {
	project *model.Project
	err     error
}

type branchesLoadedMsg struct {
	branches []model.Branch
	err      error
}

// stateChangedMsg means some controller transitioned and the table needs
// rebuilding.
type stateChangedMsg struct{}

type liveTickMsg struct {
	gen int
}

type copiedMsg struct {
	url string
	err error
}

// — list item ———————————————————————————————————————————————————————————————

type branchItem struct {
	name    string
	current bool
}

func (i branchItem) Title() string {
	if i.current {
		return "● " + i.name
	}
	return "  " + i.name
}

func (i branchItem) Description() string { return "" }
func (i branchItem) FilterValue() string { return i.name }

// — model ———————————————————————————————————————————————————————————————————

// Options wires the dashboard to its backend.
type Options struct {
	Forge     forge.Forge
	Transport transport.Loader
	// Location is the shareable URL. Its query seeds the initial tab.
	Location *urlstore.Location
	BaseURL  string
	Project  string
	// Tab is "commits" or "builds".
	Tab     string
	PerPage int

	FailureGrace  time.Duration
	CacheCapacity uint64

	LiveUpdate         bool
	LiveUpdateInterval time.Duration

	Logger logr.Logger
}

type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	log    logr.Logger

	commitCache *reqcache.Cache[*pagestate.Result[model.Commit]]
	buildCache  *reqcache.Cache[*pagestate.Result[model.Build]]

	project *model.Project
	tabs    []tab
	active  int
	changes chan struct{}
	unsub   []func()

	table    table.Model
	spinner  spinner.Model
	search   textinput.Model
	branches list.Model

	branchState branchState
	branchErr   error

	state   appState
	width   int
	height  int
	loading bool
	err     error
	status  string
	live    bool
	liveGen int
}

func New(opts Options) Model {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Location == nil {
		opts.Location, _ = urlstore.Parse(opts.BaseURL)
	}
	if opts.LiveUpdateInterval <= 0 {
		opts.LiveUpdateInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	cacheOpts := []reqcache.Option{
		reqcache.WithFailureGrace(opts.FailureGrace),
		reqcache.WithLogger(opts.Logger),
	}
	if opts.CacheCapacity > 0 {
		cacheOpts = append(cacheOpts, reqcache.WithCapacity(opts.CacheCapacity))
	}

	t := table.New(table.WithFocused(true))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "e.g. flaky test name"
	ti.CharLimit = 100

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Branches"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	active := tabCommits
	if opts.Tab == "builds" {
		active = tabBuilds
	}

	return Model{
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		log:         opts.Logger.WithName("tui"),
		commitCache: reqcache.New[*pagestate.Result[model.Commit]](cacheOpts...),
		buildCache:  reqcache.New[*pagestate.Result[model.Build]](cacheOpts...),
		active:      active,
		changes:     make(chan struct{}, 1),
		table:       t,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		search:      ti,
		branches:    l,
		loading:     true,
		live:        opts.LiveUpdate,
	}
}

// Close unmounts every view and stops the caches.
func (m Model) Close() {
	for _, fn := range m.unsub {
		fn()
	}
	for _, t := range m.tabs {
		t.Close()
	}
	m.cancel()
	m.commitCache.Stop()
	m.buildCache.Stop()
}

func (m Model) newTabs(p *model.Project) []tab {
	defaults := params.Params{}
	if m.opts.PerPage > 0 {
		defaults[forge.PerPageKey] = m.opts.PerPage
	}
	commitDefaults := defaults.Clone()
	if p.Repository.DefaultBranch != "" {
		commitDefaults[branchKey] = p.Repository.DefaultBranch
	}

	commits := &pane[model.Commit]{
		Controller: interactive.New(m.ctx, interactive.Config[model.Commit]{
			Name:      "commits",
			Endpoint:  forge.CommitsEndpoint(p.Slug),
			Defaults:  commitDefaults,
			Transport: m.opts.Transport,
			Cache:     m.commitCache,
			Decode:    forge.DecodeCommits,
			URL:       m.opts.Location,
			Logger:    m.opts.Logger,
		}),
		key:     "commits",
		title:   "Commits",
		columns: commitColumns,
		row:     commitRow,
		link: func(c model.Commit) string {
			if b := c.LastBuild(); b != nil && b.WebURL != "" {
				return m.absURL(b.WebURL)
			}
			return c.ExternalURL
		},
		detail: commitDetail,
	}
	builds := &pane[model.Build]{
		Controller: interactive.New(m.ctx, interactive.Config[model.Build]{
			Name:      "builds",
			Endpoint:  forge.BuildsEndpoint(p.Slug),
			Defaults:  defaults,
			Transport: m.opts.Transport,
			Cache:     m.buildCache,
			Decode:    forge.DecodeBuilds,
			URL:       m.opts.Location,
			Logger:    m.opts.Logger,
		}),
		key:     "builds",
		title:   "Builds",
		columns: buildColumns,
		row:     buildRow,
		link:    func(b model.Build) string { return m.absURL(b.WebURL) },
		detail:  buildDetail,
	}
	return []tab{commits, builds}
}

// absURL resolves a backend-relative link against the base URL.
func (m Model) absURL(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(m.opts.BaseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// tabPath is the web path a tab's URL points at.
func (m Model) tabPath(t tab) string {
	base, err := url.Parse(m.opts.BaseURL)
	if err != nil || m.project == nil {
		return "/"
	}
	return base.JoinPath("projects", m.project.Slug, t.Key()).Path + "/"
}

// — commands ————————————————————————————————————————————————————————————————

func fetchProjectCmd(ctx context.Context, f forge.Forge, slug string) tea.Cmd {
	return func() tea.Msg {
		if slug == "" {
			return projectLoadedMsg{err: errors.New("no project configured, pass --project")}
		}
		p, err := f.FetchProject(ctx, slug)
		return projectLoadedMsg{project: p, err: err}
	}
}

func fetchBranchesCmd(ctx context.Context, f forge.Forge, repoID string) tea.Cmd {
	return func() tea.Msg {
		bs, err := f.FetchBranches(ctx, repoID)
		return branchesLoadedMsg{branches: bs, err: err}
	}
}

// waitForChange blocks until a controller reports a transition. It is
// re-armed after every stateChangedMsg.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func liveTickCmd(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return liveTickMsg{gen: gen}
	})
}

func copyURLCmd(u string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{url: u, err: clipboard.WriteAll(u)}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		cmd.Run()
		return nil
	}
}

// notifier is the controllers' observer. It never blocks: one pending
// signal is enough since the table is rebuilt from current state.
func notifier(ch chan<- struct{}) func() {
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchProjectCmd(m.ctx, m.opts.Forge, m.opts.Project),
		m.spinner.Tick,
		waitForChange(m.changes),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case projectLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.project = msg.project
		m.mountTabs()
		cmds := []tea.Cmd{fetchBranchesCmd(m.ctx, m.opts.Forge, m.project.Repository.ID)}
		if m.live {
			cmds = append(cmds, liveTickCmd(m.opts.LiveUpdateInterval, m.liveGen))
		}
		return m, tea.Batch(cmds...)

	case branchesLoadedMsg:
		m.applyBranches(msg)
		return m, nil

	case stateChangedMsg:
		m.syncRows()
		return m, waitForChange(m.changes)

	case liveTickMsg:
		if !m.live || msg.gen != m.liveGen {
			return m, nil
		}
		if t := m.activeTab(); t != nil {
			t.Refresh()
		}
		return m, liveTickCmd(m.opts.LiveUpdateInterval, m.liveGen)

	case copiedMsg:
		if msg.err != nil {
			m.status = errStyle.Render("Copy failed: " + msg.err.Error())
		} else {
			m.status = okStyle.Render("Copied " + msg.url)
		}
		return m, nil
	}

	switch m.state {
	case stateSearch:
		return m.updateSearch(msg)
	case stateBranchPicker:
		return m.updateBranchPicker(msg)
	default:
		return m.updateNormal(msg)
	}
}

// mountTabs creates the views, hands the URL to the active one and seeds
// it from the URL. Other tabs start from their defaults when first shown.
func (m *Model) mountTabs() {
	m.tabs = m.newTabs(m.project)
	for i, t := range m.tabs {
		m.unsub = append(m.unsub, t.Subscribe(notifier(m.changes)))
		t.SetURLSync(i == m.active)
	}
	t := m.tabs[m.active]
	initial := interactive.ParamsFromURL(m.opts.Location, m.log)
	m.opts.Location.SetPath(m.tabPath(t))
	t.Initialize(initial)
	m.log.V(logging.VERBOSE).Info("Mounted", "project", m.project.Slug, "tab", t.Key())
	m.resetTable()
}

func (m *Model) applyBranches(msg branchesLoadedMsg) {
	if msg.err != nil {
		if resp := transport.ResponseOf(msg.err); resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			m.branchState = branchesUnavailable
			return
		}
		m.branchState = branchesFailed
		m.branchErr = msg.err
		m.log.V(logging.DEFAULT).Info("Branch list failed", "err", msg.err)
		return
	}
	m.branchState = branchesReady
	items := make([]list.Item, len(msg.branches))
	for i, b := range msg.branches {
		items[i] = branchItem{name: b.Name}
	}
	m.branches.SetItems(items)
}

func (m *Model) switchTab(i int) {
	if i == m.active || i < 0 || i >= len(m.tabs) {
		return
	}
	m.tabs[m.active].SetURLSync(false)
	m.active = i

	t := m.tabs[i]
	m.opts.Location.SetPath(m.tabPath(t))
	t.SetURLSync(true)
	if !t.HasRunInitialize() {
		t.Initialize(nil)
	}
	t.UpdateWindowURL()
	m.resetTable()
}

func (m Model) activeTab() tab {
	if m.active < 0 || m.active >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.active]
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	t := m.activeTab()
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		if t == nil {
			return m, nil
		}
		switch msg.String() {
		case "tab":
			m.switchTab((m.active + 1) % len(m.tabs))
			return m, nil
		case "shift+tab":
			m.switchTab((m.active + len(m.tabs) - 1) % len(m.tabs))
			return m, nil
		case "1":
			m.switchTab(tabCommits)
			return m, nil
		case "2":
			m.switchTab(tabBuilds)
			return m, nil
		case "right", "]":
			t.NextPage()
			return m, nil
		case "left", "[":
			t.PreviousPage()
			return m, nil
		case "r":
			t.Refresh()
			return m, nil
		case "L":
			m.live = !m.live
			m.liveGen++
			if m.live {
				m.status = okStyle.Render("Live updates on")
				return m, liveTickCmd(m.opts.LiveUpdateInterval, m.liveGen)
			}
			m.status = dimStyle.Render("Live updates off")
			return m, nil
		case "/":
			m.state = stateSearch
			m.search.SetValue(t.CurrentParams().String(queryKey))
			m.search.CursorEnd()
			return m, m.search.Focus()
		case "c":
			if m.active == tabCommits && m.branchState == branchesReady {
				m.state = stateBranchPicker
				m.markCurrentBranch()
			}
			return m, nil
		case "y":
			return m, copyURLCmd(m.opts.Location.String())
		case "o", "enter":
			if link := t.Link(m.table.Cursor()); link != "" {
				return m, openURLCmd(link)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.state = stateNormal
			m.search.Blur()
			return m, nil
		case "enter":
			m.state = stateNormal
			m.search.Blur()
			q := strings.TrimSpace(m.search.Value())
			patch := params.Params{queryKey: q}
			if q == "" {
				patch[queryKey] = nil
			}
			if t := m.activeTab(); t != nil {
				t.UpdateWithParams(patch, true)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateBranchPicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			m.state = stateNormal
			return m, nil
		case "enter":
			m.state = stateNormal
			if item, ok := m.branches.SelectedItem().(branchItem); ok && len(m.tabs) > tabCommits {
				m.tabs[tabCommits].UpdateWithParams(params.Params{branchKey: item.name}, true)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.branches, cmd = m.branches.Update(msg)
	return m, cmd
}

func (m *Model) markCurrentBranch() {
	current := m.currentBranch()
	items := m.branches.Items()
	for i, it := range items {
		b := it.(branchItem)
		b.current = b.name == current
		items[i] = b
		if b.current {
			m.branches.Select(i)
		}
	}
	m.branches.SetItems(items)
}

func (m Model) currentBranch() string {
	if len(m.tabs) <= tabCommits {
		return ""
	}
	return m.tabs[tabCommits].CurrentParams().String(branchKey)
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m *Model) layout() {
	m.table.SetWidth(m.width)
	m.table.SetHeight(m.tableHeight())
	m.branches.SetSize(50, m.height/2)
	m.resetTable()
}

// tableHeight leaves room for the header, pagination, detail and help.
func (m Model) tableHeight() int {
	h := m.height - 16
	if h < 3 {
		return 3
	}
	return h
}

// resetTable swaps columns for the active tab. Rows go first so the table
// never renders rows against a different column count.
func (m *Model) resetTable() {
	t := m.activeTab()
	if t == nil {
		return
	}
	m.table.SetRows(nil)
	m.table.SetColumns(t.Columns(m.width))
	m.syncRows()
	if len(m.table.Rows()) > 0 {
		m.table.SetCursor(0)
	}
}

func (m *Model) syncRows() {
	t := m.activeTab()
	if t == nil {
		return
	}
	rows := t.Rows()
	m.table.SetRows(rows)
	if len(rows) == 0 {
		return
	}
	switch c := m.table.Cursor(); {
	case c < 0:
		m.table.SetCursor(0)
	case c >= len(rows):
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.loading {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.spinner.View() + " Loading project…")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err),
		)
	}

	base := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderBody(),
		m.renderHelp(),
	)

	switch m.state {
	case stateSearch:
		return m.renderSearchOver(base)
	case stateBranchPicker:
		return m.renderBranchPickerOver(base)
	}
	return base
}

func (m Model) renderHeader() string {
	var tabs []string
	for i, t := range m.tabs {
		if i == m.active {
			tabs = append(tabs, boldStyle.Render("["+t.Title()+"]"))
		} else {
			tabs = append(tabs, dimStyle.Render(" "+t.Title()+" "))
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.project.Name) + "  " + strings.Join(tabs, " "))
	if m.active == tabCommits {
		b.WriteString("   " + m.renderBranchControl())
	}
	if q := m.activeTab().CurrentParams().String(queryKey); q != "" {
		b.WriteString("   " + labelStyle.Render("Search ") + q)
	}
	if m.live {
		b.WriteString("   " + okStyle.Render("● live"))
	}
	b.WriteString("\n")
	return b.String()
}

// renderBranchControl shows the current branch even before the list is
// known, so the table never waits on the branch request.
func (m Model) renderBranchControl() string {
	current := m.currentBranch()
	if current == "" {
		current = "all"
	}
	switch m.branchState {
	case branchesReady:
		return labelStyle.Render("Branch ") + current + " ▾"
	case branchesUnavailable:
		return dimStyle.Render("No branches")
	case branchesFailed:
		return labelStyle.Render("Branch ") + current + " " + errStyle.Render("(list failed)")
	default:
		return dimStyle.Render("Branch " + current + " ▾")
	}
}

func (m Model) renderBody() string {
	t := m.activeTab()
	var b strings.Builder

	if info := t.DataForErrorMessage(); info != nil {
		b.WriteString(bannerStyle.Render(errorText(info)) + "\n")
	}

	switch {
	case t.HasNotLoadedInitialData():
		b.WriteString(lipgloss.NewStyle().Padding(1, 2).Render(
			m.spinner.View()+" Loading "+strings.ToLower(t.Title())+"…") + "\n")
		return b.String()
	case len(t.Rows()) == 0:
		if t.DataForErrorMessage() == nil {
			b.WriteString(lipgloss.NewStyle().Padding(1, 2).Render(
				dimStyle.Render("No "+strings.ToLower(t.Title())+" found")) + "\n")
		}
	default:
		tbl := m.table.View()
		if t.IsLoadingUpdatedData() {
			tbl = dimStyle.Render(tbl)
		}
		b.WriteString(tbl + "\n")
	}

	b.WriteString(m.renderPagination(t) + "\n")

	if detail := t.Detail(m.table.Cursor(), m.width-6); detail != "" {
		sep := dimStyle.Render(strings.Repeat("─", m.width))
		b.WriteString(sep + "\n")
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(detail))
	}
	return b.String()
}

func (m Model) renderPagination(t tab) string {
	var parts []string
	for _, l := range t.PaginationLinks() {
		if l.Enabled {
			parts = append(parts, l.Label)
		} else {
			parts = append(parts, dimStyle.Render(l.Label))
		}
	}
	page := t.CurrentParams().Page() + 1
	line := strings.Join(parts, "   ") + dimStyle.Render(fmt.Sprintf("   page %d", page))
	if t.IsLoadingUpdatedData() {
		line += "  " + m.spinner.View()
	}
	if m.status != "" {
		line += "   " + m.status
	}
	return helpStyle.Render(line)
}

// errorText turns a failure into one line for the banner.
func errorText(info *interactive.ErrorInfo) string {
	if info.Response != nil {
		status := info.Response.Status
		if status == "" {
			status = fmt.Sprintf("%d", info.Response.StatusCode)
		}
		return "Server returned " + status
	}
	var netErr *transport.NetworkError
	if errors.As(info.Err, &netErr) {
		return "Could not reach the server: " + netErr.Err.Error()
	}
	var progErr *interactive.ProgrammingError
	if errors.As(info.Err, &progErr) {
		return "Internal error: " + progErr.Error()
	}
	return info.Err.Error()
}

func pipelineLabel(status string) string {
	label := statusText(status)
	switch status {
	case "success":
		return okStyle.Render(label)
	case "failed":
		return errStyle.Render(label)
	case "running", "pending":
		return warnStyle.Render(label)
	default:
		return dimStyle.Render(label)
	}
}

// statusText is the unstyled label, safe inside table cells.
func statusText(status string) string {
	switch status {
	case "success":
		return "✅ passed"
	case "failed":
		return "❌ failed"
	case "running":
		return "⏳ running"
	case "pending":
		return "⏳ pending"
	case "canceled":
		return "⊘ canceled"
	case "skipped":
		return "— skipped"
	case "":
		return "—"
	default:
		return status
	}
}

func (m Model) renderHelp() string {
	var text string
	switch m.state {
	case stateSearch:
		text = "Enter search   Esc cancel"
	case stateBranchPicker:
		text = "↑/↓ navigate   Enter select   Esc cancel"
	default:
		text = "tab switch   ←/→ page   / search   c branch   o open   y copy link   r refresh   L live   q quit"
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderSearchOver(base string) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Search "+m.activeTab().Title()) + "\n\n")
	b.WriteString(m.search.View() + "\n")
	b.WriteString("\n" + dimStyle.Render("Empty clears the search · returns to the first page"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderBranchPickerOver(base string) string {
	modal := modalStyle.Render(m.branches.View())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}
