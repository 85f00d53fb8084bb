// Package tui implements a terminal board for household tasks.
package tui

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// view represents the current screen state.
type view int

const (
	viewBoard view = iota
	viewConfirmDelete
)

// Key and layout constants.
const (
	keyEsc = "esc"

	boardChrome   = 2                // blank line + status bar below the column area
	errorChrome   = 1                // extra line when an error or notice is displayed
	tickInterval  = 60 * time.Second // how often relative due dates refresh
	opTimeout     = 10 * time.Second
	postponeDays  = 1
	maxDescLines  = 2
	maxColumnWide = 60
)

// Board is the top-level bubbletea model.
type Board struct {
	coord     *syncer.Coordinator
	name      string
	today     func() date.Date
	tasks     []task.Task
	columns   []column
	pending   int
	offline   bool
	pendingID map[int]bool
	activeCol int
	activeRow int
	view      view
	width     int
	height    int
	err       error
	notice    string
	busy      bool

	// Delete confirmation.
	deleteID   int
	deleteName string
}

// column groups tasks belonging to a single status.
type column struct {
	status    task.Status
	tasks     []task.Task
	scrollOff int // first visible row index
}

// Option configures a Board.
type Option func(*Board)

// WithToday overrides the calendar used for relative due dates.
func WithToday(fn func() date.Date) Option {
	return func(b *Board) { b.today = fn }
}

// NewBoard creates a Board over the coordinator. name is shown in the
// status bar.
func NewBoard(c *syncer.Coordinator, name string, opts ...Option) *Board {
	b := &Board{coord: c, name: name, today: date.Today}
	for _, opt := range opts {
		opt(b)
	}
	b.setColumns(nil)
	return b
}

// Init implements tea.Model.
func (b *Board) Init() tea.Cmd {
	return tea.Batch(b.loadCmd(), tickCmd())
}

// Update implements tea.Model.
func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.MouseMsg:
		return b.handleMouse(msg)
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.ensureVisible()
		return b, nil
	case ReloadMsg:
		return b, b.loadCmd()
	case loadedMsg:
		b.applyView(msg.view)
		return b, nil
	case actionMsg:
		b.busy = false
		b.err = msg.err
		b.notice = msg.notice
		return b, b.loadCmd()
	case TickMsg:
		return b, tickCmd()
	case errMsg:
		b.err = msg.err
		return b, nil
	}
	return b, nil
}

// View implements tea.Model.
func (b *Board) View() string {
	if b.width == 0 {
		return "Loading..."
	}
	if b.view == viewConfirmDelete {
		return b.viewDeleteConfirm()
	}
	return b.viewBoard()
}

func (b *Board) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+c"))) {
		return b, tea.Quit
	}
	if b.view == viewConfirmDelete {
		return b.handleDeleteKey(msg)
	}
	return b.handleBoardKey(msg)
}

func (b *Board) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", keyEsc:
		return b, tea.Quit
	case "h", "left":
		if b.activeCol > 0 {
			b.activeCol--
			b.clampRow()
		}
	case "l", "right":
		if b.activeCol < len(b.columns)-1 {
			b.activeCol++
			b.clampRow()
		}
	case "j", "down":
		col := b.currentColumn()
		if col != nil && b.activeRow < len(col.tasks)-1 {
			b.activeRow++
			b.ensureVisible()
		}
	case "k", "up":
		if b.activeRow > 0 {
			b.activeRow--
			b.ensureVisible()
		}
	case "c":
		return b, b.taskAction("completed", b.coord.Complete)
	case "r":
		return b, b.taskAction("reactivated", b.coord.Reactivate)
	case "x":
		return b, b.taskAction("cancelled", b.coord.Cancel)
	case "p":
		return b, b.taskAction("postponed", func(ctx context.Context, id int) (syncer.Outcome, error) {
			return b.coord.Postpone(ctx, id, postponeDays)
		})
	case "d", "D":
		if t := b.selectedTask(); t != nil {
			b.deleteID = t.ID
			b.deleteName = t.Name
			b.view = viewConfirmDelete
		}
	case "s":
		return b, b.syncCmd()
	case "R":
		b.err = nil
		b.notice = ""
		return b, b.loadCmd()
	}
	return b, nil
}

func (b *Board) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		b.view = viewBoard
		id := b.deleteID
		return b, b.run(func(ctx context.Context) actionMsg {
			out, err := b.coord.Delete(ctx, id)
			return outcomeMsg(fmt.Sprintf("Deleted #%d", id), out, err)
		})
	case "n", "N", keyEsc, "q":
		b.view = viewBoard
	}
	return b, nil
}

// handleMouse selects the clicked card.
func (b *Board) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return b, nil
	}
	if b.view != viewBoard {
		return b, nil
	}

	colWidth := b.columnWidth()
	clickedCol := msg.X / colWidth
	if clickedCol >= len(b.columns) {
		return b, nil
	}

	col := &b.columns[clickedCol]
	b.activeCol = clickedCol
	lineY := msg.Y - 1
	if lineY < 0 {
		b.clampRow()
		return b, nil
	}

	cardLine := 0
	for rowIdx := col.scrollOff; rowIdx < len(col.tasks); rowIdx++ {
		cardH := b.cardHeight(&col.tasks[rowIdx], colWidth)
		if lineY < cardLine+cardH {
			b.activeRow = rowIdx
			b.ensureVisible()
			return b, nil
		}
		cardLine += cardH
	}
	b.clampRow()
	return b, nil
}

// taskAction runs fn against the selected task.
func (b *Board) taskAction(verb string, fn func(context.Context, int) (syncer.Outcome, error)) tea.Cmd {
	t := b.selectedTask()
	if t == nil || b.busy {
		return nil
	}
	id := t.ID
	b.busy = true
	return b.run(func(ctx context.Context) actionMsg {
		out, err := fn(ctx, id)
		return outcomeMsg(fmt.Sprintf("#%d %s", id, verb), out, err)
	})
}

func (b *Board) syncCmd() tea.Cmd {
	if b.busy {
		return nil
	}
	b.busy = true
	return b.run(func(ctx context.Context) actionMsg {
		res, err := b.coord.Drain(ctx)
		notice := fmt.Sprintf("Synced %d, %d waiting", res.Applied, res.Remaining)
		if res.Applied == 0 && res.Remaining == 0 && err == nil {
			notice = "Nothing to sync"
		}
		return actionMsg{notice: notice, err: err}
	})
}

func (b *Board) run(fn func(context.Context) actionMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func outcomeMsg(done string, out syncer.Outcome, err error) actionMsg {
	if err != nil {
		return actionMsg{err: err}
	}
	if out.Queued {
		return actionMsg{notice: done + " (queued for sync)"}
	}
	return actionMsg{notice: done}
}

func (b *Board) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		v, err := b.coord.List(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return loadedMsg{view: v}
	}
}

// applyView replaces the board contents with a fresh view.
func (b *Board) applyView(v syncer.View) {
	b.tasks = v.Tasks
	b.pending = v.Pending
	b.offline = v.Offline
	b.pendingID = v.PendingIDs
	b.setColumns(v.Tasks)
}

// setColumns organizes tasks into one column per status, soonest due first.
func (b *Board) setColumns(tasks []task.Task) {
	sorted := append([]task.Task(nil), tasks...)
	board.Sort(sorted, "priority", false)
	board.Sort(sorted, "due", false)

	b.columns = make([]column, len(task.Statuses))
	for i, st := range task.Statuses {
		b.columns[i] = column{status: st}
	}
	for _, t := range sorted {
		for i := range b.columns {
			if b.columns[i].status == t.Status {
				b.columns[i].tasks = append(b.columns[i].tasks, t)
				break
			}
		}
	}
	b.clampRow()
}

func (b *Board) currentColumn() *column {
	if b.activeCol >= 0 && b.activeCol < len(b.columns) {
		return &b.columns[b.activeCol]
	}
	return nil
}

func (b *Board) selectedTask() *task.Task {
	col := b.currentColumn()
	if col == nil || len(col.tasks) == 0 {
		return nil
	}
	if b.activeRow >= 0 && b.activeRow < len(col.tasks) {
		return &col.tasks[b.activeRow]
	}
	return nil
}

func (b *Board) clampRow() {
	col := b.currentColumn()
	if col == nil || len(col.tasks) == 0 {
		b.activeRow = 0
		return
	}
	if b.activeRow >= len(col.tasks) {
		b.activeRow = len(col.tasks) - 1
	}
	b.ensureVisible()
}

// chromeHeight returns the number of lines consumed below the column area.
func (b *Board) chromeHeight() int {
	h := boardChrome
	if b.err != nil || b.notice != "" {
		h += errorChrome
	}
	return h
}

// visibleCardsForColumn returns the number of cards that fit in the column,
// accounting for the scroll indicator lines.
func (b *Board) visibleCardsForColumn(col *column, width int) int {
	budget := b.height - b.chromeHeight()
	if budget < 1 {
		return 1
	}

	// Always need 1 line for column header.
	avail := budget - 1
	if col.scrollOff > 0 {
		avail--
	}

	n := b.fitCardsInHeight(col, avail, width)
	if col.scrollOff+n < len(col.tasks) {
		n = max(b.fitCardsInHeight(col, avail-1, width), 1)
	}
	return n
}

// ensureVisible adjusts the active column's scroll offset so the
// selected row is within the visible window.
func (b *Board) ensureVisible() {
	col := b.currentColumn()
	if col == nil || b.height == 0 {
		return
	}
	w := b.columnWidth()

	for range len(col.tasks) + 1 {
		maxVis := b.visibleCardsForColumn(col, w)

		switch {
		case b.activeRow >= col.scrollOff+maxVis:
			col.scrollOff = b.activeRow - maxVis + 1
		case b.activeRow < col.scrollOff:
			col.scrollOff = b.activeRow
		default:
			return
		}
	}
}

func (b *Board) fitCardsInHeight(col *column, avail, width int) int {
	if len(col.tasks) == 0 || avail < 1 {
		return 1
	}

	used := 0
	count := 0
	for i := col.scrollOff; i < len(col.tasks); i++ {
		cardLines := b.cardHeight(&col.tasks[i], width)
		if count > 0 && used+cardLines > avail {
			break
		}
		count++
		used += cardLines
		if used >= avail {
			break
		}
	}
	return max(count, 1)
}

// --- Messages ---

// ReloadMsg is sent by the file watcher to trigger a board refresh.
type ReloadMsg struct{}

// TickMsg is sent periodically to refresh relative due dates.
type TickMsg struct{}

type errMsg struct{ err error }

type loadedMsg struct{ view syncer.View }

type actionMsg struct {
	notice string
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return TickMsg{} })
}

// --- Styles ---

var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("236")).
				Padding(0, 1)

	activeColumnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("226")).
			Padding(0, 1)

	overdueCardStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	// typeColorPalette colors task types so the same type always looks the same.
	typeColorPalette = []lipgloss.Color{"33", "36", "35", "32", "91", "34", "93", "96"}

	// priorityColors follow the table output palette, 1 being the most urgent.
	priorityColors = map[int]lipgloss.Color{1: "196", 2: "208", 3: "226", 4: "252", 5: "242"}

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// typeStyle returns a consistent style for a task type, derived by hashing
// the type name into the palette.
func typeStyle(typ string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(typ))
	return lipgloss.NewStyle().Foreground(typeColorPalette[h.Sum32()%uint32(len(typeColorPalette))])
}

// --- View rendering ---

func (b *Board) viewBoard() string {
	colWidth := b.columnWidth()

	renderedCols := make([]string, len(b.columns))
	for i, col := range b.columns {
		renderedCols[i] = b.renderColumn(i, col, colWidth)
	}

	boardView := lipgloss.JoinHorizontal(lipgloss.Top, renderedCols...)

	// Clamp from the bottom so headers stay visible on tiny terminals, and
	// pad so the status bar sits on the last line.
	targetHeight := b.height - b.chromeHeight()
	if targetHeight > 0 {
		actual := strings.Count(boardView, "\n") + 1
		if actual > targetHeight {
			viewLines := strings.SplitN(boardView, "\n", targetHeight+1)
			boardView = strings.Join(viewLines[:targetHeight], "\n")
		} else if actual < targetHeight {
			boardView += strings.Repeat("\n", targetHeight-actual)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, boardView, "", b.renderStatusBar())
}

func (b *Board) columnWidth() int {
	if b.width == 0 || len(b.columns) == 0 {
		return 30 //nolint:mnd // default column width
	}
	return min(b.width/len(b.columns), maxColumnWide)
}

func (b *Board) renderColumn(colIdx int, col column, width int) string {
	const headerPad = 2
	headerText := truncate(fmt.Sprintf("%s (%d)", col.status, len(col.tasks)), width-headerPad)

	header := columnHeaderStyle.Width(width).Render(headerText)
	if colIdx == b.activeCol {
		header = activeColumnHeaderStyle.Width(width).Render(headerText)
	}

	maxVis := b.visibleCardsForColumn(&col, width)
	start := min(col.scrollOff, len(col.tasks))
	end := min(start+maxVis, len(col.tasks))

	parts := []string{header}
	if start > 0 {
		parts = append(parts, dimStyle.Width(width).Render(truncate(fmt.Sprintf("  ↑ %d more", start), width)))
	}
	if len(col.tasks) == 0 {
		parts = append(parts, dimStyle.Width(width).Render("  (empty)"))
	}
	for rowIdx := start; rowIdx < end; rowIdx++ {
		active := colIdx == b.activeCol && rowIdx == b.activeRow
		parts = append(parts, b.renderCard(&col.tasks[rowIdx], active, width))
	}
	if end < len(col.tasks) {
		indicator := fmt.Sprintf("  ↓ %d more", len(col.tasks)-end)
		parts = append(parts, dimStyle.Width(width).Render(truncate(indicator, width)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (b *Board) renderCard(t *task.Task, active bool, width int) string {
	content := strings.Join(b.cardContentLines(t, width), "\n")

	style := cardStyle
	switch {
	case active:
		style = activeCardStyle
	case t.Status == task.Overdue || t.IsOverdue(b.today()):
		style = overdueCardStyle
	}
	return style.Width(width - 2).Render(content) //nolint:mnd // border width
}

func (b *Board) cardHeight(t *task.Task, width int) int {
	return len(b.cardContentLines(t, width)) + 2 //nolint:mnd // top and bottom borders
}

func (b *Board) cardContentLines(t *task.Task, width int) []string {
	const cardChrome = 4 // border (2) + padding (2)
	cardWidth := max(width-cardChrome, 1)

	prio := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render("P" + strconv.Itoa(t.Priority))
	marker := ""
	if b.pendingID[t.ID] {
		marker = " " + pendingStyle.Render("*")
	}
	nameWidth := max(cardWidth-lipgloss.Width(prio)-lipgloss.Width(marker)-1, 1)
	lines := []string{prio + " " + truncate(t.Name, nameWidth) + marker}

	var meta []string
	if t.Due != nil {
		meta = append(meta, dueLabel(*t.Due, b.today()))
	}
	if t.AssignedTo != "" {
		meta = append(meta, "@"+t.AssignedTo)
	}
	if len(meta) > 0 {
		lines = append(lines, dimStyle.Render(truncate(strings.Join(meta, "  "), cardWidth)))
	}
	if t.Type != "" {
		lines = append(lines, typeStyle(t.Type).Render(truncate(t.Type, cardWidth)))
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		for _, line := range wrapText(desc, cardWidth, maxDescLines) {
			lines = append(lines, dimStyle.Render(line))
		}
	}
	return lines
}

// dueLabel renders a due date relative to today.
func dueLabel(due, today date.Date) string {
	switch n := today.DaysUntil(due); {
	case n < 0:
		return strconv.Itoa(-n) + "d late"
	case n == 0:
		return "due today"
	case n == 1:
		return "due tomorrow"
	default:
		return "due in " + strconv.Itoa(n) + "d"
	}
}

// wrapText splits text across maxLines lines, word-wrapping at word
// boundaries. Each line is at most maxWidth characters.
func wrapText(text string, maxWidth, maxLines int) []string {
	if maxLines < 1 {
		maxLines = 1
	}
	if lipgloss.Width(text) <= maxWidth || maxLines == 1 {
		return []string{truncate(text, maxWidth)}
	}

	words := strings.Fields(text)
	lines := make([]string, 0, maxLines)
	var current strings.Builder

	for i, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if lipgloss.Width(current.String())+1+lipgloss.Width(word) <= maxWidth {
			current.WriteByte(' ')
			current.WriteString(word)
			continue
		}
		lines = append(lines, truncate(current.String(), maxWidth))
		current.Reset()
		current.WriteString(word)
		if len(lines) == maxLines-1 {
			// Last line: append all remaining words.
			for _, w := range words[i+1:] {
				current.WriteByte(' ')
				current.WriteString(w)
			}
			break
		}
	}
	if current.Len() > 0 {
		lines = append(lines, truncate(current.String(), maxWidth))
	}
	return lines
}

func (b *Board) renderStatusBar() string {
	status := fmt.Sprintf(" %s | %d tasks", b.name, len(b.tasks))
	if b.pending > 0 {
		status += " | " + pendingStyle.Render("pending: "+strconv.Itoa(b.pending))
	}
	if b.offline {
		status += " | " + errorStyle.Render("offline")
	}
	status += " | c:done p:postpone r:reactivate x:cancel d:del s:sync R:reload q:quit"
	status = truncate(status, b.width)

	switch {
	case b.err != nil:
		return errorStyle.Render(truncate("Error: "+b.err.Error(), b.width)) + "\n" + statusBarStyle.Render(status)
	case b.notice != "":
		return noticeStyle.Render(truncate(b.notice, b.width)) + "\n" + statusBarStyle.Render(status)
	}
	return statusBarStyle.Render(status)
}

func (b *Board) viewDeleteConfirm() string {
	content := errorStyle.Render("Delete task?") + "\n\n" +
		fmt.Sprintf("  #%d: %s", b.deleteID, b.deleteName) + "\n\n" +
		dimStyle.Render("y:yes  n:no")

	return dialogStyle.Render(content)
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 { //nolint:mnd // minimum length for truncation
		maxLen = 4
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	// Slice by runes to avoid breaking multi-byte UTF-8 characters.
	runes := []rune(s)
	target := min(maxLen-3, len(runes)) //nolint:mnd // room for "..."
	for target > 0 && lipgloss.Width(string(runes[:target])) > maxLen-3 {
		target--
	}
	return string(runes[:target]) + "..."
}
