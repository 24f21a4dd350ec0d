package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	fsio "github.com/matzehuels/flowsketch/pkg/io"
	"github.com/matzehuels/flowsketch/pkg/session"
)

const (
	maxOutputLines = 200
	maxLogLines    = 3
	layoutPoll     = 150 * time.Millisecond
)

func (c *CLI) replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl [script...]",
		Short: "Edit a diagram interactively",
		Long: `Start an interactive editor. Each line is executed as a command;
pasting several lines runs them as one batch. Scripts given as arguments
are executed first.

Besides the command language the editor understands:
  paste        run the clipboard contents
  quit, exit   leave (also ctrl+c, esc)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runREPL(cmd.Context(), args)
		},
	}
}

func (c *CLI) runREPL(ctx context.Context, scripts []string) error {
	// Log output would tear the terminal UI, so it is kept for the view.
	logs := &logTail{max: maxLogLines}
	logger := newLogger(logs, c.Logger.GetLevel())

	clip, err := clipboard.New(c.cfg.ClipboardOptions())
	if err != nil {
		return err
	}
	defer clip.Close()

	sess, err := session.New(uuid.NewString(), c.sessionOptions(logger, clip))
	if err != nil {
		return err
	}
	defer sess.Close()

	m := newREPLModel(ctx, sess, logs)
	for _, path := range scripts {
		rep, err := fsio.ImportScript(ctx, path, sess)
		if err != nil {
			return err
		}
		m.println(styleDim.Render("loaded " + path))
		m.record(rep)
	}

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	unsubscribe := m.watch(p)
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// storeChangedMsg tells the model the diagram changed.
type storeChangedMsg struct{}

// layoutPollMsg refreshes the view while a layout is running.
type layoutPollMsg struct{}

type replModel struct {
	ctx  context.Context
	sess *session.Session
	logs *logTail

	// pending is set while a storeChangedMsg is in flight, so a busy
	// layout produces one redraw per frame instead of a message per tick.
	pending atomic.Bool
	polling bool

	input   []rune
	history []string
	histPos int
	output  []string

	width, height int
}

func newREPLModel(ctx context.Context, sess *session.Session, logs *logTail) *replModel {
	return &replModel{ctx: ctx, sess: sess, logs: logs}
}

// watch forwards store changes to p until the returned function is called.
// The store calls subscribers on the writing goroutine, so the send must
// not block.
func (m *replModel) watch(p *tea.Program) func() {
	return m.sess.Store.Subscribe(func(diagram.Change) {
		if m.pending.CompareAndSwap(false, true) {
			go p.Send(storeChangedMsg{})
		}
	})
}

func (m *replModel) Init() tea.Cmd {
	return m.poll()
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case storeChangedMsg:
		m.pending.Store(false)
		return m, m.poll()
	case layoutPollMsg:
		m.polling = false
		return m, m.poll()
	case tea.KeyMsg:
		return m.key(msg)
	}
	return m, nil
}

// poll schedules a redraw while the layout is active so the status line
// flips back to idle once it settles.
func (m *replModel) poll() tea.Cmd {
	if m.polling || !m.sess.Layout.Active() {
		return nil
	}
	m.polling = true
	return tea.Tick(layoutPoll, func(time.Time) tea.Msg { return layoutPollMsg{} })
}

func (m *replModel) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		line := string(m.input)
		m.input = nil
		return m, m.submit(line)
	case tea.KeyUp:
		if m.histPos > 0 {
			m.histPos--
			m.input = []rune(m.history[m.histPos])
		}
	case tea.KeyDown:
		if m.histPos < len(m.history)-1 {
			m.histPos++
			m.input = []rune(m.history[m.histPos])
		} else {
			m.histPos = len(m.history)
			m.input = nil
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyCtrlU:
		m.input = nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		text := normalizeNewlines(string(msg.Runes))
		if msg.Paste && strings.Contains(text, "\n") {
			batch := string(m.input) + text
			m.input = nil
			return m, m.submit(batch)
		}
		m.input = append(m.input, []rune(text)...)
	}
	return m, nil
}

// submit executes a line or pasted batch.
func (m *replModel) submit(text string) tea.Cmd {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	m.history = append(m.history, strings.TrimRight(text, "\n"))
	m.histPos = len(m.history)
	m.echo(trimmed)

	switch trimmed {
	case "quit", "exit":
		return tea.Quit
	case "paste":
		rep, err := m.sess.Paste(m.ctx)
		if err != nil {
			m.println(styleIconError.Render(iconError) + " " + errors.UserMessage(err))
			return nil
		}
		m.record(rep)
	default:
		m.record(m.sess.Execute(m.ctx, text))
	}
	return m.poll()
}

func (m *replModel) echo(text string) {
	lines := strings.Split(text, "\n")
	line := styleTitle.Render("›") + " " + lines[0]
	if len(lines) > 1 {
		line += styleDim.Render(fmt.Sprintf("  (+%d lines)", len(lines)-1))
	}
	m.println(line)
}

// record appends the diagnostics of a report to the output pane.
func (m *replModel) record(rep command.Report) {
	for _, d := range rep.Diagnostics() {
		m.println("  " + formatDiagnostic(d))
	}
	if n := rep.Ignored(); n > 0 {
		m.println("  " + styleWarning.Render(plural(n, "line")+" not recognized"))
	}
}

func (m *replModel) println(line string) {
	m.output = append(m.output, line)
	if over := len(m.output) - maxOutputLines; over > 0 {
		m.output = m.output[over:]
	}
}

func (m *replModel) View() string {
	g := m.sess.Snapshot()

	var b strings.Builder
	b.WriteString(styleTitle.Render("flowsketch"))
	b.WriteString("  " + summary(len(g.Nodes), len(g.Edges), m.sess.Store.Version()))
	b.WriteString("  " + m.layoutStatus() + "\n\n")

	rows := m.tableRows()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		nodeTable(g.Nodes, rows), "  ", edgeTable(g.Edges, rows)))
	b.WriteString("\n\n")

	for _, line := range m.visibleOutput() {
		b.WriteString(line + "\n")
	}
	for _, line := range m.logs.Lines() {
		b.WriteString(styleDim.Render(line) + "\n")
	}
	b.WriteString(styleTitle.Render("›") + " " + string(m.input) + styleDim.Render("█"))
	return b.String()
}

func (m *replModel) layoutStatus() string {
	if m.sess.Layout.Active() {
		return styleWarning.Render("layout running")
	}
	return styleDim.Render("layout idle (" + m.sess.Layout.DefaultEngine() + ")")
}

// tableRows is the number of rows per table that fit the window.
func (m *replModel) tableRows() int {
	if m.height == 0 {
		return 15
	}
	return max(3, m.height/2-6)
}

func (m *replModel) visibleOutput() []string {
	n := 8
	if m.height > 0 {
		n = max(3, m.height-m.tableRows()-12)
	}
	if len(m.output) <= n {
		return m.output
	}
	return m.output[len(m.output)-n:]
}

var (
	styleHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			return styleCell
		})
}

func nodeTable(nodes []diagram.Node, limit int) string {
	t := newTable("ID", "Label", "X", "Y", "Color")
	for _, n := range tail(nodes, limit) {
		color := n.Color
		if color != "" {
			color = lipgloss.NewStyle().Foreground(lipgloss.Color(n.Color)).Render("■ " + n.Color)
		}
		t.Row(n.ID, oneLine(n.Label), fmt.Sprintf("%.0f", n.Position.X), fmt.Sprintf("%.0f", n.Position.Y), color)
	}
	return t.String() + more(len(nodes), limit)
}

func edgeTable(edges []diagram.Edge, limit int) string {
	t := newTable("ID", "Source", "Target", "Label")
	for _, e := range tail(edges, limit) {
		t.Row(e.ID, e.Source, e.Target, oneLine(e.Label))
	}
	return t.String() + more(len(edges), limit)
}

// tail returns the last n items, the most recently added ones.
func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func more(total, limit int) string {
	if total <= limit {
		return ""
	}
	return "\n" + styleDim.Render(fmt.Sprintf("  … %d earlier", total-limit))
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ⏎ ")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// logTail keeps the last few log lines for display.
type logTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (l *logTail) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		l.lines = append(l.lines, string(line))
	}
	if over := len(l.lines) - l.max; over > 0 {
		l.lines = l.lines[over:]
	}
	return len(p), nil
}

// Lines returns a copy of the retained lines.
func (l *logTail) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
