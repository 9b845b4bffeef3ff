// Package watch is a terminal monitor for a running relay. It connects as an
// unassigned observer, so it receives every transfer broadcast and nothing
// else.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/client"
	"github.com/Artemis1799/Ody-stras-sub001/internal/theme"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecent = 8

type statusMsg struct {
	status *client.Status
	err    error
}

type flushMsg struct {
	result *client.FlushResult
	err    error
}

// Options configures the model.
type Options struct {
	// GlamourStyle names the standard glamour style for summaries.
	GlamourStyle string
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc
	style  string
	now    func() time.Time

	keys   KeyMap
	help   help.Model
	width  int
	height int

	connected bool
	status    *client.Status
	notice    string

	current   Transfer
	seen      map[string]bool
	active    bool
	pointsBar progress.Model
	photosBar progress.Model
	recent    []string

	report     string
	showReport bool
}

// New creates the root model. http may be nil when the control endpoint is
// not reachable.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.GlamourStyle == "" {
		opts.GlamourStyle = "dark"
	}
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		style:     opts.GlamourStyle,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		seen:      make(map[string]bool),
		pointsBar: newBar(),
		photosBar: newBar(),
	}
}

func newBar() progress.Model {
	return progress.New(
		progress.WithGradient(theme.ColorProgressStart, theme.ColorProgressEnd),
		progress.WithWidth(40),
	)
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		barWidth := min(max(msg.Width-24, 10), 60)
		m.pointsBar.Width = barWidth
		m.photosBar.Width = barWidth
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.ConnectedMsg:
		m.connected = true
		m.notice = ""
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.fetchStatus())

	case client.DisconnectedMsg:
		m.connected = false
		if msg.Err != nil {
			m.notice = msg.Err.Error()
		}
		return m, m.ws.Listen(m.ctx)

	case client.MetadataMsg:
		m.begin(msg.Frame.EventUUID)
		m.current.DeclaredPoints = msg.Frame.TotalPoints
		m.current.DeclaredPhotos = msg.Frame.TotalPhotos
		m.log("metadata", fmt.Sprintf("event %s: %d points, %d photos declared",
			orDash(msg.Frame.EventUUID), msg.Frame.TotalPoints, msg.Frame.TotalPhotos))
		return m, m.ws.ReadLoop(m.ctx)

	case client.PointMsg:
		if !m.active {
			m.begin("")
		}
		if msg.ID != "" {
			m.seen[msg.ID] = true
			m.current.Points = len(m.seen)
		} else {
			m.current.Points++
		}
		if m.current.DeclaredPoints == 0 {
			m.current.DeclaredPoints = msg.Frame.TotalPoints
		}
		m.log("point", fmt.Sprintf("point %s (%d/%d)", orDash(msg.ID), msg.Frame.PointIndex+1, msg.Frame.TotalPoints))
		return m, m.ws.ReadLoop(m.ctx)

	case client.PhotoMsg:
		if !m.active {
			m.begin("")
		}
		m.current.Photos++
		m.log("photo", fmt.Sprintf("photo for %s (%d/%d)", orDash(msg.Frame.PointUUID), msg.Frame.PhotoIndex+1, msg.Frame.TotalPhotos))
		return m, m.ws.ReadLoop(m.ctx)

	case client.EndMsg:
		m.finish(msg)
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.fetchStatus())

	case client.RelayErrorMsg:
		m.current.Errors = append(m.current.Errors, msg.Message)
		m.log("error", msg.Message)
		return m, m.ws.ReadLoop(m.ctx)

	case client.FrameMsg:
		m.log(string(msg.Type), fmt.Sprintf("%s (%d bytes)", msg.Type, msg.Size))
		return m, m.ws.ReadLoop(m.ctx)

	case statusMsg:
		if msg.err != nil {
			m.notice = "status: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		return m, nil

	case flushMsg:
		if msg.err != nil {
			m.notice = "flush: " + msg.err.Error()
			return m, nil
		}
		f := msg.result.Flushed
		m.notice = fmt.Sprintf("flushed %s: %d points, %d photos discarded", orDash(f.EventUUID), f.Points, f.Photos)
		return m, m.fetchStatus()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchStatus()

	case key.Matches(msg, m.keys.Flush):
		return m, m.flush()

	case key.Matches(msg, m.keys.Clear):
		m.recent = nil
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.Report):
		if m.report != "" {
			m.showReport = !m.showReport
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m *Model) begin(event string) {
	m.current = Transfer{EventUUID: event, Started: m.now()}
	m.seen = make(map[string]bool)
	m.active = true
	m.showReport = false
}

func (m *Model) finish(msg client.EndMsg) {
	m.current.Ended = m.now()
	m.current.Message = msg.Frame.Message
	if s := msg.Frame.Summary; s != nil {
		m.current.ReportedPoints = s.TotalPoints
		m.current.ReportedPhotos = s.TotalPhotos
	}
	m.log("end", orDash(msg.Frame.Message))

	md := m.current.Markdown()
	out, err := render(md, m.width, m.style)
	if err != nil {
		out = md
	}
	m.report = out
	m.showReport = true
	m.active = false
}

func (m *Model) log(frameType, line string) {
	stamp := m.now().Format("15:04:05")
	styled := lipgloss.NewStyle().Foreground(theme.FrameColor(frameType)).Render(theme.FrameGlyph(frameType) + " " + line)
	m.recent = append(m.recent, theme.StyleDimmed.Render(stamp)+" "+styled)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

func (m Model) fetchStatus() tea.Cmd {
	if m.http == nil {
		return nil
	}
	ctx := m.ctx
	httpClient := m.http
	return func() tea.Msg {
		s, err := httpClient.GetStatus(ctx)
		return statusMsg{status: s, err: err}
	}
}

func (m Model) flush() tea.Cmd {
	if m.http == nil {
		return nil
	}
	ctx := m.ctx
	httpClient := m.http
	return func() tea.Msg {
		r, err := httpClient.FlushSession(ctx)
		return flushMsg{result: r, err: err}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if !m.connected {
		attempts := 0
		if m.ws != nil {
			attempts = m.ws.Attempts()
		}
		box := theme.StyleBorder.Render(lipgloss.JoinVertical(lipgloss.Center,
			theme.StyleDisconnected.Render("DISCONNECTED"),
			theme.StyleDimmed.Render(fmt.Sprintf("Reconnecting... (attempt %d)", attempts+1)),
			theme.StyleDimmed.Render(m.notice),
		))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	sections := []string{m.renderHeader(), m.renderProgress()}
	if m.showReport {
		sections = append(sections, m.report)
	} else {
		sections = append(sections, m.renderRecent())
	}
	if m.notice != "" {
		sections = append(sections, theme.StyleWarning.Render(m.notice))
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := theme.StyleHeader.Render("RELAY WATCH")
	state := theme.StyleConnected.Render("● connected")
	line := title + "  " + state
	if m.status != nil {
		line += theme.StyleDimmed.Render(fmt.Sprintf("  clients %d (web %d, phone %d, unassigned %d)",
			m.status.Clients, m.status.Roles["web"], m.status.Roles["phone"], m.status.Roles["unassigned"]))
		if last := m.status.LastTransfer; last != nil {
			line += "\n" + theme.StyleDimmed.Render(fmt.Sprintf("last transfer %s: %d points, %d photos at %s",
				orDash(last.EventUUID), last.TotalPoints, last.TotalPhotos, last.CompletedAt.Local().Format("15:04:05")))
		}
	}
	return line
}

func (m Model) renderProgress() string {
	if !m.active && m.current.Started.IsZero() {
		return theme.StyleDimmed.Render("Waiting for a transfer...")
	}
	event := "Event " + orDash(m.current.EventUUID)
	if !m.active {
		event += theme.StyleDimmed.Render("  (finished)")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render(event),
		progressLine("Points", m.pointsBar, m.current.Points, m.current.DeclaredPoints),
		progressLine("Photos", m.photosBar, m.current.Photos, m.current.DeclaredPhotos),
	)
}

func progressLine(label string, bar progress.Model, n, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%-7s %d", label, n)
	}
	return fmt.Sprintf("%-7s %s %d/%d", label, bar.ViewAs(ratio(n, total)), n, total)
}

func (m Model) renderRecent() string {
	if len(m.recent) == 0 {
		return theme.StyleDimmed.Render("  No frames yet")
	}
	return strings.Join(m.recent, "\n")
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(n) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
