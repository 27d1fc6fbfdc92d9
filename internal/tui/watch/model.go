package watch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

const eventLogSize = 30

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	status    statusMsg
	connected bool
	lastSeq   int64
	eventLog  []signal.Signal

	counters table.Model
	theme    Theme

	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	columns := []table.Column{
		{Title: "Event", Width: 24},
		{Title: "Frequency", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(8),
		table.WithFocused(true),
	)

	return &Model{
		apiURL:   apiURL,
		apiKey:   apiKey,
		counters: t,
		theme:    NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatus(m.apiURL, m.apiKey),
		fetchEvents(m.apiURL, m.apiKey, 0),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			fetchEvents(m.apiURL, m.apiKey, m.lastSeq),
			tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case statusMsg:
		m.status = msg
		m.connected = true
		m.lastError = ""

		rows := make([]table.Row, 0, len(msg.Counters))
		for _, e := range msg.Counters {
			rows = append(rows, table.Row{e.Kind, strconv.FormatInt(e.Count, 10)})
		}
		m.counters.SetRows(rows)

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)()
		})

	case eventsMsg:
		m.connected = true
		m.lastSeq = msg.Seq
		// Newest first.
		for _, e := range msg.Events {
			m.eventLog = append([]signal.Signal{e}, m.eventLog...)
		}
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}

	case errMsg:
		m.connected = false
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.apiKey)()
		})
	}

	var cmd tea.Cmd
	m.counters, cmd = m.counters.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to tsukumo..."
	}

	conn := m.theme.StatusOK.Render("● connected")
	if !m.connected {
		conn = m.theme.StatusFailed.Render("● disconnected")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.Title.Render("tsukumo watch"),
		m.theme.Dim.Render(fmt.Sprintf("  uptime %ds  pool %d  signals %d  ",
			m.status.UptimeSeconds, m.status.PoolSize, m.status.SignalsTotal)),
		conn,
	)

	counters := m.theme.Border.Render(
		m.theme.Header.Render(" Signal frequencies ") + "\n" + m.counters.View(),
	)

	feed := m.theme.Header.Render(" Recent signals ") + "\n"
	max := 10
	if len(m.eventLog) < max {
		max = len(m.eventLog)
	}
	for _, e := range m.eventLog[:max] {
		line := fmt.Sprintf("%s  %-20s %s",
			e.At.Format("15:04:05"), e.Kind, e.Detail)
		if e.Kind == signal.KindCommandError || e.Kind == signal.KindTagFailed {
			feed += m.theme.StatusFailed.Render(line) + "\n"
		} else {
			feed += m.theme.Dim.Render(line) + "\n"
		}
	}

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := m.theme.Dim.Render(" [q] Quit")

	parts := []string{header, counters, feed}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
