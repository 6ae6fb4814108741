// ABOUTME: Bubbletea model for the level meter TUI
// ABOUTME: Keeps per-channel level history and renders the scrolling waveform
package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

const (
	// floorDB is the quietest level the display distinguishes from silence
	floorDB = -60.0

	// volumeStep is the volume change per key press, in percent
	volumeStep = 5

	defaultHistory = 64
)

// waveRunes render one history column, quietest first
var waveRunes = []rune(" ▁▂▃▄▅▆▇█")

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	midStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	hotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Source
	title     string
	format    audio.Format
	connected bool
	remote    bool

	// Levels
	history [][]float64 // per channel, oldest first
	latest  []float64
	peak    []float64 // decaying peak hold per channel

	// Control
	volume     int // percent
	volumeCtrl *VolumeControl

	// Stats
	received   uint64
	lastSeq    uint64
	gaps       uint64
	dropped    uint64
	queueDepth int

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// LevelsMsg delivers one level update to the model
type LevelsMsg meter.Update

// StatusMsg updates TUI state
type StatusMsg struct {
	Title      string
	Format     *audio.Format
	Connected  *bool
	Volume     *float64 // 0..1
	Dropped    uint64
	QueueDepth int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trimHistory()
	case LevelsMsg:
		m.applyLevels(meter.Update(msg))
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderChannels())
	b.WriteString(m.renderControls())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders the source and its format
func (m Model) renderHeader() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Recording Level Meter"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Source: "))
	title := m.title
	if title == "" {
		title = "(none)"
	}
	if m.remote && !m.connected {
		title += " (disconnected)"
	}
	b.WriteString(valueStyle.Render(truncate(title, m.columns())))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Format: "))
	if m.format.Valid() {
		b.WriteString(valueStyle.Render(m.format.String()))
	} else {
		b.WriteString(valueStyle.Render("unknown"))
	}
	b.WriteString("\n\n")

	return b.String()
}

// renderChannels renders the live bar and waveform of every channel
func (m Model) renderChannels() string {
	if len(m.latest) == 0 {
		return valueStyle.Render("  Waiting for audio...") + "\n\n"
	}

	barWidth := m.columns() - 20
	if barWidth < 10 {
		barWidth = 10
	}

	var b strings.Builder
	for ch, level := range m.latest {
		label := channelName(ch, len(m.latest))
		db := levelToDB(level)

		b.WriteString(headerStyle.Render(fmt.Sprintf("%-3s", label)))
		b.WriteString(" ")
		b.WriteString(levelStyle(db).Render(renderBar(db, barWidth, m.peak[ch])))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %6s", formatDB(db))))
		b.WriteString("\n    ")
		b.WriteString(lowStyle.Render(renderWave(m.history[ch])))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return b.String()
}

// renderControls renders volume and hand-off statistics
func (m Model) renderControls() string {
	return fmt.Sprintf("%s [%s] %d%%\n%s %d updates, %d dropped, %d missed, queue %d\n\n",
		headerStyle.Render("Volume:"), renderVolume(m.volume, 10), m.volume,
		headerStyle.Render("Stats: "), m.received, m.dropped, m.gaps, m.queueDepth)
}

// renderDebug renders raw levels
func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("DEBUG:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Last seq: %d\n", m.lastSeq))
	for ch, level := range m.latest {
		b.WriteString(fmt.Sprintf("  ch%d: level=%.6f peak=%.6f\n", ch, level, m.peak[ch]))
	}
	b.WriteString("\n")
	return b.String()
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return helpStyle.Render("↑/↓:Volume  c:Clear  d:Debug  q:Quit") + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.setVolume(m.volume + volumeStep)
	case "down":
		m.setVolume(m.volume - volumeStep)
	case "c":
		m.history = make([][]float64, len(m.latest))
		for ch := range m.peak {
			m.peak[ch] = 0
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// setVolume clamps and publishes a new volume
func (m *Model) setVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	if volume == m.volume {
		return
	}
	m.volume = volume

	if m.volumeCtrl != nil {
		select {
		case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: float64(volume) / 100}:
		default:
		}
	}
}

// applyLevels appends an update to the per-channel history
func (m *Model) applyLevels(u meter.Update) {
	if m.received > 0 && u.Seq > m.lastSeq+1 {
		m.gaps += u.Seq - m.lastSeq - 1
	}
	m.received++
	m.lastSeq = u.Seq

	if len(u.Levels) != len(m.latest) {
		m.history = make([][]float64, len(u.Levels))
		m.peak = make([]float64, len(u.Levels))
	}
	m.latest = append(m.latest[:0], u.Levels...)

	for ch, level := range u.Levels {
		m.history[ch] = append(m.history[ch], level)

		// Peak hold decays by about 1.5dB per update
		m.peak[ch] = math.Max(level, m.peak[ch]*0.84)
	}
	m.trimHistory()
}

// trimHistory keeps one history column per waveform cell
func (m *Model) trimHistory() {
	limit := m.columns() - 4
	if limit <= 0 {
		limit = defaultHistory
	}
	for ch, h := range m.history {
		if len(h) > limit {
			m.history[ch] = append([]float64(nil), h[len(h)-limit:]...)
		}
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Title != "" {
		m.title = msg.Title
	}
	if msg.Format != nil {
		m.format = *msg.Format
	}
	if msg.Connected != nil {
		m.remote = true
		m.connected = *msg.Connected
	}
	if msg.Volume != nil {
		m.volume = int(math.Round(*msg.Volume * 100))
	}
	if msg.Dropped != 0 {
		m.dropped = msg.Dropped
	}
	m.queueDepth = msg.QueueDepth
}

func (m Model) columns() int {
	if m.width <= 0 {
		return defaultHistory + 4
	}
	return m.width
}

// levelToDB converts a normalized level to dBFS, floored at floorDB
func levelToDB(level float64) float64 {
	if level <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(level)
	if db < floorDB {
		return floorDB
	}
	return db
}

func formatDB(db float64) string {
	if db <= floorDB {
		return "-inf"
	}
	return fmt.Sprintf("%.1f", db)
}

func levelStyle(db float64) lipgloss.Style {
	switch {
	case db >= -3:
		return hotStyle
	case db >= -12:
		return midStyle
	default:
		return lowStyle
	}
}

// renderBar draws a dB-scaled bar with a peak-hold marker
func renderBar(db float64, width int, peak float64) string {
	filled := int(math.Round((db - floorDB) / -floorDB * float64(width)))
	hold := int(math.Round((levelToDB(peak)-floorDB)/-floorDB*float64(width))) - 1

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteRune('█')
		case i == hold && hold > 0:
			b.WriteRune('▏')
		default:
			b.WriteRune('░')
		}
	}
	return b.String()
}

// renderWave draws one rune per history entry, louder is taller
func renderWave(history []float64) string {
	top := len(waveRunes) - 1
	runes := make([]rune, len(history))
	for i, level := range history {
		idx := int(math.Round((levelToDB(level) - floorDB) / -floorDB * float64(top)))
		if idx < 0 {
			idx = 0
		}
		if idx > top {
			idx = top
		}
		runes[i] = waveRunes[idx]
	}
	return string(runes)
}

// Utility functions
func renderVolume(value, width int) string {
	filled := (value * width) / 100
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length || length < 4 {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(ch, channels int) string {
	if channels == 2 {
		if ch == 0 {
			return "L"
		}
		return "R"
	}
	return fmt.Sprintf("%d", ch+1)
}
