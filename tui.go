package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vox/playback"
	"vox/record"
	"vox/render"
	"vox/transcriber"
)

// TUI message types
type messageOpenedMsg struct {
	Path          string
	Kind          render.CellKind
	Chunk, Chunks int
}
type playbackStateMsg struct{ State playback.State }
type playbackFailedMsg struct{ Err error }
type transcriptionMsg struct {
	T      transcriber.Transcription
	Copied bool
}
type transcriptionFailedMsg struct{ Err error }
type recordingStartMsg struct{ Broadcast bool }
type recordingStopMsg struct {
	Result record.Result
	Err    error
}
type recordingTickMsg struct {
	Elapsed time.Duration
	Chunks  int
}
type audioLevelMsg struct{ Level float64 }
type silenceMsg struct{ Event record.SilenceEvent }
type tickMsg time.Time

// Layout rows, counted from the top of the view.
const (
	titleRow  = 2
	widgetRow = 3
)

// columnPoints is how much widget width one terminal column counts for, so
// that the default bar spacing gives one waveform bar per column.
const columnPoints = 4.0

// tuiSink forwards pipeline events into the running program.
type tuiSink struct{}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func sendTUI(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (tuiSink) MessageOpened(path string, kind render.CellKind, chunk, chunks int) {
	sendTUI(messageOpenedMsg{Path: path, Kind: kind, Chunk: chunk, Chunks: chunks})
}

func (tuiSink) PlaybackState(s playback.State) {
	sendTUI(playbackStateMsg{State: s})
}

func (tuiSink) PlaybackFailed(err error) {
	sendTUI(playbackFailedMsg{Err: err})
}

func (tuiSink) Transcription(t transcriber.Transcription, copied bool) {
	sendTUI(transcriptionMsg{T: t, Copied: copied})
}

func (tuiSink) TranscriptionFailed(err error) {
	sendTUI(transcriptionFailedMsg{Err: err})
}

func (tuiSink) RecordingStart(broadcast bool) {
	sendTUI(recordingStartMsg{Broadcast: broadcast})
}

func (tuiSink) RecordingStop(res record.Result, err error) {
	sendTUI(recordingStopMsg{Result: res, Err: err})
}

func (tuiSink) RecordingTick(elapsed time.Duration, chunks int) {
	sendTUI(recordingTickMsg{Elapsed: elapsed, Chunks: chunks})
}

func (tuiSink) AudioLevel(level float64) {
	sendTUI(audioLevelMsg{Level: level})
}

func (tuiSink) Silence(ev record.SilenceEvent) {
	sendTUI(silenceMsg{Event: ev})
}

type tuiModel struct {
	app    *app
	theme  render.Theme
	widget *render.TermWidget

	width, height int
	frame         int

	path    string
	kind    render.CellKind
	chunk   int
	chunks  int
	state   playback.State
	opened  bool
	decoded bool

	recording bool
	broadcast render.Broadcast
	level     float64
	peakLevel float64
	noVoice   bool

	transcribing bool
	lastText     string
	language     string
	cached       bool
	copied       bool
	status       string
	dragging     bool
}

func NewTUIProgram(a *app, th render.Theme) *tea.Program {
	m := tuiModel{
		app:    a,
		theme:  th,
		widget: render.NewTermWidget(th),
	}
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) bindOptions() render.BindOptions {
	return render.BindOptions{TranscriptionAvailable: m.app.transcriptionAvailable() && m.kind == render.CellVoiceMessage}
}

func (m tuiModel) waveformCols() int {
	return render.WaveformWidth(m.width)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.app.WidthChanged(float64(m.waveformCols()) * columnPoints)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			m.app.TogglePlayback()
		case "left":
			m.app.SeekBy(-0.05)
		case "right":
			m.app.SeekBy(0.05)
		case "t":
			m = m.requestTranscription()
		case "r":
			if err := m.app.ToggleRecording(); err != nil {
				m.status = "recording failed: " + err.Error()
			}
		case "]":
			m.app.Chunk(1, false)
		case "[":
			m.app.Chunk(-1, false)
		case "esc":
			m.app.Cancel()
			m.dragging = false
		}

	case tea.MouseMsg:
		m = m.handleMouse(msg)

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case messageOpenedMsg:
		m.path = msg.Path
		m.kind = msg.Kind
		m.chunk, m.chunks = msg.Chunk, msg.Chunks
		m.opened = true
		m.decoded = false
		m.state = playback.State{}
		m.lastText, m.language, m.copied, m.transcribing = "", "", false, false
		m.widget = render.NewTermWidget(m.theme)
		if m.width > 0 {
			m.app.WidthChanged(float64(m.waveformCols()) * columnPoints)
		}

	case playbackStateMsg:
		m.state = msg.State
		render.Apply(m.widget, render.Bind(msg.State, m.theme, m.bindOptions()))

	case playbackFailedMsg:
		m.status = "cannot play this message: " + msg.Err.Error()

	case transcriptionMsg:
		m.transcribing = false
		m.lastText = msg.T.Text
		m.language = msg.T.LanguageName
		m.cached = msg.T.Cached
		m.copied = msg.Copied
		m.status = ""

	case transcriptionFailedMsg:
		m.transcribing = false
		m.status = "no transcription available"

	case recordingStartMsg:
		m.recording = true
		m.level, m.peakLevel, m.noVoice = 0, 0, false
		m.broadcast = render.Broadcast{State: render.BroadcastStarted, MaxLength: m.app.cfg.MaxLength}
		m.status = ""

	case recordingStopMsg:
		m.recording = false
		m.level = 0
		m.broadcast.State = render.BroadcastStopped
		switch {
		case msg.Err != nil:
			m.status = "recording failed: " + msg.Err.Error()
		case len(msg.Result.Files) == 0:
			m.status = "recording too short"
		case msg.Result.Reason != record.StopRequested:
			m.status = "recording stopped: " + msg.Result.Reason.String()
		}

	case recordingTickMsg:
		m.broadcast.Elapsed = msg.Elapsed
		m.broadcast.Chunks = msg.Chunks

	case audioLevelMsg:
		if m.recording {
			m.level = m.level*0.6 + msg.Level*0.4
			m.peakLevel = max(m.peakLevel, msg.Level)
		}

	case silenceMsg:
		switch msg.Event {
		case record.SilenceWarn, record.SilenceRepeat:
			m.noVoice = true
		case record.SilenceWarnClear:
			m.noVoice = false
		}
	}
	return m, nil
}

func (m tuiModel) requestTranscription() tuiModel {
	err := m.app.Transcribe()
	switch {
	case err == nil:
		m.transcribing = true
		m.status = ""
	case errors.Is(err, transcriber.ErrTranscriptionInProgress):
		m.status = "transcription already in progress"
	case errors.Is(err, transcriber.ErrNoProvider):
		m.status = "no transcription provider configured"
	default:
		m.status = err.Error()
	}
	return m
}

func (m tuiModel) handleMouse(msg tea.MouseMsg) tuiModel {
	cols := m.waveformCols()
	x := msg.X - render.WaveformOffset
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.Y != widgetRow {
			return m
		}
		switch {
		case x >= 0 && x < cols:
			m.app.Press(float64(x)*columnPoints, float64(cols)*columnPoints)
			m.dragging = true
		case msg.X < render.WaveformOffset:
			m.app.TogglePlayback()
		case msg.X >= m.width-4:
			m = m.requestTranscription()
		}
	case tea.MouseActionMotion:
		if m.dragging {
			m.app.Drag(float64(x) * columnPoints)
		}
	case tea.MouseActionRelease:
		if m.dragging {
			m.app.Release()
			m.dragging = false
		}
	}
	return m
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	th := m.theme
	dim := lipgloss.NewStyle().Foreground(th.QuarterlyContent)
	secondary := lipgloss.NewStyle().Foreground(th.SecondaryContent)

	var lines []string
	lines = append(lines, secondary.Bold(true).Render("vox")+dim.Render(" "+version))
	lines = append(lines, "")

	switch {
	case m.recording && m.app.cfg.Broadcast:
		cell := render.Cell{Kind: render.CellBroadcastRecorder, Sender: "You", Broadcast: m.broadcast}
		lines = append(lines, strings.Split(render.DrawCell(cell, th, m.width, render.BindOptions{}), "\n")...)
	case m.recording:
		lines = append(lines, secondary.Bold(true).Render("You"))
		lines = append(lines, m.recordingLine())
	case m.opened:
		view := render.BindCell(render.Cell{Kind: m.kind, Sender: m.title()}, th, m.bindOptions())
		lines = append(lines, secondary.Bold(true).Render(view.Title))
		lines = append(lines, m.widget.View(m.width))
	default:
		lines = append(lines, dim.Render("No voice message open. Press r to record."))
		lines = append(lines, "")
	}
	if m.recording && m.noVoice {
		lines = append(lines, lipgloss.NewStyle().Foreground(th.Warning).Render("  ⚠ no voice detected"))
	}

	lines = append(lines, "")
	lines = append(lines, m.transcriptLines()...)

	if m.status != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(th.Warning).Render(m.status))
	}

	lines = append(lines, "", dim.Render(m.helpLine()))
	return strings.Join(lines, "\n")
}

func (m tuiModel) title() string {
	name := filepath.Base(m.path)
	if m.kind == render.CellBroadcastPlayback && m.chunks > 0 {
		name = fmt.Sprintf("%s (%d/%d)", name, m.chunk+1, m.chunks)
	}
	return name
}

func (m tuiModel) recordingLine() string {
	th := m.theme
	rec := lipgloss.NewStyle().Foreground(th.Recording).Bold(true).
		Render(fmt.Sprintf(" ● REC %s", playback.FormatElapsed(m.broadcast.Elapsed)))
	meterWidth := max(m.width-16, 0)
	filled := min(int(m.level*10*float64(meterWidth)), meterWidth)
	meter := lipgloss.NewStyle().Foreground(th.SecondaryContent).Render(strings.Repeat("▮", filled)) +
		lipgloss.NewStyle().Foreground(th.QuarterlyContent).Render(strings.Repeat("·", meterWidth-filled))
	return rec + " " + meter
}

func (m tuiModel) transcriptLines() []string {
	th := m.theme
	dim := lipgloss.NewStyle().Foreground(th.QuarterlyContent)
	switch {
	case m.transcribing:
		spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		return []string{dim.Render(spinner[m.frame%len(spinner)] + " transcribing…")}
	case m.lastText == "":
		return nil
	}

	var out []string
	header := "Transcription"
	if m.language != "" {
		header += " (" + m.language + ")"
	}
	if m.cached {
		header += " · cached"
	}
	out = append(out, dim.Render(header))
	textStyle := lipgloss.NewStyle().Foreground(th.SecondaryContent)
	wrapped := wrapText(m.lastText, max(m.width-2, 10))
	for i, line := range wrapped {
		s := textStyle.Render(line)
		if i == len(wrapped)-1 && m.copied {
			s += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("[✓ copied]")
		}
		out = append(out, s)
	}
	return out
}

func (m tuiModel) helpLine() string {
	parts := []string{"space play/pause", "←/→ seek", "hold+drag waveform to scrub", "r record"}
	if m.app.transcriptionAvailable() {
		parts = append(parts, "t transcribe")
	}
	if m.chunks > 1 {
		parts = append(parts, "[/] chunk")
	}
	parts = append(parts, "q quit")
	return strings.Join(parts, " · ")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
