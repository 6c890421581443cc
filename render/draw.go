package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var barGlyphs = []rune("▁▂▃▄▅▆▇█")

// WaveformWidth is the number of terminal columns the waveform gets when the
// whole widget is width columns wide.
func WaveformWidth(width int) int {
	return max(width-chromeWidth, 0)
}

// play button (3) + gap (1) + label (6) + gap (1) + transcribe button (3) + padding (2)
const chromeWidth = 16

// WaveformOffset is the column where the waveform starts, relative to the
// widget's left edge.
const WaveformOffset = 5

// Draw lays p out on one line of the given width.
func Draw(p Props, width int) string {
	th := p.Theme
	button := lipgloss.NewStyle().Foreground(th.SecondaryContent).Background(th.Bubble)
	dim := lipgloss.NewStyle().Foreground(th.QuarterlyContent)

	var b strings.Builder
	b.WriteString(" ")
	switch {
	case !p.Hidden[ElementRecordingIcon]:
		b.WriteString(lipgloss.NewStyle().Foreground(th.Recording).Bold(true).Render(" ● "))
	case p.Hidden[ElementPlayButton]:
		b.WriteString("   ")
	case !p.PlayEnabled:
		b.WriteString(dim.Render(" ▶ "))
	case p.PlayIcon == IconPause:
		b.WriteString(button.Render(" ❚❚"))
	default:
		b.WriteString(button.Render(" ▶ "))
	}
	b.WriteString(" ")
	b.WriteString(drawWaveform(p, WaveformWidth(width)))
	b.WriteString(" ")
	b.WriteString(lipgloss.NewStyle().Foreground(th.SecondaryContent).Width(6).Align(lipgloss.Right).Render(p.ElapsedLabel))
	b.WriteString(" ")
	if p.Hidden[ElementTranscribeButton] {
		b.WriteString("   ")
	} else {
		b.WriteString(button.Render(" T "))
	}
	return lipgloss.NewStyle().Background(th.QuinaryContent).Render(b.String())
}

func drawWaveform(p Props, cols int) string {
	if cols <= 0 {
		return ""
	}
	th := p.Theme
	played := lipgloss.NewStyle().Foreground(th.SecondaryContent)
	unplayed := lipgloss.NewStyle().Foreground(th.QuarterlyContent)
	if p.WaveformAlpha < AlphaNormal {
		played = played.Faint(true)
		unplayed = unplayed.Faint(true)
	}

	n := p.Samples.Len()
	if n == 0 {
		return unplayed.Render(strings.Repeat("·", cols))
	}

	head := int(p.Progress * float64(cols))
	var playedPart, rest strings.Builder
	for col := 0; col < cols; col++ {
		amp := p.Samples.At(col * n / cols)
		glyph := barGlyphs[min(int(amp*float64(len(barGlyphs))), len(barGlyphs)-1)]
		if col < head {
			playedPart.WriteRune(glyph)
		} else {
			rest.WriteRune(glyph)
		}
	}
	return played.Render(playedPart.String()) + unplayed.Render(rest.String())
}

// DrawCell renders a timeline cell: a title line and its content line.
func DrawCell(c Cell, th Theme, width int, opts BindOptions) string {
	v := BindCell(c, th, opts)
	title := lipgloss.NewStyle().Foreground(th.SecondaryContent).Bold(true).Render(v.Title)
	switch {
	case v.Props != nil:
		return title + "\n" + Draw(*v.Props, width)
	case v.Recorder != "":
		line := lipgloss.NewStyle().Foreground(th.Recording).Render(" ● ") +
			lipgloss.NewStyle().Foreground(th.SecondaryContent).Render(v.Recorder)
		return title + "\n" + line
	}
	return title
}
