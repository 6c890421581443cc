package render

import "vox/waveform"

// TermWidget is the terminal host's voice message widget. It keeps the
// applied properties and counts how often visibility changed, which is what
// forces the host to lay the view out again.
type TermWidget struct {
	hidden   map[Element]bool
	enabled  bool
	icon     Icon
	label    string
	progress float64
	samples  waveform.Buffer
	alpha    float64
	theme    Theme
	layouts  int
}

func NewTermWidget(th Theme) *TermWidget {
	return &TermWidget{
		hidden: map[Element]bool{ElementRecordingIcon: true},
		alpha:  AlphaNormal,
		theme:  th,
	}
}

func (w *TermWidget) IsHidden(e Element) bool { return w.hidden[e] }

func (w *TermWidget) SetHidden(e Element, hidden bool) {
	w.hidden[e] = hidden
	w.layouts++
}

func (w *TermWidget) SetPlayButton(enabled bool, icon Icon) {
	w.enabled = enabled
	w.icon = icon
}

func (w *TermWidget) SetElapsed(label string) { w.label = label }

func (w *TermWidget) SetWaveform(progress float64, samples waveform.Buffer, alpha float64) {
	w.progress = progress
	w.samples = samples
	w.alpha = alpha
}

func (w *TermWidget) SetTheme(th Theme) { w.theme = th }

// Layouts is the number of visibility changes applied so far.
func (w *TermWidget) Layouts() int { return w.layouts }

func (w *TermWidget) Props() Props {
	hidden := make(map[Element]bool, len(w.hidden))
	for e, h := range w.hidden {
		hidden[e] = h
	}
	return Props{
		PlayEnabled:   w.enabled,
		PlayIcon:      w.icon,
		Hidden:        hidden,
		ElapsedLabel:  w.label,
		Progress:      w.progress,
		Samples:       w.samples,
		WaveformAlpha: w.alpha,
		Theme:         w.theme,
	}
}

func (w *TermWidget) View(width int) string {
	return Draw(w.Props(), width)
}
