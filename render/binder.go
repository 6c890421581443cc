// Package render maps playback state to widget properties. Nothing here
// decides anything; every choice comes from the State it is given.
package render

import (
	"vox/playback"
	"vox/waveform"
)

type Icon int

const (
	IconPlay Icon = iota
	IconPause
)

type Element int

const (
	ElementPlayButton Element = iota
	ElementTranscribeButton
	ElementRecordingIcon
)

var elements = []Element{ElementPlayButton, ElementTranscribeButton, ElementRecordingIcon}

// Alpha values for the waveform.
const (
	AlphaLoading = 0.3
	AlphaNormal  = 1.0
)

// Props are the widget properties derived from one State.
type Props struct {
	PlayEnabled   bool
	PlayIcon      Icon
	Hidden        map[Element]bool
	ElapsedLabel  string
	Progress      float64
	Samples       waveform.Buffer
	WaveformAlpha float64
	Theme         Theme
}

// BindOptions carry host capabilities that are not part of playback state.
type BindOptions struct {
	TranscriptionAvailable bool
}

// Bind is a pure function of its inputs.
func Bind(s playback.State, th Theme, opts BindOptions) Props {
	p := Props{
		PlayEnabled: s.PlaybackEnabled && !s.Recording,
		PlayIcon:    IconPlay,
		Hidden: map[Element]bool{
			ElementPlayButton:       s.Recording,
			ElementTranscribeButton: s.Recording || !opts.TranscriptionAvailable,
			ElementRecordingIcon:    !s.Recording,
		},
		Theme: th,
	}
	if s.Playing {
		p.PlayIcon = IconPause
	}
	if s.Loading {
		p.ElapsedLabel = playback.PlaceholderLabel
		p.Progress = 0
		p.Samples = waveform.Buffer{}
		p.WaveformAlpha = AlphaLoading
	} else {
		p.ElapsedLabel = s.ElapsedLabel
		p.Progress = s.Progress
		p.Samples = s.Samples
		p.WaveformAlpha = AlphaNormal
	}
	return p
}

// Widget is the host view a Props value is applied to.
type Widget interface {
	IsHidden(e Element) bool
	SetHidden(e Element, hidden bool)
	SetPlayButton(enabled bool, icon Icon)
	SetElapsed(label string)
	SetWaveform(progress float64, samples waveform.Buffer, alpha float64)
	SetTheme(th Theme)
}

// Apply pushes p into w. Visibility is only written when it changes, since
// every hidden toggle costs the host a layout pass.
func Apply(w Widget, p Props) {
	w.SetPlayButton(p.PlayEnabled, p.PlayIcon)
	for _, e := range elements {
		if w.IsHidden(e) != p.Hidden[e] {
			w.SetHidden(e, p.Hidden[e])
		}
	}
	w.SetElapsed(p.ElapsedLabel)
	w.SetWaveform(p.Progress, p.Samples, p.WaveformAlpha)
	w.SetTheme(p.Theme)
}
