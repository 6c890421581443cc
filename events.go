package main

import (
	"time"

	"vox/playback"
	"vox/record"
	"vox/render"
	"vox/transcriber"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI and the
// headless test driver receive the same playback and recording events.
type EventSink interface {
	MessageOpened(path string, kind render.CellKind, chunk, chunks int)
	PlaybackState(s playback.State)
	PlaybackFailed(err error)
	Transcription(t transcriber.Transcription, copied bool)
	TranscriptionFailed(err error)
	RecordingStart(broadcast bool)
	RecordingStop(res record.Result, err error)
	RecordingTick(elapsed time.Duration, chunks int)
	AudioLevel(level float64)
	Silence(ev record.SilenceEvent)
}
