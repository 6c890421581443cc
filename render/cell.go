package render

import (
	"fmt"
	"time"

	"vox/playback"
)

type CellKind int

const (
	CellVoiceMessage CellKind = iota
	CellBroadcastPlayback
	CellBroadcastRecorder
)

type BroadcastState int

const (
	BroadcastStarted BroadcastState = iota
	BroadcastPaused
	BroadcastStopped
)

func (s BroadcastState) String() string {
	switch s {
	case BroadcastStarted:
		return "live"
	case BroadcastPaused:
		return "paused"
	case BroadcastStopped:
		return "ended"
	}
	return "unknown"
}

// Broadcast describes a voice broadcast being recorded by the local user.
type Broadcast struct {
	State     BroadcastState
	Elapsed   time.Duration
	MaxLength time.Duration
	Chunks    int
}

// Remaining is the recording time left before the broadcast is cut off.
func (b Broadcast) Remaining() time.Duration {
	return max(b.MaxLength-b.Elapsed, 0)
}

// Cell is one timeline entry. Kind selects which content field is meaningful.
type Cell struct {
	Kind      CellKind
	Sender    string
	Playback  playback.State
	Broadcast Broadcast
}

// CellView is the drawable form of a Cell.
type CellView struct {
	Title    string
	Props    *Props
	Recorder string
}

// BindCell dispatches on the cell kind.
func BindCell(c Cell, th Theme, opts BindOptions) CellView {
	switch c.Kind {
	case CellVoiceMessage:
		p := Bind(c.Playback, th, opts)
		return CellView{Title: c.Sender, Props: &p}
	case CellBroadcastPlayback:
		p := Bind(c.Playback, th, BindOptions{})
		return CellView{Title: c.Sender + " · voice broadcast", Props: &p}
	case CellBroadcastRecorder:
		b := c.Broadcast
		line := fmt.Sprintf("%s  %s  %s left  %d chunks",
			b.State, playback.FormatElapsed(b.Elapsed), playback.FormatElapsed(b.Remaining()), b.Chunks)
		return CellView{Title: c.Sender + " · voice broadcast", Recorder: line}
	}
	return CellView{Title: c.Sender}
}
