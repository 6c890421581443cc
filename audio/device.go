package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// DeviceKind tells capture devices from playback outputs.
type DeviceKind int

const (
	CaptureKind DeviceKind = iota
	OutputKind
)

func (k DeviceKind) String() string {
	if k == OutputKind {
		return "output"
	}
	return "input"
}

// ErrSelectionAborted is returned when the user cancels the device picker.
var ErrSelectionAborted = errors.New("device selection aborted")

// ListDevices enumerates the devices of one kind.
func ListDevices(ctx Context, kind DeviceKind) ([]DeviceInfo, error) {
	var (
		devices []DeviceInfo
		err     error
	)
	if kind == OutputKind {
		devices, err = ctx.OutputDevices()
	} else {
		devices, err = ctx.Devices()
	}
	if err != nil {
		return nil, fmt.Errorf("enumerating %s devices: %w", kind, err)
	}
	return devices, nil
}

// FindDevice looks a device up by name. An empty name selects the system
// default and returns nil.
func FindDevice(ctx Context, kind DeviceKind, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ListDevices(ctx, kind)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%s device %q not found", kind, name)
}

// SelectDevice presents an interactive picker for devices of the given kind.
// If only one device is available, it returns that device without prompting.
func SelectDevice(ctx Context, kind DeviceKind) (*DeviceInfo, error) {
	devices, err := ListDevices(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no %s devices found", kind)
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	p := &picker{devices: devices, kind: kind}
	p.render(os.Stdout)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch p.key(buf[:n]) {
		case pickDone:
			fmt.Print("\r\n")
			return &devices[p.cursor], nil
		case pickAbort:
			fmt.Print("\r\n")
			return nil, ErrSelectionAborted
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		p.render(os.Stdout)
	}
}

type pickResult int

const (
	pickMoved pickResult = iota
	pickDone
	pickAbort
)

// picker is the cursor state behind SelectDevice, kept apart from the
// terminal so it can be driven with raw key bytes.
type picker struct {
	devices []DeviceInfo
	kind    DeviceKind
	cursor  int
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprintf(w, "Select %s device (↑/↓, Enter to confirm):\r\n\r\n", p.kind)
	for i, d := range p.devices {
		btTag := ""
		if IsBluetooth(d.Name) {
			btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, btTag)
		}
	}
}

func (p *picker) key(b []byte) pickResult {
	switch {
	case len(b) == 1:
		switch b[0] {
		case 13: // Enter
			return pickDone
		case 3: // Ctrl+C
			return pickAbort
		case 'j':
			p.move(1)
		case 'k':
			p.move(-1)
		}
	case len(b) == 3 && b[0] == 0x1b && b[1] == '[':
		switch b[2] {
		case 'A':
			p.move(-1)
		case 'B':
			p.move(1)
		}
	}
	return pickMoved
}

func (p *picker) move(delta int) {
	p.cursor = max(0, min(len(p.devices)-1, p.cursor+delta))
}
