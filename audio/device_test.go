package audio

import (
	"bytes"
	"strings"
	"testing"
)

func TestPickerKeys(t *testing.T) {
	p := &picker{devices: []DeviceInfo{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	steps := []struct {
		key    []byte
		cursor int
		result pickResult
	}{
		{[]byte{0x1b, '[', 'B'}, 1, pickMoved},
		{[]byte("j"), 2, pickMoved},
		{[]byte("j"), 2, pickMoved}, // clamped at the last device
		{[]byte{0x1b, '[', 'A'}, 1, pickMoved},
		{[]byte("k"), 0, pickMoved},
		{[]byte("k"), 0, pickMoved},
		{[]byte("x"), 0, pickMoved},
		{[]byte{13}, 0, pickDone},
		{[]byte{3}, 0, pickAbort},
	}
	for i, s := range steps {
		if got := p.key(s.key); got != s.result || p.cursor != s.cursor {
			t.Errorf("step %d: result %v cursor %d, want %v cursor %d", i, got, p.cursor, s.result, s.cursor)
		}
	}
}

func TestPickerRender(t *testing.T) {
	p := &picker{
		devices: []DeviceInfo{{Name: "Built-in Speakers"}, {Name: "AirPods Pro"}},
		kind:    OutputKind,
		cursor:  1,
	}
	var buf bytes.Buffer
	p.render(&buf)
	out := buf.String()

	if !strings.Contains(out, "Select output device") {
		t.Errorf("missing output heading: %q", out)
	}
	if !strings.Contains(out, "▶ AirPods Pro") {
		t.Errorf("cursor not on second device: %q", out)
	}
	if strings.Count(out, "Lower audio quality") != 1 {
		t.Errorf("bluetooth tag count wrong: %q", out)
	}
}

func TestFindDevice(t *testing.T) {
	ctx, _ := NewFakeContext("", false)

	tests := []struct {
		kind    DeviceKind
		name    string
		want    string
		wantErr bool
	}{
		{CaptureKind, "", "", false},
		{CaptureKind, "fake", "fake", false},
		{OutputKind, "fake speaker", "fake speaker", false},
		{OutputKind, "fake", "", true},
		{CaptureKind, "fake speaker", "", true},
	}
	for _, tt := range tests {
		d, err := FindDevice(ctx, tt.kind, tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("FindDevice(%v, %q) err = %v", tt.kind, tt.name, err)
			continue
		}
		got := ""
		if d != nil {
			got = d.Name
		}
		if got != tt.want {
			t.Errorf("FindDevice(%v, %q) = %q, want %q", tt.kind, tt.name, got, tt.want)
		}
	}
}

func TestSelectDeviceSingleOutput(t *testing.T) {
	ctx, _ := NewFakeContext("", false)
	d, err := SelectDevice(ctx, OutputKind)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "fake speaker" {
		t.Errorf("selected %q", d.Name)
	}
}
