package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vox/seek"
	"vox/waveform"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := Parse([]string{"-data", dir, "msg.flac"}, env(nil), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.File != "msg.flac" {
		t.Errorf("File = %q", c.File)
	}
	if c.Hold != seek.DefaultHold || c.Slop != seek.DefaultSlop {
		t.Errorf("gesture defaults = %v/%v", c.Hold, c.Slop)
	}
	if c.Spacing != waveform.DefaultSpacing {
		t.Errorf("Spacing = %v", c.Spacing)
	}
	if c.StorePath != filepath.Join(dir, "transcriptions.db") {
		t.Errorf("StorePath = %q", c.StorePath)
	}
	if c.CachePath != filepath.Join(dir, "waveforms.db") {
		t.Errorf("CachePath = %q", c.CachePath)
	}
	if c.TranscriptionEnabled() {
		t.Error("transcription enabled without keys")
	}
}

func TestParseKeysFromEnv(t *testing.T) {
	c, err := Parse([]string{"-provider", "groq", "a.wav"}, env(map[string]string{
		"GROQ_API_KEY": "gk",
	}), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Keys.Groq != "gk" || c.Provider != "groq" {
		t.Errorf("keys = %+v provider = %q", c.Keys, c.Provider)
	}
	if !c.TranscriptionEnabled() {
		t.Error("transcription should be enabled")
	}
}

func TestParseUsesProcessEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dk")
	t.Setenv("VOX_DATA_DIR", t.TempDir())
	c, err := Parse([]string{"a.wav"}, nil, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Keys.Deepgram != "dk" {
		t.Errorf("Deepgram key = %q", c.Keys.Deepgram)
	}
	if !c.TranscriptionEnabled() {
		t.Error("auto provider should be enabled by a key")
	}
}

func TestBroadcastImpliesRecord(t *testing.T) {
	c, err := Parse([]string{"-broadcast", "-chunk", "1m", "-maxlength", "10m"}, env(nil), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.Record || !c.Broadcast {
		t.Errorf("Record=%v Broadcast=%v", c.Record, c.Broadcast)
	}
	if c.ChunkLength != time.Minute || c.MaxLength != 10*time.Minute {
		t.Errorf("lengths = %v/%v", c.ChunkLength, c.MaxLength)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"missing file", nil, "file"},
		{"provider without key", []string{"-provider", "openai", "a.wav"}, "provider"},
		{"unknown provider", []string{"-provider", "whisperx", "a.wav"}, "provider"},
		{"zero hold", []string{"-hold", "0s", "a.wav"}, "hold"},
		{"negative slop", []string{"-slop", "-1", "a.wav"}, "slop"},
		{"zero spacing", []string{"-spacing", "0", "a.wav"}, "spacing"},
		{"bad theme", []string{"-theme", "neon", "a.wav"}, "theme"},
		{"max below chunk", []string{"-record", "-chunk", "2m", "-maxlength", "1m"}, "maxlength"},
		{"setup with device", []string{"-setup", "-device", "mic", "a.wav"}, "setup"},
		{"setup with output", []string{"-setup", "-output", "speakers", "a.wav"}, "setup"},
		{"zero timeout", []string{"-timeout", "0s", "a.wav"}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(append([]string{"-data", t.TempDir()}, tt.args...), env(nil), nil)
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigurationError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
			if !IsConfigurationError(err) {
				t.Error("IsConfigurationError = false")
			}
		})
	}
}

func TestDoctorAndVersionSkipFile(t *testing.T) {
	for _, flag := range []string{"-doctor", "-version"} {
		if _, err := Parse([]string{"-data", t.TempDir(), flag}, env(nil), nil); err != nil {
			t.Errorf("%s: %v", flag, err)
		}
	}
}

func TestProviderNoneDisables(t *testing.T) {
	c, err := Parse([]string{"-provider", "none", "a.wav"}, env(map[string]string{"GROQ_API_KEY": "k"}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.TranscriptionEnabled() {
		t.Error("provider none should disable transcription")
	}
}

func TestHelp(t *testing.T) {
	_, err := Parse([]string{"-h"}, env(nil), nil)
	if !errors.Is(err, ErrHelp) {
		t.Errorf("err = %v, want ErrHelp", err)
	}
}
