// Package config parses command-line flags and the environment into an
// immutable Config, validated once at startup.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vox/record"
	"vox/seek"
	"vox/transcriber"
	"vox/waveform"
)

// ConfigurationError names the setting that failed validation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ErrHelp is returned by Parse when -h or -help was given.
var ErrHelp = flag.ErrHelp

const (
	ProviderNone = "none"
	ProviderFake = "fake"
)

type Config struct {
	// File is the voice message to open. Empty only when recording, or in
	// doctor and version modes.
	File string

	Provider string
	Language string
	Keys     transcriber.Keys
	// Copy puts finished transcriptions on the clipboard.
	Copy    bool
	Timeout time.Duration

	Hold    time.Duration
	Slop    float64
	Spacing float64
	Theme   string

	DataDir   string
	StorePath string
	CachePath string
	NoCache   bool

	Record      bool
	Broadcast   bool
	ChunkLength time.Duration
	MaxLength   time.Duration
	AutoStop    bool
	Device      string
	Output      string
	Setup       bool
	NoBeep      bool

	LogPath string
	Test    bool
	Doctor  bool
	Version bool
	Profile string
}

// TranscriptionEnabled reports whether a provider is configured or can be
// picked from the available keys.
func (c Config) TranscriptionEnabled() bool {
	switch c.Provider {
	case ProviderNone:
		return false
	case "":
		return c.Keys.Deepgram != "" || c.Keys.Groq != "" || c.Keys.OpenAI != ""
	}
	return true
}

// Parse reads args (without the program name) and the environment through
// getenv. A nil getenv uses os.Getenv. The result is validated.
func Parse(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if output == nil {
		output = io.Discard
	}

	var c Config
	fs := flag.NewFlagSet("vox", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&c.Provider, "provider", getenv("VOX_PROVIDER"), "transcription provider: deepgram, groq, openai, fake or none (default: first with an API key)")
	fs.StringVar(&c.Language, "lang", "", "transcription language code (e.g., en, es, fr); empty for auto-detect")
	fs.BoolVar(&c.Copy, "copy", true, "copy transcriptions to the clipboard")
	fs.DurationVar(&c.Timeout, "timeout", transcriber.DefaultRequestTimeout, "transcription request timeout")

	fs.DurationVar(&c.Hold, "hold", seek.DefaultHold, "long-press duration that arms waveform seeking")
	fs.Float64Var(&c.Slop, "slop", seek.DefaultSlop, "pointer movement tolerated before seeking is armed")
	fs.Float64Var(&c.Spacing, "spacing", waveform.DefaultSpacing, "columns per waveform bar")
	fs.StringVar(&c.Theme, "theme", "dark", "color theme: dark or light")

	fs.StringVar(&c.DataDir, "data", "", "directory for the transcription store and waveform cache")
	fs.BoolVar(&c.NoCache, "nocache", false, "disable the waveform cache")

	fs.BoolVar(&c.Record, "record", false, "record a new voice message before playback")
	fs.BoolVar(&c.Broadcast, "broadcast", false, "record a voice broadcast split into chunks (implies -record)")
	fs.DurationVar(&c.ChunkLength, "chunk", record.DefaultChunkLength, "voice broadcast chunk length")
	fs.DurationVar(&c.MaxLength, "maxlength", record.DefaultMaxLength, "voice broadcast maximum length")
	fs.BoolVar(&c.AutoStop, "autostop", true, "stop recording after 30s of silence")
	fs.StringVar(&c.Device, "device", "", "use named capture device")
	fs.StringVar(&c.Output, "output", "", "use named playback device")
	fs.BoolVar(&c.Setup, "setup", false, "select playback and capture devices interactively")
	fs.BoolVar(&c.NoBeep, "nobeep", false, "disable recording cues")

	fs.StringVar(&c.LogPath, "logpath", "", "log directory path (default: OS-specific, use ./ for current dir)")
	fs.BoolVar(&c.Test, "test", false, "run headless, driven by commands on stdin")
	fs.BoolVar(&c.Doctor, "doctor", false, "run system diagnostics and exit")
	fs.BoolVar(&c.Version, "version", false, "print version and exit")
	fs.StringVar(&c.Profile, "profile", "", "enable pprof server on address (e.g., localhost:6060)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		c.File = rest[0]
	}

	c.Keys = transcriber.Keys{
		Groq:     getenv("GROQ_API_KEY"),
		Deepgram: getenv("DEEPGRAM_API_KEY"),
		OpenAI:   getenv("OPENAI_API_KEY"),
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Broadcast {
		c.Record = true
	}

	if c.DataDir == "" {
		c.DataDir = getenv("VOX_DATA_DIR")
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	c.StorePath = filepath.Join(c.DataDir, "transcriptions.db")
	c.CachePath = filepath.Join(c.DataDir, "waveforms.db")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate returns a *ConfigurationError for the first invalid setting.
func (c Config) Validate() error {
	if c.Version || c.Doctor {
		return nil
	}
	if c.File == "" && !c.Record {
		return &ConfigurationError{Field: "file", Reason: "a voice message file is required unless -record is set"}
	}

	switch c.Provider {
	case "", ProviderNone, ProviderFake:
	case "deepgram":
		if c.Keys.Deepgram == "" {
			return &ConfigurationError{Field: "provider", Reason: "DEEPGRAM_API_KEY not set"}
		}
	case "groq":
		if c.Keys.Groq == "" {
			return &ConfigurationError{Field: "provider", Reason: "GROQ_API_KEY not set"}
		}
	case "openai":
		if c.Keys.OpenAI == "" {
			return &ConfigurationError{Field: "provider", Reason: "OPENAI_API_KEY not set"}
		}
	default:
		return &ConfigurationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", c.Provider)}
	}

	if c.Timeout <= 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.Hold <= 0 {
		return &ConfigurationError{Field: "hold", Reason: "must be positive"}
	}
	if c.Slop < 0 {
		return &ConfigurationError{Field: "slop", Reason: "must not be negative"}
	}
	if c.Spacing <= 0 {
		return &ConfigurationError{Field: "spacing", Reason: "must be positive"}
	}
	if c.Theme != "dark" && c.Theme != "light" {
		return &ConfigurationError{Field: "theme", Reason: fmt.Sprintf("unknown theme %q", c.Theme)}
	}
	if c.ChunkLength <= 0 {
		return &ConfigurationError{Field: "chunk", Reason: "must be positive"}
	}
	if c.MaxLength < c.ChunkLength {
		return &ConfigurationError{Field: "maxlength", Reason: "must be at least the chunk length"}
	}
	if c.Setup && (c.Device != "" || c.Output != "") {
		return &ConfigurationError{Field: "setup", Reason: "cannot be combined with -device or -output"}
	}
	return nil
}

// IsConfigurationError reports whether err came from validation.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vox")
	}
	return filepath.Join(os.TempDir(), "vox")
}
