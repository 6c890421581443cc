// Package doctor runs interactive checks of the audio, transcription,
// clipboard and storage setup.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"vox/audio"
	"vox/beep"
	"vox/clipboard"
	"vox/record"
	"vox/shutdown"
	"vox/store"
	"vox/transcriber"
)

type Options struct {
	// File, when set, is decoded as part of the playback check.
	File      string
	Provider  string
	Language  string
	Keys      transcriber.Keys
	StorePath string
	Device    string
}

// check is one numbered diagnostic step.
type check struct {
	name string
	run  func(*session) bool
}

type session struct {
	opts        Options
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	ctx         audio.Context
	recording   []int16
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). A failed audio check skips the steps that depend on it.
func Run(opts Options) int {
	resetTerminal()
	stopInterrupt := setupInterruptHandler()
	defer stopInterrupt()

	s := &session{
		opts:        opts,
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}

	fmt.Fprintln(s.out, "vox doctor - interactive system diagnostics")
	fmt.Fprintln(s.out, "============================================")

	checks := []check{
		{"Audio output", (*session).checkOutput},
		{"Decoding", (*session).checkDecode},
		{"Microphone", (*session).checkMicrophone},
		{"Transcription", (*session).checkTranscription},
		{"Clipboard", (*session).checkClipboard},
		{"Transcription store", (*session).checkStore},
	}

	allPass := true
	for i, c := range checks {
		fmt.Fprintln(s.out)
		fmt.Fprintf(s.out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(s) {
			allPass = false
		}
	}
	if s.ctx != nil {
		s.ctx.Close()
	}

	fmt.Fprintln(s.out)
	if allPass {
		fmt.Fprintln(s.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(s.out, "Some checks failed. See details above.")
	return 1
}

func (s *session) pass(format string, args ...any) bool {
	fmt.Fprintf(s.out, "  PASS: "+format+"\n", args...)
	return true
}

func (s *session) fail(format string, args ...any) bool {
	fmt.Fprintf(s.out, "  FAIL: "+format+"\n", args...)
	return false
}

func (s *session) skip(reason string) bool {
	fmt.Fprintf(s.out, "  SKIP: %s\n", reason)
	return true
}

// confirm asks a yes/no question. Non-interactive sessions answer yes.
func (s *session) confirm(question string) bool {
	if !s.interactive {
		return true
	}
	fmt.Fprintf(s.out, "%s [y/n]: ", question)
	answer, _ := s.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (s *session) checkOutput() bool {
	ctx, err := audio.NewContext()
	if err != nil {
		return s.fail("cannot connect to audio: %v", err)
	}
	s.ctx = ctx

	outputs, err := audio.ListDevices(ctx, audio.OutputKind)
	if err != nil {
		return s.fail("%v", err)
	}
	for _, d := range outputs {
		fmt.Fprintf(s.out, "  output: %s\n", d.Name)
	}

	p := beep.New(ctx)
	p.Play(beep.Start)
	p.Wait()
	p.Play(beep.End)
	p.Wait()

	if !s.confirm("Did you hear two short ticks?") {
		return s.fail("output not confirmed")
	}
	return s.pass("output device plays audio")
}

func (s *session) checkDecode() bool {
	if s.opts.File == "" {
		return s.skip("no file given")
	}
	pcm, err := audio.Decode(s.opts.File)
	if err != nil {
		return s.fail("%v", err)
	}
	return s.pass("%s: %.1fs at %d Hz", s.opts.File, pcm.Duration().Seconds(), pcm.SampleRate)
}

func (s *session) checkMicrophone() bool {
	if s.ctx == nil {
		return s.skip("audio unavailable")
	}

	device, err := s.pickDevice()
	if err != nil {
		return s.fail("%v", err)
	}
	capture, err := s.ctx.NewCapture(device, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		return s.fail("cannot open capture device: %v", err)
	}
	defer capture.Close()

	dir, err := os.MkdirTemp("", "vox-doctor")
	if err != nil {
		return s.fail("%v", err)
	}
	defer os.RemoveAll(dir)

	if s.interactive {
		fmt.Fprint(s.out, "Press Enter and speak for 3 seconds...")
		s.in.ReadString('\n')
	}

	rec := record.New(capture, nil, record.Options{Dir: dir})
	stop := make(chan struct{})
	time.AfterFunc(3*time.Second, func() { close(stop) })

	fmt.Fprint(s.out, "  Recording")
	var peak float64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case ev := <-rec.Events():
				switch ev.Kind {
				case record.EventLevel:
					peak = max(peak, ev.Level)
				case record.EventTick:
					if ev.Elapsed%(500*time.Millisecond) < record.DefaultTickInterval {
						fmt.Fprint(s.out, ".")
					}
				}
			}
		}
	}()

	res, err := rec.Record(stop)
	<-done
	fmt.Fprintln(s.out, " done")
	if err != nil {
		return s.fail("recording error: %v", err)
	}
	if len(res.Files) == 0 {
		return s.fail("no audio captured")
	}
	pcm, err := audio.Decode(res.Files[0])
	if err != nil {
		return s.fail("recorded file unreadable: %v", err)
	}
	s.recording = pcm.Samples

	if peak < record.DefaultSpeechThreshold {
		fmt.Fprintf(s.out, "  Warning: peak level %.3f is below the speech threshold\n", peak)
	}
	return s.pass("captured %.1fs", res.Duration.Seconds())
}

func (s *session) pickDevice() (*audio.DeviceInfo, error) {
	if s.opts.Device != "" {
		return audio.FindDevice(s.ctx, audio.CaptureKind, s.opts.Device)
	}
	devices, err := audio.ListDevices(s.ctx, audio.CaptureKind)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 || !s.interactive {
		fmt.Fprintf(s.out, "Using device: %s\n", devices[0].Name)
		return &devices[0], nil
	}
	return audio.SelectDevice(s.ctx, audio.CaptureKind)
}

func (s *session) checkTranscription() bool {
	if s.opts.Provider == "none" {
		return s.skip("transcription disabled")
	}
	tr, err := transcriber.New(s.opts.Provider, s.opts.Keys)
	if err != nil {
		return s.skip(err.Error())
	}
	if len(s.recording) == 0 {
		return s.skip("nothing recorded")
	}

	fmt.Fprintf(s.out, "  Transcribing with %s...\n", tr.Name())
	ctx, cancel := context.WithTimeout(context.Background(), transcriber.DefaultRequestTimeout)
	defer cancel()
	res, err := transcriber.Transcribe(ctx, tr, s.recording, s.opts.Language)
	if err != nil {
		return s.fail("transcription error: %v", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(s.out, "\n  Transcribed text: %s\n\n", text)

	if !s.confirm("Is this correct?") {
		return s.fail("transcription not confirmed")
	}
	return s.pass("transcription verified")
}

func (s *session) checkClipboard() bool {
	if !clipboard.Available() {
		return s.skip("no clipboard utility; transcriptions will use OSC 52")
	}
	testStr := fmt.Sprintf("vox-doctor-%d", time.Now().UnixNano())
	if err := clipboard.Copy(testStr); err != nil {
		return s.fail("clipboard write failed: %v", err)
	}
	got, err := clipboard.Read()
	if err != nil {
		return s.fail("clipboard read failed: %v", err)
	}
	if got != testStr {
		return s.fail("clipboard mismatch: wrote %q, got %q", testStr, got)
	}
	return s.pass("clipboard write/read verified")
}

func (s *session) checkStore() bool {
	if s.opts.StorePath == "" {
		return s.skip("no store path")
	}
	st, err := store.Open(s.opts.StorePath)
	if err != nil {
		return s.fail("%v", err)
	}
	defer st.Close()

	recent, err := st.Recent(context.Background(), 1)
	if err != nil {
		return s.fail("query failed: %v", err)
	}
	return s.pass("%s opened (%d recent rows)", s.opts.StorePath, len(recent))
}

func setupInterruptHandler() func() {
	sigChan := make(chan os.Signal, 1)
	done := make(chan struct{})
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
			resetTerminal()
			println("\nInterrupted")
			os.Exit(1)
		case <-done:
		}
	}()
	return func() {
		shutdown.Stop(sigChan)
		close(done)
	}
}
