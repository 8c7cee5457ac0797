/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-synth-go/internal/audio"
	"github.com/loqalabs/loqa-synth-go/internal/config"
	"github.com/loqalabs/loqa-synth-go/internal/dsp"
	"github.com/loqalabs/loqa-synth-go/internal/fm"
	"github.com/loqalabs/loqa-synth-go/internal/host"
	"github.com/loqalabs/loqa-synth-go/internal/midi"
	synthnats "github.com/loqalabs/loqa-synth-go/internal/nats"
	"github.com/loqalabs/loqa-synth-go/internal/velocity"
	"github.com/loqalabs/loqa-synth-go/internal/wavout"
)

// errUsage reports bad command-line input; the flag package has already printed
// the reason and the usage text.
var errUsage = errors.New("invalid command line")

// renderTail is how long an offline render continues after the note is released.
const renderTail = time.Second

type cliFlags struct {
	configPath     string
	listDevices    bool
	render         string
	renderNote     int
	renderVelocity int
	renderSeconds  float64
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		log.Fatalf("❌ %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags, cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if flags.listDevices {
		listDevices(stdout)
		return nil
	}

	log.Printf("🚀 Starting Loqa Synth")
	h := newHost(cfg)
	if cfg.Synth.Voice != "" {
		if err := h.LoadVoiceFile(cfg.Synth.Voice); err != nil {
			img := h.Voice()
			log.Printf("⚠️  %v; keeping voice %q", err, img.Name())
		}
	}

	if flags.render != "" {
		defer h.Close()
		return renderOffline(h, cfg, flags)
	}
	return runLive(h, cfg, stdout)
}

// parseFlags builds the configuration: defaults, then the -config file, then every
// flag given explicitly.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, config.Config, error) {
	def := config.Default()
	fs := flag.NewFlagSet("loqa-synth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	flags := &cliFlags{}
	var (
		voicePath    = fs.String("voice", "", "DX7 voice file (155 raw bytes or a single-voice SysEx dump)")
		midiPort     = fs.Int("midi-port", def.MIDI.Port, "MIDI input port index (-1 picks the first non-loopback port)")
		curve        = fs.String("velocity-curve", def.Synth.VelocityCurve, "velocity curve: linear, soft or hard")
		backend      = fs.String("audio", def.Audio.Backend, "audio backend: portaudio or oto")
		sampleRate   = fs.Float64("sample-rate", def.Audio.SampleRate, "output sample rate in Hz")
		bufferFrames = fs.Int("buffer-frames", def.Audio.BufferFrames, "frames per audio callback")
		natsURL      = fs.String("nats", "", "NATS server URL for remote control (e.g. "+def.NATS.URL+"); empty disables it")
		synthID      = fs.String("id", def.NATS.ID, "synth identifier used in NATS subjects")
		hpPrefilter  = fs.Bool("hp-prefilter", def.Synth.HighPassPrefilter, "enable the 20 Hz high-pass prefilter")
	)
	fs.StringVar(&flags.configPath, "config", "", "TOML configuration file")
	fs.BoolVar(&flags.listDevices, "list-devices", false, "list audio outputs and MIDI inputs, then exit")
	fs.StringVar(&flags.render, "render", "", "render one note offline to this WAV file instead of playing live")
	fs.IntVar(&flags.renderNote, "render-note", 60, "note number for -render")
	fs.IntVar(&flags.renderVelocity, "render-velocity", 100, "velocity for -render")
	fs.Float64Var(&flags.renderSeconds, "render-seconds", 2, "seconds the -render note is held")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, def, err
		}
		return nil, def, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return nil, def, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	cfg := def
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, def, err
		}
		cfg = *loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "voice":
			cfg.Synth.Voice = *voicePath
		case "midi-port":
			cfg.MIDI.Port = *midiPort
		case "velocity-curve":
			cfg.Synth.VelocityCurve = *curve
		case "audio":
			cfg.Audio.Backend = *backend
		case "sample-rate":
			cfg.Audio.SampleRate = *sampleRate
		case "buffer-frames":
			cfg.Audio.BufferFrames = *bufferFrames
		case "nats":
			cfg.NATS.URL = *natsURL
			cfg.NATS.Enabled = *natsURL != ""
		case "id":
			cfg.NATS.ID = *synthID
		case "hp-prefilter":
			cfg.Synth.HighPassPrefilter = *hpPrefilter
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, def, err
	}
	if flags.render != "" {
		if flags.renderNote < 0 || flags.renderNote > 127 {
			return nil, def, fmt.Errorf("%w: render note %d out of range 0..127", config.ErrInvalid, flags.renderNote)
		}
		if flags.renderVelocity < 1 || flags.renderVelocity > 127 {
			return nil, def, fmt.Errorf("%w: render velocity %d out of range 1..127", config.ErrInvalid, flags.renderVelocity)
		}
		if flags.renderSeconds <= 0 {
			return nil, def, fmt.Errorf("%w: render seconds must be positive", config.ErrInvalid)
		}
	}
	return flags, cfg, nil
}

// resolveCurve falls back to linear for names it does not know.
func resolveCurve(name string) velocity.Curve {
	c, ok := velocity.ParseCurve(name)
	if !ok {
		log.Printf("⚠️  Unknown velocity curve %q, using %s", name, velocity.LinearFull)
	}
	return c
}

func newHost(cfg config.Config) *host.Host {
	filter := dsp.FilterConfig{HighPassPrefilter: cfg.Synth.HighPassPrefilter}
	engine := fm.New(fm.Options{
		SampleRate: cfg.Audio.SampleRate,
		MaxNotes:   cfg.Synth.MaxNotes,
		Filter:     filter,
	})

	opts := host.DefaultOptions()
	opts.Gain = cfg.Synth.Gain
	opts.Curve = resolveCurve(cfg.Synth.VelocityCurve)
	opts.Filter = filter
	opts.QueueSize = cfg.Synth.QueueSize
	return host.New(engine, opts)
}

func newBackend(name string) (audio.AudioBackend, error) {
	switch name {
	case config.BackendPortAudio:
		return audio.NewPortAudioBackend(), nil
	case config.BackendOto:
		return audio.NewOtoBackend(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}

func listDevices(w io.Writer) {
	pa := audio.NewPortAudioBackend()
	if err := pa.Initialize(); err != nil {
		log.Printf("⚠️  %v", err)
	} else {
		devices, err := pa.OutputDevices()
		if err != nil {
			log.Printf("⚠️  %v", err)
		}
		fmt.Fprintln(w, "Audio outputs:")
		for _, d := range devices {
			fmt.Fprintf(w, "  %s\n", d)
		}
		_ = pa.Terminate()
	}

	fmt.Fprintln(w, "MIDI inputs:")
	for i, name := range midi.PortNames() {
		fmt.Fprintf(w, "  [%d] %s\n", i, name)
	}
}

func renderOffline(h *host.Host, cfg config.Config, flags *cliFlags) error {
	rate := int(cfg.Audio.SampleRate)
	samples := wavout.RenderNote(h, wavout.Take{
		Note:        uint8(flags.renderNote),
		Velocity:    uint8(flags.renderVelocity),
		Hold:        time.Duration(flags.renderSeconds * float64(time.Second)),
		Tail:        renderTail,
		SampleRate:  rate,
		BlockFrames: cfg.Audio.BufferFrames,
	})

	if err := wavout.Write(flags.render, samples, rate); err != nil {
		return err
	}
	log.Printf("💾 Rendered %d samples of note %d to %s", len(samples), flags.renderNote, flags.render)
	return nil
}

// services are the live collaborators, shut down in reverse order of data flow.
type services struct {
	host    *host.Host
	output  *audio.Output
	input   *midi.Input
	control *synthnats.ControlSubscriber
}

func (s *services) shutdown() {
	if s.input != nil {
		if err := s.input.Close(); err != nil {
			log.Printf("⚠️  %v", err)
		}
	}
	if s.control != nil {
		s.control.Close()
	}
	if s.output != nil {
		s.output.Shutdown()
	}
	if err := s.host.Close(); err != nil {
		log.Printf("⚠️  %v", err)
	}
}

func runLive(h *host.Host, cfg config.Config, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := &services{host: h}
	if err := startServices(svc, cfg); err != nil {
		svc.shutdown()
		return err
	}

	go h.Monitor(ctx, cfg.StatsInterval)
	printBanner(stdout, cfg, svc)

	<-ctx.Done()
	log.Println("🛑 Shutting down synth...")
	svc.shutdown()
	log.Println("👋 Synth stopped")
	return nil
}

func startServices(svc *services, cfg config.Config) error {
	backend, err := newBackend(cfg.Audio.Backend)
	if err != nil {
		return err
	}

	h := svc.host
	svc.output, err = audio.NewOutput(backend, audio.StreamParams{
		SampleRate: cfg.Audio.SampleRate,
		BufferSize: cfg.Audio.BufferFrames,
		Callback:   func(out []int16) { h.Render(out, len(out)) },
		OnFault:    h.RecordStreamFault,
	})
	if err != nil {
		return err
	}
	if err := svc.output.Start(); err != nil {
		return err
	}

	svc.input, err = midi.OpenInput(cfg.MIDI.Port, midi.NewDispatcher(h, h))
	switch {
	case errors.Is(err, midi.ErrNoPorts):
		log.Printf("⚠️  %v; playing without MIDI input", err)
	case err != nil:
		return err
	}

	if cfg.NATS.Enabled {
		control, err := synthnats.NewControlSubscriber(cfg.NATS.URL, cfg.NATS.ID, h)
		if err != nil {
			return fmt.Errorf("failed to initialize remote control: %w", err)
		}
		svc.control = control
		if err := control.Start(); err != nil {
			return err
		}
	}
	return nil
}

func printBanner(w io.Writer, cfg config.Config, svc *services) {
	img := svc.host.Voice()
	midiIn := "none"
	if svc.input != nil {
		midiIn = svc.input.Name()
	}
	remote := "disabled"
	if svc.control != nil {
		remote = fmt.Sprintf("%s (synth.%s.*)", cfg.NATS.URL, cfg.NATS.ID)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "🎹 Loqa Synth - DX7 Voice Host Active!")
	fmt.Fprintln(w, "======================================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "🎛️  Voice: %s\n", img.Name())
	fmt.Fprintf(w, "🔊 Audio: %s, %.0f Hz, %d frames\n", cfg.Audio.Backend, cfg.Audio.SampleRate, cfg.Audio.BufferFrames)
	fmt.Fprintf(w, "🎼 MIDI: %s\n", midiIn)
	fmt.Fprintf(w, "🎚️  Velocity curve: %s\n", svc.host.VelocityCurve())
	fmt.Fprintf(w, "📡 Remote control: %s\n", remote)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⏹️  Press Ctrl+C to stop")
	fmt.Fprintln(w)
}
