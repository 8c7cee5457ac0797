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
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-synth-go/internal/config"
	"github.com/loqalabs/loqa-synth-go/internal/velocity"
	"github.com/loqalabs/loqa-synth-go/internal/voice"
)

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags, cfg, err := parseFlags(nil, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
		assert.Empty(t, flags.render)
		assert.False(t, flags.listDevices)
	})

	t.Run("explicit_flags_override", func(t *testing.T) {
		_, cfg, err := parseFlags([]string{
			"-voice", "brass.syx",
			"-midi-port", "2",
			"-velocity-curve", "soft",
			"-audio", "oto",
			"-sample-rate", "44100",
			"-buffer-frames", "128",
			"-nats", "nats://synth-host:4222",
			"-id", "stage-left",
			"-hp-prefilter",
		}, io.Discard)
		require.NoError(t, err)

		assert.Equal(t, "brass.syx", cfg.Synth.Voice)
		assert.Equal(t, 2, cfg.MIDI.Port)
		assert.Equal(t, "soft", cfg.Synth.VelocityCurve)
		assert.Equal(t, config.BackendOto, cfg.Audio.Backend)
		assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
		assert.Equal(t, 128, cfg.Audio.BufferFrames)
		assert.True(t, cfg.NATS.Enabled)
		assert.Equal(t, "nats://synth-host:4222", cfg.NATS.URL)
		assert.Equal(t, "stage-left", cfg.NATS.ID)
		assert.True(t, cfg.Synth.HighPassPrefilter)
	})

	t.Run("flags_win_over_config_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synth.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[audio]
sample-rate = 44100
buffer-frames = 512

[synth]
gain = 0.25
velocity-curve = "hard"
`), 0o600))

		_, cfg, err := parseFlags([]string{"-config", path, "-buffer-frames", "64"}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
		assert.Equal(t, 64, cfg.Audio.BufferFrames)
		assert.Equal(t, float32(0.25), cfg.Synth.Gain)
		assert.Equal(t, "hard", cfg.Synth.VelocityCurve)
	})

	t.Run("empty_nats_url_disables_remote_control", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synth.toml")
		require.NoError(t, os.WriteFile(path, []byte("[nats]\nenabled = true\n"), 0o600))

		_, cfg, err := parseFlags([]string{"-config", path, "-nats", ""}, io.Discard)
		require.NoError(t, err)
		assert.False(t, cfg.NATS.Enabled)
	})

	t.Run("help", func(t *testing.T) {
		var stderr bytes.Buffer
		_, _, err := parseFlags([]string{"-h"}, &stderr)
		assert.ErrorIs(t, err, flag.ErrHelp)
		assert.Contains(t, stderr.String(), "-velocity-curve")
	})

	t.Run("unknown_flag", func(t *testing.T) {
		_, _, err := parseFlags([]string{"-bogus"}, io.Discard)
		assert.ErrorIs(t, err, errUsage)
	})

	t.Run("positional_argument", func(t *testing.T) {
		var stderr bytes.Buffer
		_, _, err := parseFlags([]string{"voice.syx"}, &stderr)
		assert.ErrorIs(t, err, errUsage)
		assert.Contains(t, stderr.String(), "voice.syx")
	})

	t.Run("invalid_values", func(t *testing.T) {
		cases := [][]string{
			{"-sample-rate", "0"},
			{"-buffer-frames", "-1"},
			{"-audio", "alsa"},
			{"-render", "x.wav", "-render-note", "128"},
			{"-render", "x.wav", "-render-velocity", "0"},
			{"-render", "x.wav", "-render-seconds", "0"},
		}
		for _, args := range cases {
			_, _, err := parseFlags(args, io.Discard)
			assert.ErrorIs(t, err, config.ErrInvalid, "args %v", args)
		}
	})

	t.Run("missing_config_file", func(t *testing.T) {
		_, _, err := parseFlags([]string{"-config", filepath.Join(t.TempDir(), "none.toml")}, io.Discard)
		assert.Error(t, err)
	})
}

func TestResolveCurve(t *testing.T) {
	assert.Equal(t, velocity.LinearFull, resolveCurve("linear"))
	assert.Equal(t, velocity.Soft, resolveCurve("SOFT"))
	assert.Equal(t, velocity.Hard, resolveCurve("hard"))
	assert.Equal(t, velocity.LinearFull, resolveCurve("exponential"))
}

func TestNewBackend(t *testing.T) {
	b, err := newBackend(config.BackendPortAudio)
	require.NoError(t, err)
	assert.NotNil(t, b)

	b, err = newBackend(config.BackendOto)
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = newBackend("jack")
	assert.Error(t, err)
}

func readWav(t *testing.T, path string) (rate int, data []int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return buf.Format.SampleRate, buf.Data
}

func peak(data []int) int {
	p := 0
	for _, s := range data {
		if s < 0 {
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}

func TestRun_RenderOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "c4.wav")
	err := run([]string{
		"-render", path,
		"-render-seconds", "0.25",
		"-sample-rate", "8000",
		"-buffer-frames", "100",
	}, io.Discard, io.Discard)
	require.NoError(t, err)

	rate, data := readWav(t, path)
	assert.Equal(t, 8000, rate)
	assert.Len(t, data, 2000+8000) // hold plus one second of tail
	assert.Greater(t, peak(data[:2000]), 1000)
}

func TestRun_RenderWithSilentVoiceFile(t *testing.T) {
	dir := t.TempDir()
	voicePath := filepath.Join(dir, "silent.bin")
	var silent voice.Image
	copy(silent[145:], "SILENCE   ")
	require.NoError(t, os.WriteFile(voicePath, silent[:], 0o600))

	out := filepath.Join(dir, "silent.wav")
	err := run([]string{
		"-voice", voicePath,
		"-render", out,
		"-render-seconds", "0.1",
		"-sample-rate", "8000",
	}, io.Discard, io.Discard)
	require.NoError(t, err)

	_, data := readWav(t, out)
	assert.Zero(t, peak(data))
}

func TestRun_MissingVoiceFileKeepsInitVoice(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "init.wav")
	err := run([]string{
		"-voice", filepath.Join(dir, "missing.syx"),
		"-render", out,
		"-render-seconds", "0.1",
		"-sample-rate", "8000",
	}, io.Discard, io.Discard)
	require.NoError(t, err)

	_, data := readWav(t, out)
	assert.Greater(t, peak(data), 1000)
}

func TestRun_Help(t *testing.T) {
	err := run([]string{"-h"}, io.Discard, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Default()
	h := newHost(cfg)
	defer h.Close()

	var out bytes.Buffer
	printBanner(&out, cfg, &services{host: h})

	s := out.String()
	assert.Contains(t, s, "INIT VOICE")
	assert.Contains(t, s, "portaudio, 48000 Hz, 256 frames")
	assert.Contains(t, s, "MIDI: none")
	assert.Contains(t, s, "Velocity curve: linear")
	assert.Contains(t, s, "Remote control: disabled")
}

func TestServicesShutdown_HostOnly(t *testing.T) {
	h := newHost(config.Default())
	svc := &services{host: h}
	svc.shutdown()

	buf := []int16{1, 2, 3}
	h.Render(buf, len(buf))
	assert.Equal(t, []int16{0, 0, 0}, buf)
}

func TestHelpFlag_Subprocess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping subprocess test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	cmd := exec.Command("go", "run", ".", "-h")
	done := make(chan struct{})
	var output []byte
	var err error
	go func() {
		output, err = cmd.CombinedOutput()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		_ = cmd.Process.Kill()
		t.Fatal("go run -h timed out")
	}

	if err != nil {
		t.Skipf("go run failed, native audio or MIDI libraries may be missing: %v\n%s", err, output)
	}
	assert.Contains(t, string(output), "-render")
	assert.Contains(t, string(output), "-midi-port")
}
