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

// Package config holds the synth's startup settings: defaults, an optional TOML
// file and validation. Command-line flags are applied on top by cmd.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Audio backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete startup configuration.
type Config struct {
	Audio AudioConfig `toml:"audio"`
	MIDI  MIDIConfig  `toml:"midi"`
	Synth SynthConfig `toml:"synth"`
	NATS  NATSConfig  `toml:"nats"`

	// StatsInterval is how often runtime counters are checked and logged.
	StatsInterval time.Duration `toml:"stats-interval"`
}

// AudioConfig selects the output transport.
type AudioConfig struct {
	Backend      string  `toml:"backend"`
	SampleRate   float64 `toml:"sample-rate"`
	BufferFrames int     `toml:"buffer-frames"`
}

// MIDIConfig selects the input port; -1 picks one automatically.
type MIDIConfig struct {
	Port int `toml:"port"`
}

// SynthConfig configures the host and engine.
type SynthConfig struct {
	Voice             string  `toml:"voice"`
	VelocityCurve     string  `toml:"velocity-curve"`
	Gain              float32 `toml:"gain"`
	MaxNotes          int     `toml:"max-notes"`
	QueueSize         int     `toml:"queue-size"`
	HighPassPrefilter bool    `toml:"hp-prefilter"`
}

// NATSConfig configures the remote control surface.
type NATSConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	ID      string `toml:"id"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:      BackendPortAudio,
			SampleRate:   48000,
			BufferFrames: 256,
		},
		MIDI: MIDIConfig{Port: -1},
		Synth: SynthConfig{
			VelocityCurve: "linear",
			Gain:          0.5,
			MaxNotes:      16,
			QueueSize:     256,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
			ID:  "dx7-001",
		},
		StatsInterval: 5 * time.Second,
	}
}

// Load reads path over the defaults and validates the result. Keys the file sets
// that Config does not know are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %g must be positive", ErrInvalid, c.Audio.SampleRate)
	case c.Audio.BufferFrames <= 0:
		return fmt.Errorf("%w: buffer frames %d must be positive", ErrInvalid, c.Audio.BufferFrames)
	case c.Audio.Backend != BackendPortAudio && c.Audio.Backend != BackendOto:
		return fmt.Errorf("%w: unknown audio backend %q", ErrInvalid, c.Audio.Backend)
	case c.Synth.MaxNotes <= 0:
		return fmt.Errorf("%w: max notes %d must be positive", ErrInvalid, c.Synth.MaxNotes)
	case c.Synth.QueueSize <= 0:
		return fmt.Errorf("%w: queue size %d must be positive", ErrInvalid, c.Synth.QueueSize)
	case c.Synth.Gain < 0 || c.Synth.Gain > 1 || c.Synth.Gain != c.Synth.Gain:
		return fmt.Errorf("%w: gain %g outside [0, 1]", ErrInvalid, c.Synth.Gain)
	case c.NATS.Enabled && c.NATS.URL == "":
		return fmt.Errorf("%w: NATS enabled without a URL", ErrInvalid)
	case c.NATS.Enabled && c.NATS.ID == "":
		return fmt.Errorf("%w: NATS enabled without a synth id", ErrInvalid)
	case c.StatsInterval <= 0:
		return fmt.Errorf("%w: stats interval %s must be positive", ErrInvalid, c.StatsInterval)
	}
	return nil
}
