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

// Package wavout renders the synth offline and stores the result as a WAV file.
package wavout

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Renderer is the part of the host an offline render drives.
type Renderer interface {
	NoteOn(note, velocity uint8)
	NoteOff(note uint8)
	Render(dst []int16, frames int)
}

// Take describes one offline note.
type Take struct {
	Note       uint8
	Velocity   uint8
	Hold       time.Duration // time between note on and note off
	Tail       time.Duration // time rendered after note off
	SampleRate int
	// BlockFrames is the render block size, as a device callback would use.
	BlockFrames int
}

// RenderNote plays t on r block by block and returns the samples.
func RenderNote(r Renderer, t Take) []int16 {
	if t.BlockFrames <= 0 {
		t.BlockFrames = 256
	}
	hold := frames(t.Hold, t.SampleRate)
	tail := frames(t.Tail, t.SampleRate)
	out := make([]int16, hold+tail)

	r.NoteOn(t.Note, t.Velocity)
	renderBlocks(r, out[:hold], t.BlockFrames)
	r.NoteOff(t.Note)
	renderBlocks(r, out[hold:], t.BlockFrames)
	return out
}

func frames(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

func renderBlocks(r Renderer, out []int16, block int) {
	for len(out) > 0 {
		n := min(block, len(out))
		r.Render(out[:n], n)
		out = out[n:]
	}
}

// Write stores mono 16-bit samples as a WAV file at path, creating directories as
// needed.
func Write(path string, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := make([]float32, len(samples))
	for i, s := range samples {
		data[i] = float32(s) / 32768
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return nil
}
