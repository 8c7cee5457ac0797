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

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

const otoChunkFrames = 1024

// OtoBackend implements AudioBackend on top of oto's pull model. oto allows one
// context per process, so the first stream fixes the sample rate.
type OtoBackend struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
}

// NewOtoBackend creates a new oto backend
func NewOtoBackend() *OtoBackend {
	return &OtoBackend{}
}

// Initialize resumes a suspended context. The context itself is created with the
// first stream.
func (o *OtoBackend) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil
	}
	return o.ctx.Resume()
}

// Terminate suspends the device.
func (o *OtoBackend) Terminate() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil
	}
	return o.ctx.Suspend()
}

// CreateOutputStream returns a mono int16 player that pulls blocks from
// params.Callback.
func (o *OtoBackend) CreateOutputStream(params StreamParams) (StreamInterface, error) {
	if params.Callback == nil {
		return nil, fmt.Errorf("output stream needs a render callback")
	}
	rate := int(params.SampleRate)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		opts := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		if params.BufferSize > 0 && rate > 0 {
			opts.BufferSize = time.Duration(params.BufferSize) * time.Second / time.Duration(rate)
		}

		ctx, ready, err := oto.NewContext(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open oto context: %w", err)
		}
		<-ready
		o.ctx = ctx
		o.sampleRate = rate
	} else if rate != o.sampleRate {
		return nil, fmt.Errorf("oto context runs at %d Hz, cannot open a %d Hz stream", o.sampleRate, rate)
	}

	s := &OtoStream{reader: newPullReader(params.Callback, otoChunkFrames)}
	s.player = o.ctx.NewPlayer(s.reader)
	return s, nil
}

// pullReader turns a RenderFunc into the little-endian byte stream oto reads.
type pullReader struct {
	render RenderFunc
	gate   Gate
	buf    []int16
}

func newPullReader(render RenderFunc, chunk int) *pullReader {
	return &pullReader{render: render, buf: make([]int16, chunk)}
}

func (r *pullReader) Read(p []byte) (int, error) {
	frames := len(p) / 2
	written := 0
	for frames > 0 {
		n := min(frames, len(r.buf))
		block := r.buf[:n]
		r.gate.Run(block, r.render)
		for i, s := range block {
			binary.LittleEndian.PutUint16(p[2*(written+i):], uint16(s))
		}
		written += n
		frames -= n
	}
	return 2 * written, nil
}

// OtoStream implements StreamInterface with an oto player
type OtoStream struct {
	player *oto.Player
	reader *pullReader
	active atomic.Bool
}

// Start starts playback
func (s *OtoStream) Start() error {
	s.reader.gate.Open()
	s.player.Play()
	s.active.Store(true)
	return nil
}

// Stop fences the reader and pauses playback
func (s *OtoStream) Stop() error {
	s.reader.gate.Close()
	if s.active.Swap(false) {
		s.player.Pause()
	}
	return nil
}

// Close stops playback and releases the player
func (s *OtoStream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.player.Close()
}

// IsActive returns true while the player is running
func (s *OtoStream) IsActive() bool {
	return s.active.Load()
}
