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

package host

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-synth-go/internal/dsp"
	"github.com/loqalabs/loqa-synth-go/internal/velocity"
	"github.com/loqalabs/loqa-synth-go/internal/voice"
)

// Engine is the synthesis engine the host drives. After New returns, the host calls
// its mutating methods only from the render thread.
type Engine interface {
	// Activate prepares the engine for rendering.
	Activate()

	// LoadVoiceParameters installs a voice.Size parameter block.
	LoadVoiceParameters(params []byte)

	// KeyDown starts a note with an already-shaped velocity.
	KeyDown(note, velocity uint8)

	// KeyUp releases a note.
	KeyUp(note uint8)

	// SetGain sets the output gain.
	SetGain(gain float32)

	// Render fills out with len(out) mono samples.
	Render(out []int16)
}

// FilterConfigurable is implemented by engines whose output filter can be switched.
type FilterConfigurable interface {
	SetFilterConfig(cfg dsp.FilterConfig)
}

// Options configures a Host.
type Options struct {
	InitVoice *voice.Image
	Gain      float32
	Curve     velocity.Curve
	Filter    dsp.FilterConfig
	QueueSize int
}

// DefaultOptions returns the settings the host starts with when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Gain:      0.5,
		Curve:     velocity.LinearFull,
		QueueSize: 256,
	}
}

// Host owns the engine and is the only path into it.
//
// Three contexts call in: the audio transport calls Render on its real-time thread,
// the MIDI transport calls NoteOn/NoteOff, and setup or remote-control code calls
// LoadVoice, SetVelocityCurve, SetGain and SetFilterConfig. Note events travel through
// a bounded ring drained at the start of each block. Voice, gain and filter changes
// are published as pointers and picked up at the next block boundary, so a block
// always renders entirely with the old or entirely with the new state.
type Host struct {
	engine     Engine
	filterable FilterConfigurable

	events     *eventQueue
	producerMu sync.Mutex

	curve   atomic.Uint32
	current atomic.Pointer[voice.Image]

	pendingVoice  atomic.Pointer[voice.Image]
	pendingGain   atomic.Pointer[float32]
	pendingFilter atomic.Pointer[dsp.FilterConfig]

	inflight atomic.Int32
	closed   atomic.Bool
	closeMu  sync.Mutex

	stats counters
}

// New activates engine, loads the init voice and fixes the starting gain.
func New(engine Engine, opts Options) *Host {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	initial := opts.InitVoice
	if initial == nil {
		initial = voice.InitVoice()
	}

	h := &Host{
		engine: engine,
		events: newEventQueue(opts.QueueSize),
	}
	if fc, ok := engine.(FilterConfigurable); ok {
		h.filterable = fc
		fc.SetFilterConfig(opts.Filter)
	}

	engine.Activate()
	engine.LoadVoiceParameters(initial[:])
	engine.SetGain(clampGain(opts.Gain))

	h.current.Store(initial)
	h.curve.Store(uint32(opts.Curve))
	return h
}

// LoadVoice parses raw as a voice image and hands it to the render thread. On a parse
// failure the current voice stays in place and the error is returned.
func (h *Host) LoadVoice(raw []byte) error {
	img, err := voice.Extract(raw)
	if err != nil {
		return fmt.Errorf("voice load rejected: %w", err)
	}
	h.installVoice(img)
	return nil
}

// LoadVoiceFile reads a .syx or raw voice file and loads it.
func (h *Host) LoadVoiceFile(path string) error {
	img, err := voice.LoadFile(path)
	if err != nil {
		return err
	}
	h.installVoice(img)
	return nil
}

func (h *Host) installVoice(img *voice.Image) {
	h.current.Store(img)
	h.pendingVoice.Store(img)
	h.stats.voiceLoads.Add(1)
	log.Printf("🎹 Voice loaded: %q", img.Name())
}

// Voice returns a copy of the most recently loaded voice image.
func (h *Host) Voice() voice.Image {
	return *h.current.Load()
}

// NoteOn queues a note start. A zero velocity is a note off.
func (h *Host) NoteOn(note, rawVelocity uint8) {
	if rawVelocity == 0 {
		h.NoteOff(note)
		return
	}
	v := velocity.Map(rawVelocity, h.VelocityCurve())
	h.enqueue(noteEvent{kind: eventNoteOn, note: note & 0x7F, velocity: v})
}

// NoteOff queues a note release.
func (h *Host) NoteOff(note uint8) {
	h.enqueue(noteEvent{kind: eventNoteOff, note: note & 0x7F})
}

func (h *Host) enqueue(ev noteEvent) {
	h.producerMu.Lock()
	ok := h.events.push(ev)
	h.producerMu.Unlock()
	if !ok {
		h.stats.droppedEvents.Add(1)
	}
}

// SetVelocityCurve selects the curve applied by subsequent NoteOn calls.
func (h *Host) SetVelocityCurve(c velocity.Curve) {
	h.curve.Store(uint32(c))
}

// VelocityCurve returns the configured curve.
func (h *Host) VelocityCurve() velocity.Curve {
	return velocity.Curve(h.curve.Load())
}

// SetGain hands a new output gain, clamped to [0, 1], to the render thread.
func (h *Host) SetGain(gain float32) {
	g := clampGain(gain)
	h.pendingGain.Store(&g)
}

// SetFilterConfig hands a filter configuration to the engine at the next block.
// Engines without a switchable filter ignore it.
func (h *Host) SetFilterConfig(cfg dsp.FilterConfig) {
	h.pendingFilter.Store(&cfg)
}

// Render fills the first frames samples of dst. It never blocks and never allocates;
// empty buffers and zero frame counts are a no-op. frames beyond len(dst) are
// clamped. Render must not be called concurrently with itself.
func (h *Host) Render(dst []int16, frames int) {
	if len(dst) == 0 || frames <= 0 {
		return
	}
	if frames > len(dst) {
		frames = len(dst)
	}
	out := dst[:frames]

	h.inflight.Add(1)
	defer h.inflight.Add(-1)

	if h.closed.Load() {
		clear(out)
		return
	}

	h.applyPending()
	h.drainEvents()
	h.engine.Render(out)

	h.stats.renders.Add(1)
	h.stats.frames.Add(uint64(frames))
}

// applyPending installs configuration published since the previous block.
func (h *Host) applyPending() {
	if img := h.pendingVoice.Swap(nil); img != nil {
		h.engine.LoadVoiceParameters(img[:])
		h.stats.voiceSwaps.Add(1)
	}
	if g := h.pendingGain.Swap(nil); g != nil {
		h.engine.SetGain(*g)
	}
	if cfg := h.pendingFilter.Swap(nil); cfg != nil && h.filterable != nil {
		h.filterable.SetFilterConfig(*cfg)
	}
}

func (h *Host) drainEvents() {
	for {
		ev, ok := h.events.pop()
		if !ok {
			return
		}
		switch ev.kind {
		case eventNoteOn:
			h.engine.KeyDown(ev.note, ev.velocity)
		case eventNoteOff:
			h.engine.KeyUp(ev.note)
		}
	}
}

// RecordStreamFault counts an underrun or overrun reported by the audio transport.
// It is safe to call from the real-time callback.
func (h *Host) RecordStreamFault() {
	h.stats.streamFaults.Add(1)
}

// Close stops accepting renders, waits for an in-flight render to finish and then
// releases the engine. Calls after the first are no-ops.
func (h *Host) Close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()

	if h.closed.Swap(true) {
		return nil
	}
	for h.inflight.Load() > 0 {
		time.Sleep(50 * time.Microsecond)
	}

	if c, ok := h.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to release engine: %w", err)
		}
	}
	return nil
}

func clampGain(g float32) float32 {
	if g != g || g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
