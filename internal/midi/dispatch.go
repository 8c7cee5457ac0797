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

// Package midi binds a MIDI input to the synth host: channel note messages become
// note events and SysEx voice dumps become voice loads.
package midi

import (
	"log"
	"sync/atomic"
)

const (
	statusNoteOff = 0x80
	statusNoteOn  = 0x90
	statusSysEx   = 0xF0
)

// NoteSink receives note events.
type NoteSink interface {
	NoteOn(note, velocity uint8)
	NoteOff(note uint8)
}

// VoiceLoader receives SysEx voice dumps.
type VoiceLoader interface {
	LoadVoice(raw []byte) error
}

// Dispatcher routes raw MIDI messages. It listens on every channel.
type Dispatcher struct {
	notes  NoteSink
	voices VoiceLoader

	ignored atomic.Uint64
}

// NewDispatcher returns a dispatcher feeding notes. voices may be nil, in which case
// SysEx is ignored.
func NewDispatcher(notes NoteSink, voices VoiceLoader) *Dispatcher {
	return &Dispatcher{notes: notes, voices: voices}
}

// Dispatch handles one complete MIDI message. Note-on with a nonzero velocity calls
// NoteOn; note-on with velocity 0 and note-off call NoteOff. A SysEx message is
// offered to the voice loader. Everything else, including truncated note messages,
// is ignored.
func (d *Dispatcher) Dispatch(msg []byte) {
	if len(msg) == 0 {
		return
	}

	status := msg[0]
	switch {
	case status&0xF0 == statusNoteOn && len(msg) >= 3:
		note, vel := msg[1]&0x7F, msg[2]&0x7F
		if vel == 0 {
			d.notes.NoteOff(note)
		} else {
			d.notes.NoteOn(note, vel)
		}
	case status&0xF0 == statusNoteOff && len(msg) >= 3:
		d.notes.NoteOff(msg[1] & 0x7F)
	case status == statusSysEx && d.voices != nil:
		if err := d.voices.LoadVoice(msg); err != nil {
			log.Printf("⚠️ SysEx voice dump rejected: %v", err)
		}
	default:
		d.ignored.Add(1)
	}
}

// Ignored returns how many messages were not acted on.
func (d *Dispatcher) Ignored() uint64 {
	return d.ignored.Load()
}
