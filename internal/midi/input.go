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

package midi

import (
	"fmt"
	"log"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the RtMidi driver

	"github.com/loqalabs/loqa-synth-go/internal/audio"
)

// sysExBufferSize holds a single-voice dump with room to spare.
const sysExBufferSize = 4096

// PortNames lists the MIDI input ports in driver order.
func PortNames() []string {
	ports := gomidi.GetInPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// Input is an open MIDI input port feeding a Dispatcher.
type Input struct {
	port       drivers.In
	dispatcher *Dispatcher
	gate       audio.Gate

	mu   sync.Mutex
	stop func()
}

// OpenInput selects a port with SelectPort and starts listening. Messages are
// dispatched on the driver's thread.
func OpenInput(override int, d *Dispatcher) (*Input, error) {
	ports := gomidi.GetInPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
		log.Printf("🎹 MIDI input [%d] %s", i, names[i])
	}

	idx, err := SelectPort(names, override)
	if err != nil {
		return nil, err
	}

	in := &Input{port: ports[idx], dispatcher: d}
	in.gate.Open()

	stop, err := gomidi.ListenTo(in.port, in.receive,
		gomidi.UseSysEx(),
		gomidi.SysExBufferSize(sysExBufferSize),
		gomidi.HandleError(func(err error) {
			log.Printf("⚠️ MIDI input error on %s: %v", names[idx], err)
		}),
	)
	if err != nil {
		in.gate.Close()
		return nil, fmt.Errorf("failed to open MIDI port %d (%s): %w", idx, names[idx], err)
	}
	in.stop = stop

	log.Printf("✅ Opened MIDI input port %d: %s", idx, names[idx])
	return in, nil
}

func (in *Input) receive(msg gomidi.Message, _ int32) {
	if !in.gate.Enter() {
		return
	}
	defer in.gate.Exit()
	in.dispatcher.Dispatch(msg)
}

// Name returns the port name.
func (in *Input) Name() string {
	return in.port.String()
}

// Close stops listening. Once it returns no message is dispatched.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.gate.Close()
	if in.stop == nil {
		return nil
	}
	in.stop()
	in.stop = nil

	if err := in.port.Close(); err != nil {
		return fmt.Errorf("failed to close MIDI port: %w", err)
	}
	drivers.Close()
	return nil
}
