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
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend implements AudioBackend using the real PortAudio library
type PortAudioBackend struct {
	initialized bool
}

// NewPortAudioBackend creates a new PortAudio backend
func NewPortAudioBackend() *PortAudioBackend {
	return &PortAudioBackend{}
}

// Initialize initializes the PortAudio subsystem
func (p *PortAudioBackend) Initialize() error {
	if p.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	p.initialized = true
	return nil
}

// Terminate terminates the PortAudio subsystem
func (p *PortAudioBackend) Terminate() error {
	if !p.initialized {
		return nil
	}

	err := portaudio.Terminate()
	p.initialized = false
	return err
}

// OutputDevices describes every device that can play audio.
func (p *PortAudioBackend) OutputDevices() ([]string, error) {
	if !p.initialized {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}

	var names []string
	for _, d := range devices {
		if d.MaxOutputChannels < 1 {
			continue
		}
		api := ""
		if d.HostApi != nil {
			api = d.HostApi.Name
		}
		names = append(names, fmt.Sprintf("%d: %s [%s] %.0f Hz", d.Index, d.Name, api, d.DefaultSampleRate))
	}
	return names, nil
}

// CreateOutputStream opens the default output device as a mono int16 stream
func (p *PortAudioBackend) CreateOutputStream(params StreamParams) (StreamInterface, error) {
	if !p.initialized {
		return nil, fmt.Errorf("PortAudio not initialized")
	}
	if params.Callback == nil {
		return nil, fmt.Errorf("output stream needs a render callback")
	}

	s := &PortAudioStream{
		render:  params.Callback,
		onFault: params.OnFault,
	}

	bufferSize := params.BufferSize
	if bufferSize <= 0 {
		bufferSize = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenDefaultStream(
		0, // input channels (none for output stream)
		1, // mono output
		params.SampleRate,
		bufferSize,
		s.callback,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	s.stream = stream
	return s, nil
}

// PortAudioStream implements StreamInterface using PortAudio's callback API
type PortAudioStream struct {
	stream  *portaudio.Stream
	render  RenderFunc
	onFault FaultFunc
	gate    Gate
	active  atomic.Bool
}

func (p *PortAudioStream) callback(out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&(portaudio.OutputUnderflow|portaudio.OutputOverflow) != 0 && p.onFault != nil {
		p.onFault()
	}
	p.gate.Run(out, p.render)
}

// Start starts the audio stream
func (p *PortAudioStream) Start() error {
	if p.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	p.gate.Open()
	if err := p.stream.Start(); err != nil {
		p.gate.Close()
		return err
	}
	p.active.Store(true)
	return nil
}

// Stop fences the callback and stops the audio stream
func (p *PortAudioStream) Stop() error {
	if p.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	p.gate.Close()
	if !p.active.Swap(false) {
		return nil
	}
	return p.stream.Stop()
}

// Close closes the audio stream
func (p *PortAudioStream) Close() error {
	if p.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	if err := p.Stop(); err != nil {
		return err
	}
	return p.stream.Close()
}

// IsActive returns true if the stream has been started and not stopped
func (p *PortAudioStream) IsActive() bool {
	return p.active.Load()
}
