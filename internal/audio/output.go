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
	"log"
	"sync"
)

// Output owns a backend and the one output stream the synth plays through.
type Output struct {
	backend AudioBackend
	stream  StreamInterface
	params  StreamParams

	mu       sync.Mutex
	shutdown bool
}

// NewOutput initializes backend and opens a stream with params. On failure the
// backend is terminated again.
func NewOutput(backend AudioBackend, params StreamParams) (*Output, error) {
	if err := backend.Initialize(); err != nil {
		return nil, fmt.Errorf("no audio device available: %w", err)
	}

	stream, err := backend.CreateOutputStream(params)
	if err != nil {
		_ = backend.Terminate()
		return nil, fmt.Errorf("failed to create output stream: %w", err)
	}

	return &Output{backend: backend, stream: stream, params: params}, nil
}

// Start begins calling the render callback.
func (o *Output) Start() error {
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	log.Printf("🔊 Audio output started: %.0f Hz, %d frames per block", o.params.SampleRate, o.params.BufferSize)
	return nil
}

// IsActive reports whether the stream is running.
func (o *Output) IsActive() bool {
	return o.stream.IsActive()
}

// Shutdown stops the stream, then closes it and terminates the backend. After it
// returns the render callback is never called again. Further calls do nothing.
func (o *Output) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shutdown {
		return
	}
	o.shutdown = true

	if err := o.stream.Stop(); err != nil {
		log.Printf("⚠️ Failed to stop output stream: %v", err)
	}
	if err := o.stream.Close(); err != nil {
		log.Printf("⚠️ Failed to close output stream: %v", err)
	}
	if err := o.backend.Terminate(); err != nil {
		log.Printf("⚠️ Failed to terminate audio backend: %v", err)
	}
	log.Println("🔊 Audio output stopped")
}
