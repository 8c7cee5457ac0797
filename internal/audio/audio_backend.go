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

// RenderFunc fills out with one block of mono 16-bit samples. It runs on the
// transport's real-time thread and must not block or allocate.
type RenderFunc func(out []int16)

// FaultFunc is told about an output underrun or overrun. It runs on the real-time
// thread.
type FaultFunc func()

// AudioBackend provides an abstraction layer for audio output.
// This enables dependency injection and makes testing hardware-independent
type AudioBackend interface {
	// Initialize the audio subsystem
	Initialize() error

	// Terminate the audio subsystem
	Terminate() error

	// CreateOutputStream opens a mono int16 output stream driven by params.Callback
	CreateOutputStream(params StreamParams) (StreamInterface, error)
}

// StreamInterface abstracts audio stream operations
type StreamInterface interface {
	// Start the audio stream
	Start() error

	// Stop the audio stream. No callback runs after Stop returns.
	Stop() error

	// Close the audio stream and release resources
	Close() error

	// IsActive returns true if the stream is currently running
	IsActive() bool
}

// StreamParams holds parameters for stream creation
type StreamParams struct {
	SampleRate float64
	// BufferSize is the frames per callback; 0 lets the device choose.
	BufferSize int
	Callback   RenderFunc
	OnFault    FaultFunc
}
