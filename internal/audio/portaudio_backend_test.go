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
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPortAudioBackend tests the PortAudio backend implementation
func TestPortAudioBackend(t *testing.T) {
	// Skip if in CI environment where PortAudio may not be available
	if isCIEnvironment() {
		t.Skip("Skipping PortAudio tests in CI environment")
	}

	t.Run("backend_creation", func(t *testing.T) {
		backend := NewPortAudioBackend()
		require.NotNil(t, backend, "should create PortAudio backend")
		assert.False(t, backend.initialized, "should not be initialized by default")
	})

	t.Run("initialization", func(t *testing.T) {
		backend := NewPortAudioBackend()

		err := backend.Initialize()
		if err != nil {
			// PortAudio may not be available in test environment
			t.Skipf("PortAudio initialization failed (may be expected): %v", err)
		}

		assert.True(t, backend.initialized, "should be marked as initialized")

		// Second initialization should be safe
		assert.NoError(t, backend.Initialize(), "double initialization should be safe")

		_ = backend.Terminate() // Ignore errors during test cleanup
	})

	t.Run("termination", func(t *testing.T) {
		backend := NewPortAudioBackend()

		err := backend.Initialize()
		if err != nil {
			t.Skipf("PortAudio initialization failed (may be expected): %v", err)
		}

		err = backend.Terminate()
		assert.NoError(t, err, "should terminate successfully")
		assert.False(t, backend.initialized, "should be marked as not initialized")
	})

	t.Run("terminate_without_init", func(t *testing.T) {
		backend := NewPortAudioBackend()
		assert.NoError(t, backend.Terminate(), "should handle terminate without init")
	})
}

// TestPortAudioOutputStream tests opening and running a real output stream
func TestPortAudioOutputStream(t *testing.T) {
	if isCIEnvironment() {
		t.Skip("Skipping PortAudio tests in CI environment")
	}

	backend := NewPortAudioBackend()
	if err := backend.Initialize(); err != nil {
		t.Skipf("PortAudio initialization failed (may be expected): %v", err)
	}
	defer func() { _ = backend.Terminate() }() // Ignore errors during test cleanup

	t.Run("list_devices", func(t *testing.T) {
		devices, err := backend.OutputDevices()
		require.NoError(t, err)
		for _, d := range devices {
			assert.NotEmpty(t, d)
		}
	})

	t.Run("start_stop", func(t *testing.T) {
		stream, err := backend.CreateOutputStream(StreamParams{
			SampleRate: 48000,
			BufferSize: 256,
			Callback:   constantRender(0),
		})
		if err != nil {
			t.Skipf("CreateOutputStream failed (may be expected): %v", err)
		}
		defer func() { _ = stream.Close() }() // Ignore errors during test cleanup

		if err := stream.Start(); err != nil {
			t.Skipf("Stream start failed (may be expected): %v", err)
		}
		assert.True(t, stream.IsActive(), "stream should report as active")

		require.NoError(t, stream.Stop())
		assert.False(t, stream.IsActive(), "stream should report as stopped")
	})
}

func TestPortAudioStreamErrorConditions(t *testing.T) {
	t.Run("without_initialization", func(t *testing.T) {
		backend := NewPortAudioBackend()

		stream, err := backend.CreateOutputStream(StreamParams{SampleRate: 48000, Callback: constantRender(0)})
		require.Error(t, err, "should fail without initialization")
		assert.Nil(t, stream, "stream should be nil on error")
		assert.Contains(t, err.Error(), "not initialized", "error should mention initialization")

		_, err = backend.OutputDevices()
		assert.Error(t, err)
	})

	t.Run("operations_on_nil_stream", func(t *testing.T) {
		stream := &PortAudioStream{}

		err := stream.Start()
		require.Error(t, err, "should fail with nil stream")
		assert.Contains(t, err.Error(), "stream is nil")

		assert.Error(t, stream.Stop())
		assert.Error(t, stream.Close())
		assert.False(t, stream.IsActive())
	})
}

func TestPortAudioStream_CallbackCountsFaults(t *testing.T) {
	var faults int
	stream := &PortAudioStream{
		render:  constantRender(7),
		onFault: func() { faults++ },
	}
	stream.gate.Open()

	out := make([]int16, 4)
	stream.callback(out, portaudio.StreamCallbackTimeInfo{}, portaudio.OutputUnderflow)
	assert.Equal(t, 1, faults)
	assert.Equal(t, []int16{7, 7, 7, 7}, out)

	stream.callback(out, portaudio.StreamCallbackTimeInfo{}, 0)
	assert.Equal(t, 1, faults, "clean callbacks are not faults")

	stream.gate.Close()
	stream.callback(out, portaudio.StreamCallbackTimeInfo{}, 0)
	assert.Equal(t, []int16{0, 0, 0, 0}, out, "a fenced callback writes silence")
}
