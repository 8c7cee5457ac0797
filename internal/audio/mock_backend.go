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
	"sync"
	"time"
)

// MockAudioBackend implements AudioBackend for testing without hardware dependencies
type MockAudioBackend struct {
	mu                 sync.Mutex
	initialized        bool
	streams            map[string]*MockStream
	streamCounter      int
	initError          error
	terminateError     error
	createStreamError  error
	simulateRealTiming bool
	playbackAudioData  [][]int16
}

// NewMockAudioBackend creates a new mock audio backend
func NewMockAudioBackend() *MockAudioBackend {
	return &MockAudioBackend{
		streams:            make(map[string]*MockStream),
		simulateRealTiming: true,
		playbackAudioData:  make([][]int16, 0),
	}
}

// SetInitError configures the backend to return an error on Initialize()
func (m *MockAudioBackend) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initError = err
}

// SetTerminateError configures the backend to return an error on Terminate()
func (m *MockAudioBackend) SetTerminateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminateError = err
}

// SetCreateStreamError configures the backend to return an error on stream creation
func (m *MockAudioBackend) SetCreateStreamError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createStreamError = err
}

// SetSimulateRealTiming controls whether started streams call back on a timer.
// Without it, tests drive callbacks with MockStream.Tick.
func (m *MockAudioBackend) SetSimulateRealTiming(simulate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulateRealTiming = simulate
}

// GetPlaybackAudioData returns every block the streams rendered
func (m *MockAudioBackend) GetPlaybackAudioData() [][]int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]int16, len(m.playbackAudioData))
	copy(result, m.playbackAudioData)
	return result
}

// Streams returns the open streams.
func (m *MockAudioBackend) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockStream, 0, len(m.streams))
	for _, s := range m.streams {
		result = append(result, s)
	}
	return result
}

// Initialize initializes the mock audio subsystem
func (m *MockAudioBackend) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initError != nil {
		return m.initError
	}

	m.initialized = true
	return nil
}

// Terminate stops and closes every stream, then marks the backend uninitialized
func (m *MockAudioBackend) Terminate() error {
	m.mu.Lock()
	if m.terminateError != nil {
		m.mu.Unlock()
		return m.terminateError
	}

	streams := make([]*MockStream, 0, len(m.streams))
	for _, stream := range m.streams {
		streams = append(streams, stream)
	}

	// Release the lock before calling Stop/Close to avoid deadlocks
	m.mu.Unlock()

	for _, stream := range streams {
		_ = stream.Stop()  // Ignore errors during cleanup
		_ = stream.Close() // Ignore errors during cleanup
	}

	m.mu.Lock()
	m.initialized = false
	m.mu.Unlock()
	return nil
}

// CreateOutputStream creates a mock output stream
func (m *MockAudioBackend) CreateOutputStream(params StreamParams) (StreamInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("mock audio backend not initialized")
	}

	if m.createStreamError != nil {
		return nil, m.createStreamError
	}

	if params.Callback == nil {
		return nil, fmt.Errorf("output stream needs a render callback")
	}

	bufferSize := params.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	streamID := fmt.Sprintf("output_%d", m.streamCounter)
	m.streamCounter++

	stream := &MockStream{
		id:                 streamID,
		backend:            m,
		sampleRate:         params.SampleRate,
		bufferSize:         bufferSize,
		render:             params.Callback,
		onFault:            params.OnFault,
		simulateRealTiming: m.simulateRealTiming,
		isOpen:             true,
		buffer:             make([]int16, bufferSize),
	}

	m.streams[streamID] = stream
	return stream, nil
}

// MockStream implements StreamInterface for testing
type MockStream struct {
	mu                 sync.Mutex
	id                 string
	backend            *MockAudioBackend
	sampleRate         float64
	bufferSize         int
	render             RenderFunc
	onFault            FaultFunc
	gate               Gate
	buffer             []int16
	isOpen             bool
	isActive           bool
	simulateRealTiming bool
	stopChannel        chan struct{}
	done               chan struct{}
	startError         error
	stopError          error
	closeError         error
}

// SetStartError configures the stream to return an error on Start()
func (m *MockStream) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startError = err
}

// SetStopError configures the stream to return an error on Stop()
func (m *MockStream) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopError = err
}

// SetCloseError configures the stream to return an error on Close()
func (m *MockStream) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// BufferSize returns the frames per callback.
func (m *MockStream) BufferSize() int {
	return m.bufferSize
}

// Start starts the mock stream
func (m *MockStream) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startError != nil {
		return m.startError
	}

	if !m.isOpen {
		return fmt.Errorf("stream not open")
	}

	if m.isActive {
		return fmt.Errorf("stream already active")
	}

	m.isActive = true
	m.gate.Open()

	if m.simulateRealTiming {
		m.stopChannel = make(chan struct{})
		m.done = make(chan struct{})
		go m.simulateCallbacks(m.stopChannel, m.done)
	}

	return nil
}

// Stop stops the mock stream. Once it returns no callback runs.
func (m *MockStream) Stop() error {
	m.mu.Lock()
	if m.stopError != nil {
		m.mu.Unlock()
		return m.stopError
	}

	if !m.isActive {
		m.mu.Unlock()
		return nil
	}

	m.isActive = false
	stop, done := m.stopChannel, m.done
	m.stopChannel, m.done = nil, nil
	m.mu.Unlock()

	m.gate.Close()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// Close closes the mock stream
func (m *MockStream) Close() error {
	m.mu.Lock()
	if m.closeError != nil {
		m.mu.Unlock()
		return m.closeError
	}
	if !m.isOpen {
		m.mu.Unlock()
		return nil // Already closed
	}
	m.mu.Unlock()

	if err := m.Stop(); err != nil {
		return err
	}

	m.mu.Lock()
	m.isOpen = false
	m.mu.Unlock()

	m.backend.mu.Lock()
	delete(m.backend.streams, m.id)
	m.backend.mu.Unlock()
	return nil
}

// IsActive returns true if the mock stream is active
func (m *MockStream) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isActive
}

// Tick runs one callback as the device would and records the block.
func (m *MockStream) Tick() {
	m.gate.Run(m.buffer, m.render)

	dataCopy := make([]int16, len(m.buffer))
	copy(dataCopy, m.buffer)

	m.backend.mu.Lock()
	m.backend.playbackAudioData = append(m.backend.playbackAudioData, dataCopy)
	m.backend.mu.Unlock()
}

// InjectFault reports an underrun the way a device driver would.
func (m *MockStream) InjectFault() {
	if m.onFault != nil {
		m.onFault()
	}
}

// simulateCallbacks runs in background to call back once per buffer period
func (m *MockStream) simulateCallbacks(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := time.Millisecond
	if m.sampleRate > 0 {
		period = time.Duration(float64(m.bufferSize) / m.sampleRate * float64(time.Second))
	}
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}
