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

import "sync/atomic"

type eventKind uint8

const (
	eventNoteOn eventKind = iota + 1
	eventNoteOff
)

// noteEvent carries an already-shaped velocity so the render thread does no mapping.
type noteEvent struct {
	kind     eventKind
	note     uint8
	velocity uint8
}

// eventQueue is a bounded single-producer/single-consumer ring. The render thread is
// the only consumer; producers are serialized by the Host before calling push.
type eventQueue struct {
	buf  []noteEvent
	mask uint64
	head atomic.Uint64 // next slot to read
	tail atomic.Uint64 // next slot to write
}

// newEventQueue rounds capacity up to a power of two (minimum 2).
func newEventQueue(capacity int) *eventQueue {
	size := 2
	for size < capacity {
		size <<= 1
	}
	return &eventQueue{
		buf:  make([]noteEvent, size),
		mask: uint64(size - 1),
	}
}

// push appends ev and reports false when the ring is full.
func (q *eventQueue) push(ev noteEvent) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = ev
	q.tail.Store(tail + 1)
	return true
}

// pop removes the oldest event.
func (q *eventQueue) pop() (noteEvent, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return noteEvent{}, false
	}
	ev := q.buf[head&q.mask]
	q.head.Store(head + 1)
	return ev, true
}

func (q *eventQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}

func (q *eventQueue) capacity() int {
	return len(q.buf)
}
