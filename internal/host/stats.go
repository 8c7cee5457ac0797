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
	"context"
	"log"
	"sync/atomic"
	"time"
)

type counters struct {
	renders       atomic.Uint64
	frames        atomic.Uint64
	droppedEvents atomic.Uint64
	voiceLoads    atomic.Uint64
	voiceSwaps    atomic.Uint64
	streamFaults  atomic.Uint64
}

// Stats is a snapshot of the host's runtime counters.
type Stats struct {
	Renders       uint64 // render calls that reached the engine
	Frames        uint64 // frames rendered by those calls
	DroppedEvents uint64 // note events lost to a full queue
	VoiceLoads    uint64 // voices accepted by LoadVoice
	VoiceSwaps    uint64 // voices installed in the engine by the render thread
	StreamFaults  uint64 // underruns and overruns reported by the transport
	QueuedEvents  int    // note events waiting for the next block
}

// Stats returns the current counters.
func (h *Host) Stats() Stats {
	return Stats{
		Renders:       h.stats.renders.Load(),
		Frames:        h.stats.frames.Load(),
		DroppedEvents: h.stats.droppedEvents.Load(),
		VoiceLoads:    h.stats.voiceLoads.Load(),
		VoiceSwaps:    h.stats.voiceSwaps.Load(),
		StreamFaults:  h.stats.streamFaults.Load(),
		QueuedEvents:  h.events.len(),
	}
}

// Monitor logs stream faults and dropped note events as they accumulate, so the
// real-time paths never log themselves. It returns when ctx is done.
func (h *Host) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := h.Stats()
			if cur.StreamFaults != last.StreamFaults {
				log.Printf("⚠️  Audio stream faults: %d (+%d)", cur.StreamFaults, cur.StreamFaults-last.StreamFaults)
			}
			if cur.DroppedEvents != last.DroppedEvents {
				log.Printf("⚠️  Note events dropped (queue of %d full): %d (+%d)",
					h.events.capacity(), cur.DroppedEvents, cur.DroppedEvents-last.DroppedEvents)
			}
			last = cur
		}
	}
}
