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
	"runtime"
	"sync/atomic"
)

// Gate fences a real-time callback. Close waits for a running callback to finish,
// and callbacks that start afterwards write silence instead of rendering. A zero
// Gate is closed.
type Gate struct {
	open     atomic.Bool
	inflight atomic.Int32
}

// Open lets callbacks through.
func (g *Gate) Open() {
	g.open.Store(true)
}

// Close stops new callbacks from rendering and waits for the one in progress.
func (g *Gate) Close() {
	g.open.Store(false)
	for g.inflight.Load() > 0 {
		runtime.Gosched()
	}
}

// IsOpen reports whether callbacks currently render.
func (g *Gate) IsOpen() bool {
	return g.open.Load()
}

// Enter admits one callback. When it returns true the caller must call Exit.
func (g *Gate) Enter() bool {
	g.inflight.Add(1)
	if !g.open.Load() {
		g.inflight.Add(-1)
		return false
	}
	return true
}

// Exit ends a callback admitted by Enter.
func (g *Gate) Exit() {
	g.inflight.Add(-1)
}

// Run calls render with out if the gate is open, otherwise it zeroes out.
func (g *Gate) Run(out []int16, render RenderFunc) {
	if render == nil || !g.Enter() {
		clear(out)
		return
	}
	render(out)
	g.Exit()
}
