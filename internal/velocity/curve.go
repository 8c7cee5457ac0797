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

package velocity

import (
	"math"
	"strings"
)

// Curve selects how raw note-on velocities are shaped before they reach the engine.
// Most of a patch's velocity response lives in the patch itself; the curve only
// adjusts the host side.
type Curve uint32

const (
	// LinearFull passes the raw 1..127 range through.
	LinearFull Curve = iota
	// Soft lifts low velocities.
	Soft
	// Hard pushes low velocities down.
	Hard
)

// String returns the command-line name of the curve.
func (c Curve) String() string {
	switch c {
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	default:
		return "linear"
	}
}

// ParseCurve maps a curve name to its Curve. Unknown names return LinearFull and false.
func ParseCurve(name string) (Curve, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "":
		return LinearFull, true
	case "soft":
		return Soft, true
	case "hard":
		return Hard, true
	default:
		return LinearFull, false
	}
}

// Map shapes a raw 7-bit velocity. Zero stays zero; any other input lands in 1..127.
func Map(raw uint8, curve Curve) uint8 {
	if raw == 0 {
		return 0
	}
	if raw > 127 {
		raw = 127
	}

	v := float64(raw) / 127.0
	mapped := v
	switch curve {
	case Soft:
		mapped = math.Sqrt(v)
	case Hard:
		mapped = v * v
	}

	out := int(mapped*127.0 + 0.5)
	if out < 1 {
		out = 1
	}
	if out > 127 {
		out = 127
	}
	return uint8(out)
}
