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

// Package dsp holds the allocation-free sample primitives the synthesis engine is
// built from: saturating fixed-point conversion, elementwise block arithmetic and
// cascaded direct-form-I biquads.
//
// Block functions take their block size from the destination slice. Source slices
// shorter than the destination are a caller error and panic on the bounds check;
// nothing here reports errors, blocks, or allocates.
package dsp

const (
	// q15Ceiling is the largest input that still maps inside the signed 16-bit range.
	q15Ceiling = float32(0.999969)

	// q15Max is 1 - 2^-15, which scales to exactly 32767.
	q15Max = float32(32767.0 / 32768.0)

	q15Scale = float32(32768.0)
)

// ConvertToFixed16 converts float samples in [-1, 1) to signed 16-bit samples.
//
// Inputs are clamped to [-1.0, 0.999969] before scaling by 32768 and truncating
// toward zero, and the scaled value is clamped again to [-32768, 32767]. The upper
// clamp lands on 1 - 2^-15 so that 0.999969 and everything above it produce 32767.
// NaN converts to 0.
func ConvertToFixed16(src []float32, dst []int16) {
	if len(src) == 0 {
		return
	}
	dst = dst[:len(src)]
	for i, x := range src {
		if x != x {
			dst[i] = 0
			continue
		}
		if x >= q15Ceiling {
			x = q15Max
		}
		if x < -1.0 {
			x = -1.0
		}

		v := int32(x * q15Scale)

		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		dst[i] = int16(v)
	}
}

// SaturatingRightShift arithmetic-shifts x right by shift and clamps the result to
// the signed range of a bits-wide integer. With bits >= 32 the shifted value is
// returned unclamped.
func SaturatingRightShift(x int32, bits, shift int) int32 {
	shifted := x >> uint(shift)
	if bits >= 32 {
		return shifted
	}

	maxVal := int32(1)<<uint(bits-1) - 1
	minVal := -(int32(1) << uint(bits-1))

	if shifted > maxVal {
		return maxVal
	}
	if shifted < minVal {
		return minVal
	}
	return shifted
}
