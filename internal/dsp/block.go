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

package dsp

// Fill sets every sample of dst to value.
func Fill(value float32, dst []float32) {
	for i := range dst {
		dst[i] = value
	}
}

// Add writes a[i] + b[i] to dst.
func Add(a, b, dst []float32) {
	if len(dst) == 0 {
		return
	}
	a, b = a[:len(dst)], b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// Subtract writes a[i] - b[i] to dst.
func Subtract(a, b, dst []float32) {
	if len(dst) == 0 {
		return
	}
	a, b = a[:len(dst)], b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

// Scale writes src[i] * scale to dst. src and dst may be the same slice.
func Scale(src []float32, scale float32, dst []float32) {
	if len(dst) == 0 {
		return
	}
	src = src[:len(dst)]
	for i := range dst {
		dst[i] = src[i] * scale
	}
}

// Offset writes src[i] + offset to dst.
func Offset(src []float32, offset float32, dst []float32) {
	if len(dst) == 0 {
		return
	}
	src = src[:len(dst)]
	for i := range dst {
		dst[i] = src[i] + offset
	}
}

// Multiply writes a[i] * b[i] to dst.
func Multiply(a, b, dst []float32) {
	if len(dst) == 0 {
		return
	}
	a, b = a[:len(dst)], b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
}
