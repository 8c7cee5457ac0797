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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockOperations(t *testing.T) {
	a := []float32{1, 2, 3, -4}
	b := []float32{0.5, -1, 2, 2}

	t.Run("fill", func(t *testing.T) {
		dst := make([]float32, 4)
		Fill(0.25, dst)
		assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, dst)
	})

	t.Run("add", func(t *testing.T) {
		dst := make([]float32, 4)
		Add(a, b, dst)
		assert.Equal(t, []float32{1.5, 1, 5, -2}, dst)
	})

	t.Run("subtract", func(t *testing.T) {
		dst := make([]float32, 4)
		Subtract(a, b, dst)
		assert.Equal(t, []float32{0.5, 3, 1, -6}, dst)
	})

	t.Run("scale", func(t *testing.T) {
		dst := make([]float32, 4)
		Scale(a, -2, dst)
		assert.Equal(t, []float32{-2, -4, -6, 8}, dst)
	})

	t.Run("offset", func(t *testing.T) {
		dst := make([]float32, 4)
		Offset(a, 0.5, dst)
		assert.Equal(t, []float32{1.5, 2.5, 3.5, -3.5}, dst)
	})

	t.Run("multiply", func(t *testing.T) {
		dst := make([]float32, 4)
		Multiply(a, b, dst)
		assert.Equal(t, []float32{0.5, -2, 6, -8}, dst)
	})

	t.Run("in_place", func(t *testing.T) {
		buf := []float32{1, 2, 3}
		Scale(buf, 2, buf)
		Offset(buf, 1, buf)
		assert.Equal(t, []float32{3, 5, 7}, buf)
	})

	t.Run("block_size_follows_destination", func(t *testing.T) {
		dst := make([]float32, 2)
		Add(a, b, dst)
		assert.Equal(t, []float32{1.5, 1}, dst)
	})

	t.Run("empty_destination", func(t *testing.T) {
		assert.NotPanics(t, func() {
			Add(nil, nil, nil)
			Subtract(nil, nil, nil)
			Scale(nil, 1, nil)
			Offset(nil, 1, nil)
			Multiply(nil, nil, nil)
			Fill(1, nil)
		})
	})
}

func TestBlockOperations_NoAllocations(t *testing.T) {
	a := make([]float32, 256)
	b := make([]float32, 256)
	dst := make([]float32, 256)
	allocs := testing.AllocsPerRun(100, func() {
		Fill(0.1, a)
		Add(a, b, dst)
		Subtract(a, b, dst)
		Scale(dst, 0.5, dst)
		Offset(dst, 0.5, dst)
		Multiply(a, dst, dst)
	})
	assert.Zero(t, allocs)
}
