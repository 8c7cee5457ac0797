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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullReader(t *testing.T) {
	t.Run("little_endian_blocks", func(t *testing.T) {
		next := int16(-2)
		r := newPullReader(func(out []int16) {
			for i := range out {
				out[i] = next
				next++
			}
		}, 3)
		r.gate.Open()

		p := make([]byte, 16)
		n, err := r.Read(p)
		require.NoError(t, err)
		require.Equal(t, 16, n)

		for i := 0; i < 8; i++ {
			assert.Equal(t, int16(i-2), int16(binary.LittleEndian.Uint16(p[2*i:])))
		}
	})

	t.Run("odd_byte_count", func(t *testing.T) {
		r := newPullReader(constantRender(1), 4)
		r.gate.Open()

		n, err := r.Read(make([]byte, 5))
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("closed_gate_is_silence", func(t *testing.T) {
		r := newPullReader(constantRender(0x1234), 4)
		p := []byte{1, 2, 3, 4}

		_, err := r.Read(p)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 0}, p)
	})
}

func TestOtoBackend_RejectsMissingCallback(t *testing.T) {
	backend := NewOtoBackend()
	require.NoError(t, backend.Initialize())
	require.NoError(t, backend.Terminate())

	_, err := backend.CreateOutputStream(StreamParams{SampleRate: 48000})
	assert.Error(t, err)
}
