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

package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPort(t *testing.T) {
	ports := []string{"Midi Through:Midi Through Port-0 14:0", "KeyStep 32:KeyStep 32 MIDI 1 24:0", "nanoKEY2"}

	tests := []struct {
		name     string
		names    []string
		override int
		want     int
	}{
		{"skips_loopback", ports, -1, 1},
		{"override", ports, 0, 0},
		{"override_last", ports, 2, 2},
		{"first_port_when_no_loopback", []string{"A", "B"}, -1, 0},
		{"only_loopback_falls_back_to_zero", []string{"Midi Through Port-0"}, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectPort(tt.names, tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectPort_Errors(t *testing.T) {
	t.Run("no_ports", func(t *testing.T) {
		_, err := SelectPort(nil, -1)
		assert.ErrorIs(t, err, ErrNoPorts)
	})

	t.Run("override_out_of_range", func(t *testing.T) {
		_, err := SelectPort([]string{"A"}, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})
}

func TestInput_ReceiveAfterClose(t *testing.T) {
	sink := &recordingSink{}
	in := &Input{dispatcher: NewDispatcher(sink, nil)}
	in.gate.Open()

	in.receive([]byte{0x90, 60, 100}, 0)
	require.NoError(t, in.Close())
	in.receive([]byte{0x90, 62, 100}, 0)

	assert.Equal(t, []string{"on:60:100"}, sink.events)
}
