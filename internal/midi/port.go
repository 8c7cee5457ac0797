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
	"errors"
	"fmt"
	"strings"
)

// loopbackName marks the ALSA loopback port that auto-selection skips.
const loopbackName = "Midi Through"

var ErrNoPorts = errors.New("no MIDI input ports available")

// SelectPort picks the input port to open. A non-negative override must name an
// existing port. Otherwise the first port whose name is not a loopback port wins,
// falling back to port 0.
func SelectPort(names []string, override int) (int, error) {
	if len(names) == 0 {
		return -1, ErrNoPorts
	}
	if override >= 0 {
		if override >= len(names) {
			return -1, fmt.Errorf("MIDI port %d out of range (%d ports)", override, len(names))
		}
		return override, nil
	}

	for i, name := range names {
		if !strings.Contains(name, loopbackName) {
			return i, nil
		}
	}
	return 0, nil
}
