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

package voice

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// DX7 single-voice parameter block and its SysEx framing.
const (
	// Size is the length of a voice parameter block.
	Size = 155

	// StartMarker and EndMarker delimit a SysEx frame.
	StartMarker = 0xF0
	EndMarker   = 0xF7

	// HeaderSize counts the start marker plus manufacturer, channel and format bytes
	// that precede the payload.
	HeaderSize = 6

	// MinFrameSize is header + payload + checksum + end marker.
	MinFrameSize = HeaderSize + Size + 2

	nameOffset = 145
	nameLength = 10
)

// Parse failures reported by Extract.
var (
	ErrEmpty         = errors.New("voice data is empty")
	ErrNoStartMarker = errors.New("no sysex start marker")
	ErrNoEndMarker   = errors.New("no sysex end marker after start")
	ErrFrameTooShort = errors.New("sysex frame too short")
)

// Image is one voice parameter block. Its bytes mean something only to the engine.
type Image [Size]byte

// Name returns the patch name stored in the last ten bytes, trimmed.
func (img *Image) Name() string {
	raw := img[nameOffset : nameOffset+nameLength]
	var b strings.Builder
	for _, c := range raw {
		if c < 0x20 || c > 0x7E {
			c = ' '
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// Extract returns the voice image held in raw. A slice of exactly Size bytes is
// taken verbatim; anything else is scanned for a SysEx frame whose payload follows
// the 6-byte header. The checksum byte is not verified.
func Extract(raw []byte) (*Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	img := new(Image)
	if len(raw) == Size {
		copy(img[:], raw)
		return img, nil
	}

	start := 0
	for start < len(raw) && raw[start] != StartMarker {
		start++
	}
	if start == len(raw) {
		return nil, fmt.Errorf("%w in %d bytes", ErrNoStartMarker, len(raw))
	}

	// end is one past the last end marker.
	end := len(raw)
	for end > start && raw[end-1] != EndMarker {
		end--
	}
	if end <= start {
		return nil, fmt.Errorf("%w at offset %d", ErrNoEndMarker, start)
	}

	frameLen := end - start
	if frameLen < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrFrameTooShort, frameLen, MinFrameSize)
	}

	copy(img[:], raw[start+HeaderSize:start+HeaderSize+Size])
	return img, nil
}

// LoadFile reads path and extracts the voice image it contains.
func LoadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice file %s: %w", path, err)
	}

	img, err := Extract(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse voice file %s: %w", path, err)
	}
	return img, nil
}
