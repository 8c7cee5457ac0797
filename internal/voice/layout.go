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

// Offsets into the parameter block. Operator blocks are stored operator 6 first.
const (
	OperatorSize  = 21
	NumOperators  = 6
	PitchEGRates  = 126
	PitchEGLevels = 130
	Algorithm     = 134
	Feedback      = 135
	OscKeySync    = 136
	LFOSpeed      = 137
	LFODelay      = 138
	LFOPitchDepth = 139
	LFOAmpDepth   = 140
	LFOKeySync    = 141
	LFOWave       = 142
	PitchModSens  = 143
	Transpose     = 144
)

// Offsets inside one operator block.
const (
	OpEGRates     = 0
	OpEGLevels    = 4
	OpBreakPoint  = 8
	OpLeftDepth   = 9
	OpRightDepth  = 10
	OpLeftCurve   = 11
	OpRightCurve  = 12
	OpRateScaling = 13
	OpAmpModSens  = 14
	OpKeyVelSens  = 15
	OpOutputLevel = 16
	OpOscMode     = 17
	OpFreqCoarse  = 18
	OpFreqFine    = 19
	OpDetune      = 20
)

// OperatorOffset returns where operator op (1..6) starts in the block.
func OperatorOffset(op int) int {
	return (NumOperators - op) * OperatorSize
}

// InitVoice returns the DX7 "INIT VOICE": a single sine carrier on operator 1,
// every other operator silent.
func InitVoice() *Image {
	img := new(Image)
	for op := 1; op <= NumOperators; op++ {
		o := img[OperatorOffset(op) : OperatorOffset(op)+OperatorSize]
		copy(o[OpEGRates:], []byte{99, 99, 99, 99})
		copy(o[OpEGLevels:], []byte{99, 99, 99, 0})
		o[OpBreakPoint] = 39
		o[OpFreqCoarse] = 1
		o[OpDetune] = 7
		if op == 1 {
			o[OpOutputLevel] = 99
		}
	}

	copy(img[PitchEGRates:], []byte{99, 99, 99, 99})
	copy(img[PitchEGLevels:], []byte{50, 50, 50, 50})
	img[Algorithm] = 0
	img[Feedback] = 0
	img[OscKeySync] = 1
	img[LFOSpeed] = 35
	img[LFOKeySync] = 1
	img[PitchModSens] = 3
	img[Transpose] = 24
	copy(img[nameOffset:], "INIT VOICE")
	return img
}
