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

package fm

import (
	"math"

	"github.com/loqalabs/loqa-synth-go/internal/voice"
)

const numOps = voice.NumOperators

// levelSteps is the resolution of the level-to-amplitude table per level unit.
const levelSteps = 8

// levelAmp maps an envelope or output level (0..99, in 1/levelSteps units) to linear
// amplitude. One level unit is 0.75 dB.
var levelAmp [99*levelSteps + 1]float64

func init() {
	for i := range levelAmp {
		if i == 0 {
			continue
		}
		level := float64(i) / levelSteps
		levelAmp[i] = math.Exp2((level - 99) / 8)
	}
}

func amplitude(level float64) float64 {
	if level <= 0 {
		return 0
	}
	if level >= 99 {
		return 1
	}
	return levelAmp[int(level*levelSteps)]
}

type opParams struct {
	rates   [4]float64 // level units per second for each EG stage
	levels  [4]float64 // EG targets, 0..99
	output  float64    // output level as amplitude
	velSens float64    // 0..1
	fixed   bool
	ratio   float64
	fixedHz float64
	detune  float64 // frequency multiplier
	ampMod  float64 // 0..1
}

type patch struct {
	ops       [numOps]opParams // index 0 is operator 1
	algorithm int
	feedback  int
	transpose int
	lfoHz     float64
	lfoDepth  float64 // amplitude modulation depth, 0..1
}

// stageSeconds is the time an EG stage at rate r (0..99) takes to cross the full
// level range.
func stageSeconds(r float64) float64 {
	return 0.002 + 40*math.Exp2(-r/6)
}

func clamp99(b byte) float64 {
	if b > 99 {
		return 99
	}
	return float64(b)
}

// decodePatch reads the parameters the engine uses from a voice.Size block.
func decodePatch(p []byte) patch {
	var pt patch
	for op := 1; op <= numOps; op++ {
		o := p[voice.OperatorOffset(op) : voice.OperatorOffset(op)+voice.OperatorSize]
		dst := &pt.ops[op-1]

		for i := 0; i < 4; i++ {
			dst.rates[i] = 99 / stageSeconds(clamp99(o[voice.OpEGRates+i]))
			dst.levels[i] = clamp99(o[voice.OpEGLevels+i])
		}
		dst.output = amplitude(clamp99(o[voice.OpOutputLevel]))
		dst.velSens = float64(o[voice.OpKeyVelSens]&0x07) / 7
		dst.ampMod = float64(o[voice.OpAmpModSens]&0x03) / 3
		dst.fixed = o[voice.OpOscMode]&0x01 == 1

		coarse := float64(o[voice.OpFreqCoarse] & 0x1F)
		fine := clamp99(o[voice.OpFreqFine])
		if dst.fixed {
			dst.fixedHz = math.Pow(10, float64(int(coarse)%4)+fine/100)
		} else {
			if coarse == 0 {
				coarse = 0.5
			}
			dst.ratio = coarse * (1 + fine/100)
		}

		detune := float64(o[voice.OpDetune])
		if detune > 14 {
			detune = 14
		}
		dst.detune = math.Exp2((detune - 7) * 0.00125)
	}

	pt.algorithm = int(p[voice.Algorithm] & 0x1F)
	pt.feedback = int(p[voice.Feedback] & 0x07)
	pt.transpose = int(clamp99(p[voice.Transpose])) - 24
	pt.lfoHz = 0.06 * math.Exp2(clamp99(p[voice.LFOSpeed])/10)

	// Tremolo reaches the output only through carriers with amp-mod sensitivity.
	var sens float64
	carriers := algorithms[pt.algorithm].carriers
	for i := 0; i < numOps; i++ {
		if carriers&(1<<uint(i)) != 0 && pt.ops[i].ampMod > sens {
			sens = pt.ops[i].ampMod
		}
	}
	pt.lfoDepth = clamp99(p[voice.LFOAmpDepth]) / 99 * sens
	return pt
}
