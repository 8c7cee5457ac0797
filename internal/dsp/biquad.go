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

import "math"

const (
	// CoeffsPerStage is the coefficient window of one section: b0, b1, b2, a1, a2.
	CoeffsPerStage = 5

	// StatePerStage is the state window of one section: x1, x2, y1, y2.
	StatePerStage = 4
)

// BiquadCascade runs N second-order sections in series using the direct form I.
// Stage i reads coefficients from coeffs[5*i:5*i+5] and keeps its history in
// state[4*i:4*i+4]. Coefficients are never written by the cascade.
type BiquadCascade struct {
	stages int
	coeffs []float32
	state  []float32
}

// NewBiquadCascade builds a cascade over caller-owned coefficients and allocates
// zeroed state for it.
func NewBiquadCascade(stages int, coeffs []float32) *BiquadCascade {
	c := &BiquadCascade{}
	c.Init(stages, coeffs, make([]float32, StatePerStage*stages))
	return c
}

// Init binds the cascade to stages sections of coeffs and state and zeroes state.
func (c *BiquadCascade) Init(stages int, coeffs, state []float32) {
	c.stages = stages
	c.coeffs = coeffs[:CoeffsPerStage*stages]
	c.state = state[:StatePerStage*stages]
	c.Reset()
}

// Reset clears the filter history.
func (c *BiquadCascade) Reset() {
	for i := range c.state {
		c.state[i] = 0
	}
}

// Stages returns the number of sections in the cascade.
func (c *BiquadCascade) Stages() int {
	return c.stages
}

// Process filters src into dst. src and dst may be the same slice.
func (c *BiquadCascade) Process(src, dst []float32) {
	if len(dst) == 0 {
		return
	}
	src = src[:len(dst)]

	for n := range dst {
		y := src[n]

		for stage := 0; stage < c.stages; stage++ {
			s := c.state[StatePerStage*stage : StatePerStage*stage+StatePerStage]
			k := c.coeffs[CoeffsPerStage*stage : CoeffsPerStage*stage+CoeffsPerStage]

			x0 := y
			y0 := k[0]*x0 + k[1]*s[0] + k[2]*s[1] - k[3]*s[2] - k[4]*s[3]

			s[1] = s[0]
			s[0] = x0
			s[3] = s[2]
			s[2] = y0

			y = y0
		}

		dst[n] = y
	}
}

// IdentityCoefficients returns a section that passes its input through unchanged.
func IdentityCoefficients() [CoeffsPerStage]float32 {
	return [CoeffsPerStage]float32{1, 0, 0, 0, 0}
}

// LowpassCoefficients designs an RBJ low-pass section normalised by a0.
func LowpassCoefficients(sampleRate, frequency, q float64) [CoeffsPerStage]float32 {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	b0 := (1.0 - cosOmega) / 2.0
	b1 := 1.0 - cosOmega
	b2 := (1.0 - cosOmega) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosOmega
	a2 := 1.0 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighpassCoefficients designs an RBJ high-pass section normalised by a0.
func HighpassCoefficients(sampleRate, frequency, q float64) [CoeffsPerStage]float32 {
	omega := 2.0 * math.Pi * frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	b0 := (1.0 + cosOmega) / 2.0
	b1 := -(1.0 + cosOmega)
	b2 := (1.0 + cosOmega) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosOmega
	a2 := 1.0 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// ButterworthQ returns the per-section Q values of an even-order Butterworth filter
// built from order/2 cascaded sections.
func ButterworthQ(order int) []float64 {
	sections := order / 2
	qs := make([]float64, sections)
	for k := 0; k < sections; k++ {
		theta := math.Pi * float64(2*k+1) / float64(2*order)
		qs[k] = 1.0 / (2.0 * math.Sin(theta))
	}
	return qs
}

func normalize(b0, b1, b2, a0, a1, a2 float64) [CoeffsPerStage]float32 {
	inv := 1.0 / a0
	return [CoeffsPerStage]float32{
		float32(b0 * inv),
		float32(b1 * inv),
		float32(b2 * inv),
		float32(a1 * inv),
		float32(a2 * inv),
	}
}
