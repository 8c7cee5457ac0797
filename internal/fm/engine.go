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

// Package fm is a six-operator phase-modulation engine that reads DX7 voice
// parameter blocks. It implements host.Engine.
//
// Operators run on an integer core: 32-bit phase accumulators, a Q24 sine table and
// Q24 gains. Voices are summed in int32 and the mix is then filtered and converted
// in float blocks with the dsp kernels. Nothing in Render allocates.
package fm

import (
	"math"

	"github.com/loqalabs/loqa-synth-go/internal/dsp"
	"github.com/loqalabs/loqa-synth-go/internal/voice"
)

const (
	// MaxBlock is the largest chunk rendered in one pass; longer buffers are split.
	MaxBlock = 512

	sineBits = 12
	sineSize = 1 << sineBits
	q24      = 1 << 24

	// voiceBits is the width each voice is narrowed to before summing, leaving
	// room for 16 voices in an int32.
	voiceBits  = 24
	voiceShift = 3

	// mixScale maps the narrowed int32 sum to float; one full-scale carrier is 0.25.
	mixScale = 1.0 / (1 << 23)

	// modShift turns a Q24 modulation signal into a 32-bit phase offset of up to
	// two cycles.
	modShift = 9

	feedbackBits = 8

	toneOrder    = 4
	toneMaxHz    = 18000.0
	prefilterHz  = 20.0
	releaseFloor = 0.5 // level units
	defaultPoly  = 16

	defaultSampleRate = 48000.0
)

var sineTable [sineSize]int32

func init() {
	for i := range sineTable {
		sineTable[i] = int32(math.Round(math.Sin(2*math.Pi*float64(i)/sineSize) * q24))
	}
}

type envelope struct {
	stage int // 0..2 attack/decay, 3 release, 4 done
	level float64
}

type operator struct {
	phase uint32
	inc   uint32
	amp   float64 // output level scaled by velocity
	env   envelope
}

type fmVoice struct {
	active bool
	held   bool
	note   uint8
	ops    [numOps]operator
	fb     [2]int32
}

// Options configures an Engine.
type Options struct {
	SampleRate float64
	MaxNotes   int
	Filter     dsp.FilterConfig
}

// Engine renders mono 16-bit audio. It is not safe for concurrent use; the host
// serializes every call onto the render thread.
type Engine struct {
	sampleRate float64
	voices     []fmVoice
	patch      patch
	gain       float32
	filter     dsp.FilterConfig
	active     bool

	lfoPhase float64

	acc []int32
	mix []float32
	aux []float32

	tone       dsp.BiquadCascade
	toneCoeffs []float32
	toneState  []float32

	prefilter       dsp.BiquadCascade
	prefilterCoeffs []float32
	prefilterState  []float32
}

// New builds an engine. Call Activate before rendering.
func New(opts Options) *Engine {
	if opts.MaxNotes <= 0 {
		opts.MaxNotes = defaultPoly
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	e := &Engine{
		sampleRate: opts.SampleRate,
		voices:     make([]fmVoice, opts.MaxNotes),
		filter:     opts.Filter,
		gain:       1,
		acc:        make([]int32, MaxBlock),
		mix:        make([]float32, MaxBlock),
		aux:        make([]float32, MaxBlock),
	}

	cutoff := math.Min(toneMaxHz, 0.45*opts.SampleRate)
	for _, q := range dsp.ButterworthQ(toneOrder) {
		c := dsp.LowpassCoefficients(opts.SampleRate, cutoff, q)
		e.toneCoeffs = append(e.toneCoeffs, c[:]...)
	}
	stages := len(e.toneCoeffs) / dsp.CoeffsPerStage
	e.toneState = make([]float32, dsp.StatePerStage*stages)
	e.tone.Init(stages, e.toneCoeffs, e.toneState)

	low := dsp.LowpassCoefficients(opts.SampleRate, prefilterHz, math.Sqrt2/2)
	e.prefilterCoeffs = low[:]
	e.prefilterState = make([]float32, dsp.StatePerStage)
	e.prefilter.Init(1, e.prefilterCoeffs, e.prefilterState)

	e.patch = decodePatch(voice.InitVoice()[:])
	return e
}

// Activate silences all voices, clears filter history and enables rendering.
func (e *Engine) Activate() {
	for i := range e.voices {
		e.voices[i] = fmVoice{}
	}
	e.tone.Reset()
	e.prefilter.Reset()
	e.lfoPhase = 0
	e.active = true
}

// LoadVoiceParameters installs a voice parameter block. Blocks shorter than
// voice.Size are ignored. Sounding notes keep their pitch and levels.
func (e *Engine) LoadVoiceParameters(params []byte) {
	if len(params) < voice.Size {
		return
	}
	e.patch = decodePatch(params[:voice.Size])
}

// SetGain sets the output gain.
func (e *Engine) SetGain(gain float32) {
	e.gain = gain
}

// SetFilterConfig switches the output filter modes.
func (e *Engine) SetFilterConfig(cfg dsp.FilterConfig) {
	if cfg.HighPassPrefilter && !e.filter.HighPassPrefilter {
		e.prefilter.Reset()
	}
	e.filter = cfg
}

// ActiveVoices returns how many voices are sounding.
func (e *Engine) ActiveVoices() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

// KeyDown starts note at the given 1..127 velocity. A note that is already sounding
// is retriggered on its own voice.
func (e *Engine) KeyDown(note, velocity uint8) {
	slot := e.findVoice(note)
	v := &e.voices[slot]

	pitch := int(note) + e.patch.transpose
	if pitch < 0 {
		pitch = 0
	}
	if pitch > 127 {
		pitch = 127
	}
	base := 440 * math.Exp2((float64(pitch)-69)/12)
	vel := float64(velocity) / 127

	*v = fmVoice{active: true, held: true, note: note}
	for i := range v.ops {
		p := &e.patch.ops[i]
		freq := base * p.ratio * p.detune
		if p.fixed {
			freq = p.fixedHz * p.detune
		}
		op := &v.ops[i]
		op.inc = e.phaseIncrement(freq)
		op.amp = p.output * (1 - p.velSens*(1-vel))
		op.env = envelope{stage: 0, level: 0}
	}
}

// KeyUp releases every held voice playing note.
func (e *Engine) KeyUp(note uint8) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.held && v.note == note {
			v.held = false
			for j := range v.ops {
				v.ops[j].env.stage = 3
			}
		}
	}
}

func (e *Engine) phaseIncrement(freq float64) uint32 {
	nyquist := e.sampleRate / 2
	if freq >= nyquist {
		freq = nyquist * 0.999
	}
	return uint32(freq / e.sampleRate * (1 << 32))
}

// findVoice returns the voice to use for note: the voice already playing it, a
// free voice, or the quietest one.
func (e *Engine) findVoice(note uint8) int {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].note == note {
			return i
		}
	}
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}

	quiet := 0
	minLevel := e.carrierLevel(&e.voices[0])
	for i := 1; i < len(e.voices); i++ {
		if l := e.carrierLevel(&e.voices[i]); l < minLevel {
			minLevel = l
			quiet = i
		}
	}
	return quiet
}

func (e *Engine) carrierLevel(v *fmVoice) float64 {
	carriers := algorithms[e.patch.algorithm].carriers
	var level float64
	for i := range v.ops {
		if carriers&(1<<uint(i)) != 0 && v.ops[i].env.level > level {
			level = v.ops[i].env.level
		}
	}
	return level
}

// Render fills out with len(out) samples.
func (e *Engine) Render(out []int16) {
	if !e.active {
		clear(out)
		return
	}

	cfg := e.filter
	for len(out) > 0 {
		n := len(out)
		if n > MaxBlock {
			n = MaxBlock
		}
		e.renderBlock(out[:n], cfg)
		out = out[n:]
	}
}

func (e *Engine) renderBlock(out []int16, cfg dsp.FilterConfig) {
	n := len(out)
	acc := e.acc[:n]
	mix := e.mix[:n]
	aux := e.aux[:n]

	clear(acc)
	sounding := false
	for i := range e.voices {
		if e.voices[i].active {
			e.renderVoice(&e.voices[i], acc)
			sounding = true
		}
	}

	if sounding {
		for i, a := range acc {
			mix[i] = float32(a) * mixScale
		}
	} else {
		dsp.Fill(0, mix)
	}

	e.applyTremolo(mix, aux)

	if cfg.HighPassPrefilter {
		e.prefilter.Process(mix, aux)
		dsp.Subtract(mix, aux, mix)
	}

	e.tone.Process(mix, mix)
	dsp.Scale(mix, e.gain, mix)
	dsp.ConvertToFixed16(mix, out)
}

// applyTremolo multiplies mix by a triangle LFO swinging between 1-depth and 1.
func (e *Engine) applyTremolo(mix, lfo []float32) {
	depth := float32(e.patch.lfoDepth)
	step := e.patch.lfoHz / e.sampleRate
	if depth <= 0 {
		e.lfoPhase = math.Mod(e.lfoPhase+step*float64(len(mix)), 1)
		return
	}

	for i := range lfo {
		p := e.lfoPhase
		tri := 4*math.Abs(p-0.5) - 1
		lfo[i] = float32(tri)
		e.lfoPhase += step
		if e.lfoPhase >= 1 {
			e.lfoPhase -= 1
		}
	}
	dsp.Scale(lfo, 0.5*depth, lfo)
	dsp.Offset(lfo, 1-0.5*depth, lfo)
	dsp.Multiply(mix, lfo, mix)
}

func (e *Engine) renderVoice(v *fmVoice, acc []int32) {
	alg := &algorithms[e.patch.algorithm]
	fbShift := feedbackBits - e.patch.feedback
	perSample := 1 / e.sampleRate

	var outs [numOps]int32
	for n := range acc {
		var sum int32
		for i := numOps - 1; i >= 0; i-- {
			op := &v.ops[i]
			level := e.advance(&op.env, &e.patch.ops[i], perSample)
			gain := int32(amplitude(level) * op.amp * q24)

			var m int32
			for j := i + 1; j < numOps; j++ {
				if alg.mods[i]&(1<<uint(j)) != 0 {
					m += outs[j]
				}
			}
			if i == alg.feedback && e.patch.feedback > 0 {
				m += dsp.SaturatingRightShift(v.fb[0]+v.fb[1], 32, fbShift+1)
			}

			idx := (op.phase + uint32(m)<<modShift) >> (32 - sineBits)
			y := int32((int64(sineTable[idx]) * int64(gain)) >> 24)
			op.phase += op.inc
			outs[i] = y

			if i == alg.feedback {
				v.fb[1] = v.fb[0]
				v.fb[0] = y
			}
			if alg.carriers&(1<<uint(i)) != 0 {
				sum += y
			}
		}
		acc[n] += dsp.SaturatingRightShift(sum, voiceBits, voiceShift)
	}

	if !v.held && e.released(v) {
		v.active = false
	}
}

// advance moves env one sample toward its stage target and returns the level.
func (e *Engine) advance(env *envelope, p *opParams, dt float64) float64 {
	if env.stage > 3 {
		return env.level
	}
	target := p.levels[env.stage]
	step := p.rates[env.stage] * dt

	switch {
	case env.level < target:
		env.level += step
		if env.level >= target {
			env.level = target
			env.stage = nextStage(env.stage)
		}
	case env.level > target:
		env.level -= step
		if env.level <= target {
			env.level = target
			env.stage = nextStage(env.stage)
		}
	default:
		env.stage = nextStage(env.stage)
	}
	return env.level
}

// nextStage advances attack and decay; stage 2 sustains until key up and stage 3
// ends in the done state.
func nextStage(stage int) int {
	switch stage {
	case 0, 1:
		return stage + 1
	case 3:
		return 4
	default:
		return stage
	}
}

// released reports whether every carrier envelope has fallen below audibility.
func (e *Engine) released(v *fmVoice) bool {
	carriers := algorithms[e.patch.algorithm].carriers
	for i := range v.ops {
		if carriers&(1<<uint(i)) == 0 {
			continue
		}
		if v.ops[i].env.level > releaseFloor {
			return false
		}
	}
	return true
}
