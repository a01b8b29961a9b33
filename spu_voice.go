// spu_voice.go - Per-voice oscillator/filter/envelope/pitch pipeline
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
Voice implements spec §3's "oscillator -> filter -> envelope -> pitch"
pipeline, one sample at a time. The waveform, filter and envelope formulas
are carried over from original_source's oscillator.rs/filter.rs/envelope.rs
as closely as Go idiom allows (float32 throughout, same phase-accumulation
and integer-counter ADSR stepping), per SPEC_FULL.md §3.1.

Deviation from the original, recorded in SPEC_FULL.md and DESIGN.md:
Filter.compute's original only implements AllPass and panics on every other
mode. Here every unimplemented filter mode falls back to passing the input
through unchanged rather than panicking, since a guest-selectable filter
mode must never be able to crash the emulator (spec §7 kind 3).
*/

package main

import "math"

type Waveform int

const (
	WaveformSquare Waveform = iota
	WaveformTriangle
	WaveformSin
	WaveformSuperSaw
	WaveformNoise
)

func WaveformFromU32(v uint32) Waveform {
	switch v {
	case 1:
		return WaveformTriangle
	case 2:
		return WaveformSin
	case 3:
		return WaveformSuperSaw
	case 4:
		return WaveformNoise
	default:
		return WaveformSquare
	}
}

// Oscillator mirrors oscillator.rs: one of five waveforms driven by up to
// five accumulated phase registers and four free parameters.
type Oscillator struct {
	Waveform Waveform
	Params   [4]float32
	Phases   [5]float32
	noiseX   uint64
}

func (o *Oscillator) Reset() {
	o.Params = [4]float32{}
	o.Phases = [5]float32{}
}

func (o *Oscillator) SetParam(param uint8, value int16) {
	if param < 4 {
		o.Params[param] = float32(value) / 256.0
	}
}

func (o *Oscillator) SetPhase(phase uint8, value int16) {
	if phase < 5 {
		o.Phases[phase] = float32(2*math.Pi) * float32(value) / float32(math.MaxInt16)
	}
}

// Compute advances the oscillator by dt seconds at frequency f and returns
// the next sample in [-1, 1].
func (o *Oscillator) Compute(dt, f float32) float32 {
	switch o.Waveform {
	case WaveformSin:
		o.Phases[0] += f * dt
		o.Phases[0] = float32(math.Mod(float64(o.Phases[0]), 1.0))
		return float32(math.Sin(float64(o.Phases[0]) * 2 * math.Pi))

	case WaveformSquare:
		o.Phases[0] += f * dt
		o.Phases[0] = float32(math.Mod(float64(o.Phases[0]), 1.0))
		transition := o.Params[0] + 32767.5/65535.0
		if o.Phases[0] < transition {
			return 1.0
		}
		return -1.0

	case WaveformTriangle:
		var value float32
		if o.Phases[0] >= 0.5 {
			value = -o.Phases[0]*4.0 + 3.0
		} else {
			value = o.Phases[0]*4.0 - 1.0
		}
		o.Phases[0] += f * dt
		o.Phases[0] = float32(math.Mod(float64(o.Phases[0]), 1.0))
		return value

	case WaveformSuperSaw:
		spread := o.Params[0]
		spreadSq := spread * spread
		freqs := [5]float32{f * spreadSq, f * spread, f, f / spread, f / spreadSq}
		var total float32
		for i := 0; i < 5; i++ {
			o.Phases[i] += dt * freqs[i]
			o.Phases[i] = float32(math.Mod(float64(o.Phases[i]), 1.0))
			total += o.Phases[i] - 0.5
		}
		return total * 0.4

	case WaveformNoise:
		x := o.noiseX
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		o.noiseX = x
		return (float32(int16(x)) - 0.5) / 32767.0

	default:
		return 0
	}
}

type FilterMode int

const (
	FilterAllPass FilterMode = iota
	FilterLowPass6
	FilterLowPass12
	FilterLowPass18
	FilterLowPass24
	FilterHighPass6
	FilterHighPass12
	FilterHighPass18
	FilterHighPass24
	FilterBandPass6
	FilterBandPass12
	FilterBandPass18
	FilterBandPass24
)

func FilterModeFromU32(v uint32) FilterMode {
	if v >= 1 && v <= 12 {
		return FilterMode(v)
	}
	return FilterAllPass
}

// Filter mirrors filter.rs's biquad shell. Only AllPass has real
// coefficients computed upstream; every other mode currently passes
// through unchanged (see file header) rather than panicking.
type Filter struct {
	a         [2]float32
	b         [3]float32
	Resonance float32
	Mode      FilterMode
}

func (f *Filter) Reset() {
	f.a = [2]float32{}
	f.b = [3]float32{}
}

func (f *Filter) SetResonance(resonance uint16) {
	f.Resonance = float32(resonance) / float32(math.MaxUint16)
}

func (f *Filter) Compute(x, dt float32) float32 {
	switch f.Mode {
	case FilterAllPass:
		return x
	default:
		return x
	}
}

type envelopeStage int

const (
	envIdle envelopeStage = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// Envelope mirrors envelope.rs's integer-counter ADSR stepping exactly:
// attack/decay/release are sample counts, not times, and sustain is a
// fixed level rather than a counter.
type Envelope struct {
	Attack, Decay, Release uint32
	Sustain                int16

	stage  envelopeStage
	t      uint32
	active bool
}

func (e *Envelope) On() {
	e.stage = envAttack
	e.t = 0
	e.active = true
}

func (e *Envelope) Off() {
	e.active = false
}

func (e *Envelope) Mute() {
	e.stage = envIdle
	e.active = false
}

// Process advances the envelope by one sample, returning the next level in
// [-0x7FFF, 0x7FFF] and ok=false once the envelope has gone Idle (spec
// §4.8: "Idle => voice muted").
func (e *Envelope) Process() (int16, bool) {
	switch e.stage {
	case envIdle:
		return 0, false

	case envAttack:
		if e.t >= e.Attack {
			e.stage, e.t = envDecay, 0
			return 0x7FFF, true
		}
		x := int16((0x7FFF * int32(e.t)) / int32(e.Attack))
		e.t++
		return x, true

	case envDecay:
		if e.t >= e.Decay {
			if e.active {
				e.stage = envSustain
			} else {
				e.stage, e.t = envRelease, 0
			}
			return e.Sustain, true
		}
		x := e.Sustain + int16((int32(0x7FFF-int32(e.Sustain))*int32(e.Decay-e.t))/int32(e.Decay))
		e.t++
		return x, true

	case envSustain:
		if !e.active {
			e.stage, e.t = envRelease, 0
		}
		return e.Sustain, true

	case envRelease:
		if e.t >= e.Release {
			e.stage = envIdle
			return 0, true
		}
		x := int16((int32(e.Sustain) * int32(e.Release-e.t)) / int32(e.Release))
		e.t++
		return x, true
	}
	return 0, false
}

type PitchMode int

const (
	PitchConstant PitchMode = iota
	PitchPortamentoQuadratic
)

func PitchModeFromU32(v uint32) PitchMode {
	if v == 1 {
		return PitchPortamentoQuadratic
	}
	return PitchConstant
}

// Pitch mirrors pitch.rs: either snaps straight to target, or each sample
// replaces current with (target-current)*speed (the "quadratic portamento"
// update rule). That is not an additive step and not a true quadratic
// curve — current is overwritten with the scaled gap to target, not nudged
// toward it — but the naming mismatch is preserved rather than corrected.
type Pitch struct {
	current, target, speed float32
	Mode                   PitchMode
}

func (p *Pitch) SetTarget(v uint16) { p.target = float32(v) / 16.0 }
func (p *Pitch) SetSpeed(v uint16)  { p.speed = float32(v) / float32(math.MaxUint16) }
func (p *Pitch) Finish()            { p.current = p.target }

func (p *Pitch) Process() float32 {
	switch p.Mode {
	case PitchConstant:
		p.current = p.target
	case PitchPortamentoQuadratic:
		p.current = (p.target - p.current) * p.speed
	}
	return p.current
}

// Voice is one oscillator/filter/envelope/pitch chain. Output is
// envelope * filter(osc(dt, pitch.process())) per spec §4.8.
type Voice struct {
	Enabled   bool
	Osc       Oscillator
	Filt      Filter
	Env       Envelope
	Pit       Pitch
}

func NewVoice() *Voice {
	return &Voice{}
}

// Sample advances the voice by one sample period dt and returns its
// contribution to the mix, or 0 with ok=false if the envelope has gone
// idle (voice is silent and need not be summed).
func (v *Voice) Sample(dt float32) (float32, bool) {
	if !v.Enabled {
		return 0, false
	}
	f := v.Pit.Process()
	x := v.Osc.Compute(dt, f)
	y := v.Filt.Compute(x, dt)
	e, ok := v.Env.Process()
	if !ok {
		return 0, false
	}
	return y * (float32(e) / float32(math.MaxInt16)), true
}
