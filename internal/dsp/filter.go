// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dsp implements the Butterworth low-pass filtering and FFT-based
// spectral analysis used for vibration measurements. The numeric domain is
// float32 throughout.
package dsp

import (
	"github.com/chewxy/math32"
)

// MaxFilterOrder is the highest supported Butterworth order.
const MaxFilterOrder = 4

// maxSections is the number of second-order sections for the maximum order.
const maxSections = MaxFilterOrder / 2

// FilterState holds a cascade of second-order sections (biquads) plus the
// per-section Direct-Form-II-Transposed running state. One instance filters
// one axis at a time; it must not be shared across concurrent passes.
type FilterState struct {
	// Each section: [b0, b1, b2, a1, a2], a0 normalized to 1.
	sos      [maxSections][5]float32
	state    [maxSections][2]float32
	sections int
}

// DesignLowPass computes a digital Butterworth low-pass filter as a cascade
// of second-order sections via the bilinear transform.
//
// The normalized cutoff is clamped to [0.01, 0.99] of Nyquist; out-of-range
// cutoffs are clamped, not rejected. Odd orders are rounded up to the next
// even order, and the order is capped at MaxFilterOrder.
func DesignLowPass(cutoffHz, sampleRateHz float32, order int) FilterState {
	if order < 1 {
		order = 2
	}
	if order%2 != 0 {
		order++
	}
	if order > MaxFilterOrder {
		order = MaxFilterOrder
	}

	nyquist := sampleRateHz / 2
	wn := cutoffHz / nyquist
	if wn >= 1 {
		wn = 0.99
	}
	if wn <= 0 {
		wn = 0.01
	}

	// Bilinear transform of the analog prototype. Use the clamped cutoff so
	// that clamping actually bounds the response.
	w0 := math32.Tan(math32.Pi * wn / 2)
	k2 := w0 * w0

	var f FilterState
	f.sections = order / 2

	for k := 0; k < f.sections; k++ {
		// Per-section Q from the Butterworth pole angle.
		q := 1 / (2 * math32.Cos(math32.Pi*(2*float32(k)+1)/(2*float32(order))))
		k1 := w0 / q
		a0 := 1 + k1 + k2

		f.sos[k][0] = k2 / a0            // b0
		f.sos[k][1] = 2 * k2 / a0        // b1
		f.sos[k][2] = k2 / a0            // b2
		f.sos[k][3] = 2 * (k2 - 1) / a0  // a1
		f.sos[k][4] = (1 - k1 + k2) / a0 // a2
	}

	f.Reset()
	return f
}

// Sections returns the number of active second-order sections.
func (f *FilterState) Sections() int {
	return f.sections
}

// Reset zeroes the running state of every section.
func (f *FilterState) Reset() {
	for i := range f.state {
		f.state[i][0] = 0
		f.state[i][1] = 0
	}
}

// processSample runs one input sample through one section,
// Direct Form II Transposed.
func (f *FilterState) processSample(x float32, section int) float32 {
	b := &f.sos[section]
	z := &f.state[section]

	y := b[0]*x + z[0]
	z[0] = b[1]*x - b[3]*y + z[1]
	z[1] = b[2]*x - b[4]*y

	return y
}

// Apply runs the cascade forward over the series once, in place.
func (f *FilterState) Apply(series []float32) {
	for i, x := range series {
		for s := 0; s < f.sections; s++ {
			x = f.processSample(x, s)
		}
		series[i] = x
	}
}

// ApplyZeroPhase filters forward, then backward over the time-reversed
// series, canceling the phase delay of a single pass (like scipy filtfilt).
// State is reset before each pass; the two passes of one call belong to one
// axis and must not be interleaved with passes over another axis.
func (f *FilterState) ApplyZeroPhase(series []float32) {
	f.Reset()
	f.Apply(series)

	reverse(series)

	f.Reset()
	f.Apply(series)

	reverse(series)
}

func reverse(data []float32) {
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
}
