package dsp

import (
	"github.com/chewxy/math32"
)

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float32 {
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math32.Cos(2*math32.Pi*float32(i)/float32(n-1)))
	}
	return w
}

// ComputeSpectrum computes the single-sided magnitude spectrum of the series.
//
// The series is zero-padded to the next power of two, Hann-windowed, and
// transformed with an in-place radix-2 complex FFT. Magnitudes are scaled by
// 2/fftLen with the DC and Nyquist bins halved (they are not mirrored and
// must not be double-counted). The returned frequencies use the padded FFT
// length, not the raw sample count.
//
// The input series is consumed destructively; callers that still need the
// time-domain data must pass a copy.
func ComputeSpectrum(series []float32, sampleRateHz float32) (bins, frequencies []float32) {
	fftLen := NextPowerOfTwo(len(series))

	// Interleaved complex: real = windowed input (zero-padded), imag = 0.
	data := make([]float32, fftLen*2)
	window := HannWindow(fftLen)
	for i := 0; i < len(series); i++ {
		data[i*2] = series[i] * window[i]
	}

	fftRadix2(data, fftLen)
	bitReverse(data, fftLen)

	numBins := fftLen/2 + 1
	scale := 2 / float32(fftLen)

	bins = make([]float32, numBins)
	for i := 0; i < numBins; i++ {
		re := data[i*2]
		im := data[i*2+1]
		bins[i] = math32.Sqrt(re*re+im*im) * scale
	}

	// DC and Nyquist components are not doubled.
	bins[0] /= 2
	if numBins > 1 {
		bins[numBins-1] /= 2
	}

	frequencies = make([]float32, numBins)
	for i := range frequencies {
		frequencies[i] = BinToFrequency(i, fftLen, sampleRateHz)
	}

	return bins, frequencies
}

// BinToFrequency maps a bin index to its frequency in Hz for an FFT of
// fftLen points.
func BinToFrequency(binIndex, fftLen int, sampleRateHz float32) float32 {
	return float32(binIndex) * sampleRateHz / float32(fftLen)
}

// fftRadix2 performs an in-place decimation-in-frequency radix-2 FFT over
// interleaved complex data. Output is in bit-reversed order; callers follow
// with bitReverse.
func fftRadix2(data []float32, n int) {
	for size := n; size > 1; size >>= 1 {
		half := size / 2
		step := n / size
		for base := 0; base < n; base += size {
			for j := 0; j < half; j++ {
				ang := -2 * math32.Pi * float32(j*step) / float32(n)
				wr := math32.Cos(ang)
				wi := math32.Sin(ang)

				even := (base + j) * 2
				odd := (base + j + half) * 2

				er, ei := data[even], data[even+1]
				or, oi := data[odd], data[odd+1]

				data[even] = er + or
				data[even+1] = ei + oi

				tr := er - or
				ti := ei - oi
				data[odd] = tr*wr - ti*wi
				data[odd+1] = tr*wi + ti*wr
			}
		}
	}
}

// bitReverse reorders interleaved complex data from bit-reversed to natural
// order.
func bitReverse(data []float32, n int) {
	for i, j := 0, 0; i < n; i++ {
		if i < j {
			data[i*2], data[j*2] = data[j*2], data[i*2]
			data[i*2+1], data[j*2+1] = data[j*2+1], data[i*2+1]
		}
		mask := n >> 1
		for j&mask != 0 {
			j &^= mask
			mask >>= 1
		}
		j |= mask
	}
}
