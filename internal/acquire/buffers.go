package acquire

import (
	"fmt"

	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/dsp"
)

// AcquisitionBuffer holds one burst of tri-axial time-domain samples.
// The three slices always have identical length and are owned exclusively
// by the measurement cycle currently executing.
type AcquisitionBuffer struct {
	X, Y, Z []float32
}

// SampleCount returns the configured burst length.
func (b *AcquisitionBuffer) SampleCount() int {
	return len(b.X)
}

// SpectrumBuffer holds the single-sided magnitude spectra of one burst plus
// the bin-index → frequency mapping.
type SpectrumBuffer struct {
	X, Y, Z     []float32
	Frequencies []float32
}

// NumBins returns the number of frequency bins (fftLen/2 + 1).
func (b *SpectrumBuffer) NumBins() int {
	return len(b.Frequencies)
}

// Buffers bundles the acquisition and spectrum storage sized for one sample
// count. They are reused across runs and reallocated only when the
// configured sample count changes.
type Buffers struct {
	Time     AcquisitionBuffer
	Spectrum SpectrumBuffer

	sampleCount int
	fftLen      int
}

// NewBuffers allocates all buffers for the given sample count, all-or-nothing.
func NewBuffers(sampleCount int) (*Buffers, error) {
	if sampleCount < 1 || sampleCount > config.MaxSampleCount {
		return nil, fmt.Errorf("sample count %d out of range 1-%d", sampleCount, config.MaxSampleCount)
	}

	fftLen := dsp.NextPowerOfTwo(sampleCount)
	numBins := fftLen/2 + 1

	b := &Buffers{
		sampleCount: sampleCount,
		fftLen:      fftLen,
	}
	b.Time.X = make([]float32, sampleCount)
	b.Time.Y = make([]float32, sampleCount)
	b.Time.Z = make([]float32, sampleCount)
	b.Spectrum.X = make([]float32, numBins)
	b.Spectrum.Y = make([]float32, numBins)
	b.Spectrum.Z = make([]float32, numBins)
	b.Spectrum.Frequencies = make([]float32, numBins)

	return b, nil
}

// SampleCount returns the sample count the buffers were sized for.
func (b *Buffers) SampleCount() int {
	return b.sampleCount
}

// FFTLen returns the padded FFT length for the current sample count.
func (b *Buffers) FFTLen() int {
	return b.fftLen
}

// Resize reallocates for a new sample count. On failure the receiver keeps
// its previous buffers untouched.
func (b *Buffers) Resize(sampleCount int) error {
	if sampleCount == b.sampleCount {
		return nil
	}
	fresh, err := NewBuffers(sampleCount)
	if err != nil {
		return err
	}
	*b = *fresh
	return nil
}
