// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerDebounce(t *testing.T) {
	trig := NewTrigger(100 * time.Millisecond)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, trig.Fire(base))
	// Edges inside the debounce window are rejected.
	assert.False(t, trig.Fire(base.Add(50*time.Millisecond)))
	assert.False(t, trig.Fire(base.Add(100*time.Millisecond)))
	// Past the window the next edge is accepted again.
	assert.True(t, trig.Fire(base.Add(101*time.Millisecond)))
}

func TestTriggerConsumeClearsPending(t *testing.T) {
	trig := NewTrigger(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, ok := trig.Consume()
	assert.False(t, ok, "nothing pending before any edge")

	require.True(t, trig.Fire(base))
	firedAt, ok := trig.Consume()
	require.True(t, ok)
	assert.Equal(t, base, firedAt)

	_, ok = trig.Consume()
	assert.False(t, ok, "consume must clear the flag")
}

func TestTriggerLatchesDuringCycle(t *testing.T) {
	// An edge arriving while a measurement cycle runs stays latched and is
	// served by the next Consume, it is never dropped.
	trig := NewTrigger(10 * time.Millisecond)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, trig.Fire(base))
	_, ok := trig.Consume()
	require.True(t, ok)

	require.True(t, trig.Fire(base.Add(500*time.Millisecond)))
	// Re-firing while pending does not double-latch; one Consume drains it.
	trig.Fire(base.Add(600 * time.Millisecond))
	_, ok = trig.Consume()
	assert.True(t, ok)
	_, ok = trig.Consume()
	assert.False(t, ok)
}

type fakeReader struct {
	calls   int
	failAt  map[int]bool
	x, y, z float32
}

func (f *fakeReader) ReadAccel() (float32, float32, float32, error) {
	f.calls++
	if f.failAt[f.calls] {
		return 0, 0, 0, errors.New("bus error")
	}
	return f.x, f.y, f.z, nil
}

type countingPauser struct {
	paused, resumed int
}

func (p *countingPauser) Pause()  { p.paused++ }
func (p *countingPauser) Resume() { p.resumed++ }

func TestSamplerFillsFullCount(t *testing.T) {
	buf, err := NewBuffers(64)
	require.NoError(t, err)

	pauser := &countingPauser{}
	s := &Sampler{RateHz: 8000, Pauser: pauser}
	reader := &fakeReader{x: 0.5, y: -0.25, z: 1.0}

	res := s.Run(&buf.Time, reader)

	assert.Equal(t, 64, res.SampleCount)
	assert.Equal(t, 64, reader.calls)
	assert.Equal(t, 1, pauser.paused)
	assert.Equal(t, 1, pauser.resumed)
	for i := range buf.Time.X {
		assert.Equal(t, float32(0.5), buf.Time.X[i])
		assert.Equal(t, float32(-0.25), buf.Time.Y[i])
		assert.Equal(t, float32(1.0), buf.Time.Z[i])
	}
}

func TestSamplerZeroFillsFailedReads(t *testing.T) {
	buf, err := NewBuffers(8)
	require.NoError(t, err)
	// Pre-fill with garbage to prove failed slots are overwritten.
	for i := range buf.Time.X {
		buf.Time.X[i] = 99
	}

	s := &Sampler{RateHz: 8000}
	reader := &fakeReader{x: 1, y: 1, z: 1, failAt: map[int]bool{3: true, 7: true}}

	res := s.Run(&buf.Time, reader)

	assert.Equal(t, 8, res.SampleCount)
	for i := range buf.Time.X {
		want := float32(1)
		if i == 2 || i == 6 {
			want = 0
		}
		assert.Equal(t, want, buf.Time.X[i], "sample %d", i)
	}
}

func TestSamplerTiming(t *testing.T) {
	buf, err := NewBuffers(100)
	require.NoError(t, err)

	s := &Sampler{RateHz: 1000}
	res := s.Run(&buf.Time, &fakeReader{})

	// 100 samples at 1 kHz should take on the order of 100ms; allow slack
	// for scheduling but catch a sampler that ignores the pacing entirely.
	assert.GreaterOrEqual(t, res.Duration, 90*time.Millisecond)
	assert.Less(t, res.Duration, 500*time.Millisecond)
}

func TestNewBuffersBounds(t *testing.T) {
	_, err := NewBuffers(0)
	assert.Error(t, err)
	_, err = NewBuffers(8001)
	assert.Error(t, err)

	b, err := NewBuffers(1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, b.SampleCount())
	assert.Equal(t, 1024, b.FFTLen(), "padded to next power of two")
	assert.Equal(t, 513, b.Spectrum.NumBins())
	assert.Len(t, b.Time.X, 1000)
}

func TestBuffersResizeKeepsOldOnFailure(t *testing.T) {
	b, err := NewBuffers(256)
	require.NoError(t, err)

	require.Error(t, b.Resize(0))
	assert.Equal(t, 256, b.SampleCount())
	assert.Len(t, b.Time.Z, 256)

	require.NoError(t, b.Resize(512))
	assert.Equal(t, 512, b.SampleCount())
	assert.Len(t, b.Spectrum.Frequencies, 257)
}
