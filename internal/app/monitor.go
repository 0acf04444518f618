// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the acquisition, DSP, upload and connectivity pieces
// into the measurement loop, and exposes the web and display surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/vibration_monitor/internal/acquire"
	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/dsp"
	"github.com/relabs-tech/vibration_monitor/internal/influx"
	"github.com/relabs-tech/vibration_monitor/internal/sensors"
	"github.com/relabs-tech/vibration_monitor/internal/wifi"
)

// Version is the firmware version reported in run metadata and on the
// status surfaces.
const Version = "2.1.0"

// defaultLoopInterval paces the idle main loop between trigger polls.
const defaultLoopInterval = 10 * time.Millisecond

// Network is the slice of the connectivity manager the monitor drives and
// observes.
type Network interface {
	Tick()
	State() wifi.State
	Connected() bool
	HasValidTime() bool
}

// RangeSetter is implemented by readers whose measurement range can be
// reconfigured at runtime. The monitor keeps the hardware range in step
// with the configuration so uploaded amplitudes match the claimed
// sensitivity.
type RangeSetter interface {
	Sensitivity() int
	SetSensitivity(int) error
}

// Monitor runs the cooperative measurement loop: it polls the connectivity
// manager, consumes trigger edges, and processes one complete
// sample-filter-transform-upload cycle per edge. Everything except the GPIO
// edge watcher runs on this single goroutine; no cycle overlaps another.
type Monitor struct {
	Reader    sensors.TriaxialReader
	Trigger   *acquire.Trigger
	Net       Network
	Uploader  *influx.Uploader
	Sequencer *influx.RunSequencer
	Status    *StatusReporter

	// Pauser suspends background networking during sampling bursts.
	Pauser acquire.Pauser

	// LoopInterval overrides the idle pacing, mainly for tests.
	LoopInterval time.Duration

	bufs    *acquire.Buffers
	scratch []float32

	lastWiFiState wifi.State
	haveWiFiState bool
}

// NewMonitor allocates the measurement buffers for the configured sample
// count.
func NewMonitor(reader sensors.TriaxialReader, trig *acquire.Trigger, net Network,
	uploader *influx.Uploader, seq *influx.RunSequencer, status *StatusReporter) (*Monitor, error) {

	cfg := config.Get()
	bufs, err := acquire.NewBuffers(cfg.SampleCount)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	return &Monitor{
		Reader:       reader,
		Trigger:      trig,
		Net:          net,
		Uploader:     uploader,
		Sequencer:    seq,
		Status:       status,
		LoopInterval: defaultLoopInterval,
		bufs:         bufs,
		scratch:      make([]float32, cfg.SampleCount),
	}, nil
}

// Run executes the main loop until the context is canceled. No error inside
// a cycle stops the loop; the monitor always returns to awaiting the next
// trigger.
func (m *Monitor) Run(ctx context.Context) error {
	log.Printf("monitor: running, %d samples at %d Hz",
		m.bufs.SampleCount(), config.Get().SampleRateHz)

	ticker := time.NewTicker(m.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("monitor: stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		m.Net.Tick()
		m.publishNetworkState()

		cfg := config.Get()
		m.applyConfig(cfg)

		if firedAt, ok := m.Trigger.Consume(); ok {
			m.runCycle(ctx, cfg, firedAt)
		}
	}
}

// applyConfig reconciles the buffers and the sensor with a changed
// configuration between cycles, never during one.
func (m *Monitor) applyConfig(cfg *config.Config) {
	if cfg.SampleCount != m.bufs.SampleCount() {
		if err := m.resize(cfg.SampleCount); err != nil {
			log.Printf("monitor: resize to %d samples: %v", cfg.SampleCount, err)
		}
	}
	if rs, ok := m.Reader.(RangeSetter); ok && rs.Sensitivity() != cfg.Sensitivity {
		if err := rs.SetSensitivity(cfg.Sensitivity); err != nil {
			log.Printf("monitor: set sensitivity %d: %v", cfg.Sensitivity, err)
		}
	}
}

// resize reallocates buffers all-or-nothing; the previous buffers stay
// valid on failure.
func (m *Monitor) resize(sampleCount int) error {
	if err := m.bufs.Resize(sampleCount); err != nil {
		return err
	}
	m.scratch = make([]float32, sampleCount)
	log.Printf("monitor: buffers resized to %d samples (FFT length %d)",
		sampleCount, m.bufs.FFTLen())
	return nil
}

// publishNetworkState pushes connectivity changes to the status surface.
func (m *Monitor) publishNetworkState() {
	state := m.Net.State()
	if m.haveWiFiState && state == m.lastWiFiState {
		return
	}
	m.lastWiFiState = state
	m.haveWiFiState = true

	m.Status.Update(func(s *Status) {
		s.WiFiState = state.String()
		s.ClockOK = m.Net.HasValidTime()
	})
}

// runCycle processes one trigger edge to completion: sample, filter,
// transform, upload, report.
func (m *Monitor) runCycle(ctx context.Context, cfg *config.Config, firedAt time.Time) {
	log.Printf("monitor: cycle started (trigger at %s)", firedAt.Format(time.RFC3339Nano))

	sampler := &acquire.Sampler{RateHz: cfg.SampleRateHz, Pauser: m.Pauser}
	res := sampler.Run(&m.bufs.Time, m.Reader)

	rate := float32(cfg.SampleRateHz)
	cutoff := float32(cfg.FilterCutoffHz)

	// One fresh filter state per axis; zero-phase passes must not be
	// interleaved across axes.
	for _, axis := range [][]float32{m.bufs.Time.X, m.bufs.Time.Y, m.bufs.Time.Z} {
		f := dsp.DesignLowPass(cutoff, rate, config.MaxFilterOrder)
		f.ApplyZeroPhase(axis)
	}

	// The transform consumes its input, so each axis goes through the
	// scratch copy; the filtered time series stays intact for the optional
	// time-domain upload.
	axes := []struct {
		in  []float32
		out []float32
	}{
		{m.bufs.Time.X, m.bufs.Spectrum.X},
		{m.bufs.Time.Y, m.bufs.Spectrum.Y},
		{m.bufs.Time.Z, m.bufs.Spectrum.Z},
	}
	for _, a := range axes {
		copy(m.scratch, a.in)
		bins, freqs := dsp.ComputeSpectrum(m.scratch, rate)
		copy(a.out, bins)
		copy(m.bufs.Spectrum.Frequencies, freqs)
	}

	run := m.Sequencer.Next()
	run.SampleCount = res.SampleCount
	run.SampleRateHz = cfg.SampleRateHz
	run.CutoffHz = cutoff
	run.Sensitivity = cfg.Sensitivity

	m.Uploader.SendTimeDomain = cfg.SendTimeDomain
	uploadErr := m.Uploader.UploadRun(ctx, run, m.bufs)
	switch {
	case uploadErr == nil:
		log.Printf("monitor: run %s complete", run.ID)
	case errors.Is(uploadErr, influx.ErrNotConnected),
		errors.Is(uploadErr, influx.ErrClockNotSynced):
		log.Printf("monitor: run %s skipped upload: %v", run.ID, uploadErr)
	default:
		log.Printf("monitor: run %s upload failed: %v", run.ID, uploadErr)
	}

	m.Status.ReportCycle(firedAt, run.ID, res.SampleCount, res.EffectiveRateHz, uploadErr)
}
