// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package influx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/vibration_monitor/internal/acquire"
)

// Measurement names.
const (
	measurementRun       = "accelrun"
	measurementFrequency = "accelfreq"
	measurementTime      = "acceltime"
)

// Upload preconditions. They are reported distinctly from transmission
// failures: no network I/O was attempted.
var (
	ErrNotConnected   = errors.New("influx: network not connected")
	ErrClockNotSynced = errors.New("influx: wall clock not synchronized")
)

// Connectivity is the slice of the connectivity manager the uploader
// consults before touching the network.
type Connectivity interface {
	Connected() bool
	HasValidTime() bool
}

// Uploader serializes one run's results and drives the batched upload:
// run metadata first, then the spectra, then optionally the time-domain
// series. A batch failing all retries aborts whatever follows it.
type Uploader struct {
	Client *Client
	Net    Connectivity

	Operation       string
	DeviceID        string
	FirmwareVersion string
	SendTimeDomain  bool
}

// UploadRun transmits a completed measurement run.
func (u *Uploader) UploadRun(ctx context.Context, run RunContext, bufs *acquire.Buffers) error {
	if u.Net != nil {
		if !u.Net.Connected() {
			return ErrNotConnected
		}
		if !u.Net.HasValidTime() {
			return ErrClockNotSynced
		}
	}

	start := time.Now()

	if err := u.Client.WriteLines(ctx, []string{u.runMetadataLine(run, bufs)}); err != nil {
		return fmt.Errorf("run metadata: %w", err)
	}
	if err := u.Client.WriteLines(ctx, u.spectrumLines(run, &bufs.Spectrum)); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if u.SendTimeDomain {
		if err := u.Client.WriteLines(ctx, u.timeLines(run, &bufs.Time)); err != nil {
			return fmt.Errorf("time series: %w", err)
		}
	}

	log.Printf("influx: run %s uploaded in %v", run.ID, time.Since(start))
	return nil
}

// tags renders the shared tag set.
func (u *Uploader) tags(run RunContext) string {
	return fmt.Sprintf("operation=%s,device=%s,run_id=%s",
		escapeTag(u.Operation), escapeTag(u.DeviceID), escapeTag(run.ID))
}

// runMetadataLine is the single point describing the run itself.
func (u *Uploader) runMetadataLine(run RunContext, bufs *acquire.Buffers) string {
	timeDomain := 0
	if u.SendTimeDomain {
		timeDomain = 1
	}
	return fmt.Sprintf("%s,%s sample_rate=%di,sample_count=%di,fft_length=%di,cutoff=%.6f,sensitivity=%di,time_domain=%di,version=%q %d",
		measurementRun, u.tags(run),
		run.SampleRateHz, run.SampleCount, bufs.FFTLen(),
		run.CutoffHz, run.Sensitivity, timeDomain, u.FirmwareVersion,
		run.BaseTime.UnixNano())
}

// spectrumLines emits one point per frequency bin. Bin 0 (DC) is skipped;
// points are spaced 1ms apart from the base time so the bins stay ordered
// in the store.
func (u *Uploader) spectrumLines(run RunContext, spec *acquire.SpectrumBuffer) []string {
	tags := u.tags(run)
	lines := make([]string, 0, spec.NumBins()-1)
	for i := 1; i < spec.NumBins(); i++ {
		ts := run.BaseTime.Add(time.Duration(i) * time.Millisecond)
		lines = append(lines, fmt.Sprintf("%s,%s frequencies=%.6f,x_freq=%.6f,y_freq=%.6f,z_freq=%.6f %d",
			measurementFrequency, tags,
			spec.Frequencies[i], spec.X[i], spec.Y[i], spec.Z[i],
			ts.UnixNano()))
	}
	return lines
}

// timeLines emits one point per sample, timestamped at the acquisition
// cadence.
func (u *Uploader) timeLines(run RunContext, buf *acquire.AcquisitionBuffer) []string {
	tags := u.tags(run)
	interval := time.Second / time.Duration(run.SampleRateHz)
	lines := make([]string, 0, buf.SampleCount())
	for i := range buf.X {
		ts := run.BaseTime.Add(time.Duration(i) * interval)
		lines = append(lines, fmt.Sprintf("%s,%s x=%.6f,y=%.6f,z=%.6f %d",
			measurementTime, tags,
			buf.X[i], buf.Y[i], buf.Z[i],
			ts.UnixNano()))
	}
	return lines
}
