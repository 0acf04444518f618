// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package influx serializes measurement runs into InfluxDB 2.x line
// protocol and uploads them in bounded, retried batches.
package influx

import (
	"fmt"
	"time"
)

// RunContext identifies one trigger-to-upload cycle. It is created once per
// trigger, consumed by the uploader, and discarded afterwards.
type RunContext struct {
	ID       string
	BaseTime time.Time

	SampleCount  int
	SampleRateHz int
	CutoffHz     float32
	Sensitivity  int
}

// RunSequencer issues run contexts with strictly increasing base
// timestamps. If the wall clock returns a non-increasing value between two
// runs, the new base time is forced to previous + 1ns, so run identifiers
// stay distinct and ordered even under a coarse or momentarily frozen
// clock.
type RunSequencer struct {
	deviceID string
	seq      uint32
	lastNano int64
	now      func() time.Time
}

// NewRunSequencer creates a sequencer for the given device identifier.
func NewRunSequencer(deviceID string) *RunSequencer {
	return &RunSequencer{deviceID: deviceID, now: time.Now}
}

// Next returns a fresh run context. The caller fills in the acquisition
// parameters before handing it to the uploader.
func (s *RunSequencer) Next() RunContext {
	n := s.now().UnixNano()
	if n <= s.lastNano {
		n = s.lastNano + 1
	}
	s.lastNano = n
	s.seq++

	base := time.Unix(0, n)
	return RunContext{
		ID:       fmt.Sprintf("%s-%d-%d", s.deviceID, base.Unix(), s.seq),
		BaseTime: base,
	}
}
