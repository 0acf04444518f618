// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquire converts an external trigger into fixed-rate bursts of
// tri-axial accelerometer readings.
package acquire

import (
	"context"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultDebounce is the minimum spacing between accepted trigger edges.
const DefaultDebounce = 100 * time.Millisecond

// Trigger is a debounced single-slot pending flag shared between the edge
// watcher (or the web UI's manual trigger) and the cooperative main loop.
// The flag and the debounce timestamp are updated together under one lock;
// Fire does no allocation and never blocks.
type Trigger struct {
	mu       sync.Mutex
	pending  bool
	firedAt  time.Time
	lastEdge time.Time
	debounce time.Duration
	haveEdge bool
}

// NewTrigger creates a trigger with the given debounce window.
// A zero debounce falls back to DefaultDebounce.
func NewTrigger(debounce time.Duration) *Trigger {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Trigger{debounce: debounce}
}

// Fire latches the trigger unless a previous edge arrived within the
// debounce window. It reports whether the edge was accepted.
func (t *Trigger) Fire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.haveEdge && now.Sub(t.lastEdge) <= t.debounce {
		return false
	}
	t.lastEdge = now
	t.haveEdge = true
	t.pending = true
	t.firedAt = now
	return true
}

// Consume clears and returns the pending flag together with the time the
// accepted edge arrived. Called only from the main loop.
func (t *Trigger) Consume() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pending {
		return time.Time{}, false
	}
	t.pending = false
	return t.firedAt, true
}

// WatchGPIO blocks on rising edges of the PLC trigger input and feeds them
// into the trigger until the context is canceled. The pin must already be
// configured for input with pull-down and rising-edge detection.
func WatchGPIO(ctx context.Context, pin gpio.PinIn, trig *Trigger) {
	log.Printf("trigger: watching %s for rising edges", pin.Name())

	for ctx.Err() == nil {
		if !pin.WaitForEdge(time.Second) {
			continue // timeout, re-check ctx
		}
		if pin.Read() != gpio.High {
			continue
		}
		if trig.Fire(time.Now()) {
			log.Printf("trigger: edge accepted on %s", pin.Name())
		}
	}
}
