// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wifi

import (
	"fmt"
	"log"
	"time"

	"github.com/beevik/ntp"
)

// sentinelEpoch rejects un-synchronized power-on clock values: any wall
// clock before 2023-11-14 cannot be real. Bump over the device's
// operational lifetime.
const sentinelEpoch = 1_700_000_000

// DefaultNTPServers are queried in order until one answers.
var DefaultNTPServers = []string{"pool.ntp.org", "time.google.com"}

// TimeSync obtains wall clock time over SNTP. When the process lacks the
// privilege to step the system clock, the measured offset is applied to
// every reading instead, so Now and HasValidTime stay correct either way.
type TimeSync struct {
	Servers []string

	offset time.Duration
	synced bool

	query func(server string) (*ntp.Response, error)
	now   func() time.Time
	// setClock steps the system clock; nil means offset-only mode.
	setClock func(time.Time) error
}

// NewTimeSync creates a time sync against the default server pool.
func NewTimeSync() *TimeSync {
	return &TimeSync{
		Servers: DefaultNTPServers,
		query:   ntp.Query,
		now:     time.Now,
		setClock: func(t time.Time) error {
			return setSystemClock(t)
		},
	}
}

// Sync queries the configured servers until one responds, then applies the
// measured clock offset.
func (s *TimeSync) Sync() error {
	var lastErr error
	for _, server := range s.Servers {
		resp, err := s.query(server)
		if err != nil {
			lastErr = err
			continue
		}
		if err := resp.Validate(); err != nil {
			lastErr = err
			continue
		}

		s.offset = resp.ClockOffset
		s.synced = true

		corrected := s.now().Add(s.offset)
		if s.setClock != nil {
			if err := s.setClock(corrected); err == nil {
				// The system clock jumped; the stored offset no longer
				// applies on top of it.
				s.offset = 0
			}
		}
		log.Printf("wifi: clock synced via %s (offset %v)", server, resp.ClockOffset)
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no NTP servers configured")
	}
	return fmt.Errorf("wifi: time sync failed: %w", lastErr)
}

// Now returns the offset-corrected wall clock time.
func (s *TimeSync) Now() time.Time {
	return s.now().Add(s.offset)
}

// HasValidTime reports whether the corrected clock has passed the sentinel
// epoch. A successful sync implies validity; a pre-synced valid system
// clock (battery-backed RTC) passes too.
func (s *TimeSync) HasValidTime() bool {
	return s.Now().Unix() >= sentinelEpoch
}

// Synced reports whether an SNTP exchange has completed this power cycle.
func (s *TimeSync) Synced() bool {
	return s.synced
}
