// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wifi owns the network-attach state machine: station association
// with bounded retries, fallback to a self-hosted access point, and wall
// clock synchronization once attached.
package wifi

import (
	"log"
	"time"
)

// State is the connectivity mode. It is mutated only by the manager's Tick
// and read by the uploader and the status surface.
type State int

const (
	Disconnected State = iota
	Connecting
	ConnectedStation
	AccessPointMode
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ConnectedStation:
		return "connected"
	case AccessPointMode:
		return "access_point"
	default:
		return "unknown"
	}
}

const (
	// ConnectTimeout bounds one association attempt.
	ConnectTimeout = 15 * time.Second

	// MaxAttempts timed-out attempts before falling back to AP mode.
	MaxAttempts = 3

	// timeSyncRetryInterval spaces clock sync attempts while connected
	// without a valid wall clock.
	timeSyncRetryInterval = 30 * time.Second

	// linkPollInterval spaces LinkUp checks. Tick runs every main-loop
	// iteration and the wpa_cli backend spawns a process per check, so the
	// link state is cached between polls.
	linkPollInterval = time.Second
)

// Backend performs the actual network operations. It is stateless from the
// manager's point of view; the manager owns all transition logic.
type Backend interface {
	// StartConnect begins (or restarts) station association.
	StartConnect(ssid, password string) error
	// LinkUp reports whether the station link is currently associated.
	LinkUp() bool
	// StartAccessPoint brings up the fallback AP with the given name.
	StartAccessPoint(name string) error
}

// Clock synchronizes and validates the wall clock.
type Clock interface {
	Sync() error
	HasValidTime() bool
}

// Manager drives the connectivity state machine. Tick is called once per
// main-loop iteration; it never blocks on network operations beyond what
// the backend calls themselves cost.
//
// AccessPointMode is terminal for the process lifetime: once entered, only
// a restart returns the device to station mode.
type Manager struct {
	SSID     string
	Password string
	APName   string

	backend Backend
	clock   Clock

	state        State
	attemptStart time.Time
	attempts     int
	lastSync     time.Time
	lastLinkPoll time.Time
	linkUp       bool

	timeout     time.Duration
	maxAttempts int
	now         func() time.Time

	// OnAccessPoint runs once when AP fallback is entered, on the goroutine
	// calling Tick. The captive portal hooks in here.
	OnAccessPoint func()
}

// NewManager creates a manager in the Disconnected state.
func NewManager(backend Backend, clock Clock, ssid, password, apName string) *Manager {
	return &Manager{
		SSID:        ssid,
		Password:    password,
		APName:      apName,
		backend:     backend,
		clock:       clock,
		state:       Disconnected,
		timeout:     ConnectTimeout,
		maxAttempts: MaxAttempts,
		now:         time.Now,
	}
}

// State returns the current connectivity state.
func (m *Manager) State() State {
	return m.state
}

// Connected reports whether the station link is attached and usable.
func (m *Manager) Connected() bool {
	return m.state == ConnectedStation
}

// HasValidTime reports whether the wall clock has been synchronized.
func (m *Manager) HasValidTime() bool {
	if m.clock == nil {
		return false
	}
	return m.clock.HasValidTime()
}

// Tick advances the state machine one step.
func (m *Manager) Tick() {
	switch m.state {
	case Disconnected:
		if m.SSID == "" {
			// Nothing to connect to; host the configuration AP instead.
			m.enterAccessPoint()
			return
		}
		m.startAttempt(0)

	case Connecting:
		if m.pollLink() {
			log.Printf("wifi: connected to %q after %d attempt(s)", m.SSID, m.attempts+1)
			m.state = ConnectedStation
			m.syncClock()
			return
		}
		if m.now().Sub(m.attemptStart) < m.timeout {
			return
		}
		m.attempts++
		log.Printf("wifi: attempt %d/%d timed out", m.attempts, m.maxAttempts)
		if m.attempts >= m.maxAttempts {
			m.enterAccessPoint()
			return
		}
		m.startAttempt(m.attempts)

	case ConnectedStation:
		if !m.pollLink() {
			log.Printf("wifi: link to %q lost, reconnecting", m.SSID)
			m.startAttempt(0)
			return
		}
		if m.clock != nil && !m.clock.HasValidTime() &&
			m.now().Sub(m.lastSync) >= timeSyncRetryInterval {
			m.syncClock()
		}

	case AccessPointMode:
		// Terminal for this power cycle.
	}
}

// pollLink refreshes the cached link state at most once per
// linkPollInterval.
func (m *Manager) pollLink() bool {
	now := m.now()
	if m.lastLinkPoll.IsZero() || now.Sub(m.lastLinkPoll) >= linkPollInterval {
		m.lastLinkPoll = now
		m.linkUp = m.backend.LinkUp()
	}
	return m.linkUp
}

// startAttempt (re)starts station association, keeping the given attempt
// count.
func (m *Manager) startAttempt(attempts int) {
	m.attempts = attempts
	m.attemptStart = m.now()
	m.state = Connecting
	m.lastLinkPoll = time.Time{}
	m.linkUp = false
	if err := m.backend.StartConnect(m.SSID, m.Password); err != nil {
		log.Printf("wifi: start connect: %v", err)
	}
}

func (m *Manager) enterAccessPoint() {
	log.Printf("wifi: falling back to access point %q", m.APName)
	if err := m.backend.StartAccessPoint(m.APName); err != nil {
		log.Printf("wifi: start access point: %v", err)
	}
	m.state = AccessPointMode
	if m.OnAccessPoint != nil {
		m.OnAccessPoint()
	}
}

func (m *Manager) syncClock() {
	m.lastSync = m.now()
	if m.clock == nil {
		return
	}
	if err := m.clock.Sync(); err != nil {
		log.Printf("wifi: time sync: %v", err)
	}
}
