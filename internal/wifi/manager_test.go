// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wifi

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	linkUp       bool
	connectCalls int
	statusCalls  int
	apCalls      int
	apName       string
}

func (f *fakeBackend) StartConnect(ssid, password string) error {
	f.connectCalls++
	return nil
}

func (f *fakeBackend) LinkUp() bool {
	f.statusCalls++
	return f.linkUp
}
func (f *fakeBackend) StartAccessPoint(name string) error {
	f.apCalls++
	f.apName = name
	return nil
}

type fakeClock struct {
	valid     bool
	syncCalls int
	syncErr   error
}

func (f *fakeClock) Sync() error {
	f.syncCalls++
	if f.syncErr == nil {
		f.valid = true
	}
	return f.syncErr
}
func (f *fakeClock) HasValidTime() bool { return f.valid }

// testManager returns a manager with a controllable clock; advance moves
// the fake wall time.
func testManager(backend *fakeBackend, clock Clock) (*Manager, func(time.Duration)) {
	m := NewManager(backend, clock, "plant-net", "secret", "VibSensor_A1B2")
	now := time.Unix(1756600000, 0)
	m.now = func() time.Time { return now }
	return m, func(d time.Duration) { now = now.Add(d) }
}

func TestConnectSuccess(t *testing.T) {
	backend := &fakeBackend{}
	clock := &fakeClock{}
	m, _ := testManager(backend, clock)

	require.Equal(t, Disconnected, m.State())
	m.Tick()
	assert.Equal(t, Connecting, m.State())
	assert.Equal(t, 1, backend.connectCalls)

	backend.linkUp = true
	m.Tick()
	assert.Equal(t, ConnectedStation, m.State())
	assert.True(t, m.Connected())
	assert.Equal(t, 1, clock.syncCalls, "time sync attempted on connect")
	assert.True(t, m.HasValidTime())
}

func TestFallbackAfterExactlyMaxTimeouts(t *testing.T) {
	backend := &fakeBackend{}
	m, advance := testManager(backend, &fakeClock{})

	m.Tick() // Disconnected -> Connecting

	for i := 0; i < MaxAttempts-1; i++ {
		advance(ConnectTimeout)
		m.Tick()
		assert.Equal(t, Connecting, m.State(), "timeout %d restarts the attempt", i+1)
	}
	assert.Equal(t, MaxAttempts, backend.connectCalls)

	advance(ConnectTimeout)
	m.Tick()
	assert.Equal(t, AccessPointMode, m.State())
	assert.Equal(t, 1, backend.apCalls)
	assert.Equal(t, "VibSensor_A1B2", backend.apName)
	assert.False(t, m.Connected())
}

func TestAccessPointModeIsTerminal(t *testing.T) {
	backend := &fakeBackend{}
	m, advance := testManager(backend, &fakeClock{})

	m.Tick()
	for i := 0; i < MaxAttempts; i++ {
		advance(ConnectTimeout)
		m.Tick()
	}
	require.Equal(t, AccessPointMode, m.State())

	// Even a link coming up does not leave AP mode.
	backend.linkUp = true
	for i := 0; i < 10; i++ {
		advance(time.Minute)
		m.Tick()
	}
	assert.Equal(t, AccessPointMode, m.State())
	assert.Equal(t, 1, backend.apCalls)
}

func TestTimeoutJustUnderLimitDoesNotCount(t *testing.T) {
	backend := &fakeBackend{}
	m, advance := testManager(backend, &fakeClock{})

	m.Tick()
	advance(ConnectTimeout - time.Millisecond)
	m.Tick()
	assert.Equal(t, Connecting, m.State())
	assert.Equal(t, 1, backend.connectCalls, "no restart before the timeout elapses")
}

func TestLinkLossRestartsWithFreshCounter(t *testing.T) {
	backend := &fakeBackend{}
	m, advance := testManager(backend, &fakeClock{})

	// Burn two timeouts, then connect on the third attempt.
	m.Tick()
	advance(ConnectTimeout)
	m.Tick()
	advance(ConnectTimeout)
	m.Tick()
	backend.linkUp = true
	m.Tick()
	require.Equal(t, ConnectedStation, m.State())

	// Link drops: back to Connecting with a fresh attempt counter, so the
	// device survives another full round of timeouts before AP fallback.
	// The loss is seen on the next link poll.
	backend.linkUp = false
	advance(linkPollInterval)
	m.Tick()
	assert.Equal(t, Connecting, m.State())

	for i := 0; i < MaxAttempts-1; i++ {
		advance(ConnectTimeout)
		m.Tick()
		assert.Equal(t, Connecting, m.State())
	}
	advance(ConnectTimeout)
	m.Tick()
	assert.Equal(t, AccessPointMode, m.State())
}

func TestLinkPollingThrottled(t *testing.T) {
	// Tick runs every main-loop iteration; the backend check spawns a
	// process, so it must not run more often than the poll interval.
	backend := &fakeBackend{linkUp: true}
	m, advance := testManager(backend, &fakeClock{})

	m.Tick() // -> Connecting
	m.Tick() // first poll -> ConnectedStation
	require.Equal(t, ConnectedStation, m.State())
	polls := backend.statusCalls

	for i := 0; i < 50; i++ {
		m.Tick()
	}
	assert.Equal(t, polls, backend.statusCalls, "no polls inside the interval")

	advance(linkPollInterval)
	m.Tick()
	assert.Equal(t, polls+1, backend.statusCalls)
	assert.Equal(t, ConnectedStation, m.State())

	// A dropped link is still noticed within one interval.
	backend.linkUp = false
	advance(linkPollInterval)
	m.Tick()
	assert.Equal(t, Connecting, m.State())
}

func TestNoCredentialsGoesStraightToAP(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := testManager(backend, &fakeClock{})
	m.SSID = ""

	m.Tick()
	assert.Equal(t, AccessPointMode, m.State())
	assert.Zero(t, backend.connectCalls)
}

func TestTimeSyncRetriedWhileConnected(t *testing.T) {
	backend := &fakeBackend{linkUp: true}
	clock := &fakeClock{syncErr: errors.New("no route")}
	m, advance := testManager(backend, clock)

	m.Tick() // -> Connecting
	m.Tick() // -> ConnectedStation, first sync fails
	require.Equal(t, ConnectedStation, m.State())
	require.Equal(t, 1, clock.syncCalls)
	assert.False(t, m.HasValidTime())

	// Within the retry interval nothing happens.
	advance(timeSyncRetryInterval - time.Second)
	m.Tick()
	assert.Equal(t, 1, clock.syncCalls)

	// Past the interval the sync is retried; once it succeeds, retries
	// stop.
	clock.syncErr = nil
	advance(2 * time.Second)
	m.Tick()
	assert.Equal(t, 2, clock.syncCalls)
	assert.True(t, m.HasValidTime())

	advance(2 * timeSyncRetryInterval)
	m.Tick()
	assert.Equal(t, 2, clock.syncCalls)
}

func TestTimeSyncOffsetFallback(t *testing.T) {
	// System clock stuck before the sentinel epoch; clock stepping is not
	// permitted, so the measured offset must carry validity.
	stale := time.Unix(1_000_000, 0)
	s := &TimeSync{
		Servers: []string{"test.invalid"},
		now:     func() time.Time { return stale },
		query: func(string) (*ntp.Response, error) {
			return &ntp.Response{
				Stratum:       1,
				Time:          time.Unix(1_756_000_000, 0),
				ReferenceTime: time.Unix(1_756_000_000, 0),
				ClockOffset:   time.Duration(1_756_000_000-1_000_000) * time.Second,
			}, nil
		},
		setClock: func(time.Time) error { return errors.New("not permitted") },
	}

	assert.False(t, s.HasValidTime())
	require.NoError(t, s.Sync())
	assert.True(t, s.Synced())
	assert.True(t, s.HasValidTime())
	assert.Equal(t, int64(1_756_000_000), s.Now().Unix())
}

func TestTimeSyncTriesServersInOrder(t *testing.T) {
	var asked []string
	s := &TimeSync{
		Servers: []string{"a.invalid", "b.invalid"},
		now:     time.Now,
		query: func(server string) (*ntp.Response, error) {
			asked = append(asked, server)
			if server == "a.invalid" {
				return nil, errors.New("timeout")
			}
			now := time.Now()
			return &ntp.Response{Stratum: 1, Time: now, ReferenceTime: now}, nil
		},
	}

	require.NoError(t, s.Sync())
	assert.Equal(t, []string{"a.invalid", "b.invalid"}, asked)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", ConnectedStation.String())
	assert.Equal(t, "access_point", AccessPointMode.String())
}
