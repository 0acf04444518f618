// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vibration_monitor/internal/acquire"
	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/influx"
	"github.com/relabs-tech/vibration_monitor/internal/wifi"
)

var configInitOnce sync.Once

// initTestConfig installs a small, fast measurement configuration.
func initTestConfig(t *testing.T) {
	t.Helper()
	configInitOnce.Do(func() {
		path := filepath.Join(os.TempDir(), "vibmonitor_test_config.yaml")
		os.Remove(path)
		if err := config.InitGlobal(path); err != nil {
			t.Fatalf("config init: %v", err)
		}
	})

	cfg := config.Default()
	cfg.SampleCount = 8
	cfg.SampleRateHz = 8
	cfg.FilterCutoffHz = 2
	require.NoError(t, config.Replace(cfg))
}

type zeroReader struct{}

func (zeroReader) ReadAccel() (float32, float32, float32, error) { return 0, 0, 0, nil }

type stubNetwork struct {
	state     wifi.State
	timeValid bool
	ticks     int
}

func (n *stubNetwork) Tick()              { n.ticks++ }
func (n *stubNetwork) State() wifi.State  { return n.state }
func (n *stubNetwork) Connected() bool    { return n.state == wifi.ConnectedStation }
func (n *stubNetwork) HasValidTime() bool { return n.timeValid }

type uploadCapture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *uploadCapture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(b))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *uploadCapture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

func newTestMonitor(t *testing.T, net *stubNetwork, srvURL string) (*Monitor, *StatusReporter) {
	t.Helper()

	client := influx.NewClient(config.InfluxConfig{URL: srvURL, Token: "tok", Org: "o", Bucket: "b"})
	uploader := &influx.Uploader{
		Client:          client,
		Net:             net,
		Operation:       "L9OP600",
		DeviceID:        "A1B2",
		FirmwareVersion: Version,
	}
	reporter := NewStatusReporter(config.MQTTConfig{}, Status{DeviceID: "A1B2"})

	m, err := NewMonitor(zeroReader{}, acquire.NewTrigger(0), net,
		uploader, influx.NewRunSequencer("A1B2"), reporter)
	require.NoError(t, err)
	return m, reporter
}

func TestZeroInputCycleProducesZeroSpectrum(t *testing.T) {
	initTestConfig(t)

	cap := &uploadCapture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	net := &stubNetwork{state: wifi.ConnectedStation, timeValid: true}
	m, reporter := newTestMonitor(t, net, srv.URL)

	firedAt := time.Now()
	m.runCycle(context.Background(), config.Get(), firedAt)

	// 8 samples pad to an 8-point FFT: 5 bins at 1 Hz spacing.
	require.Equal(t, 5, m.bufs.Spectrum.NumBins())
	for i, want := range []float32{0, 1, 2, 3, 4} {
		assert.Equal(t, want, m.bufs.Spectrum.Frequencies[i])
	}
	for i := 0; i < 5; i++ {
		assert.Zero(t, m.bufs.Spectrum.X[i])
		assert.Zero(t, m.bufs.Spectrum.Y[i])
		assert.Zero(t, m.bufs.Spectrum.Z[i])
	}

	// Metadata batch plus spectrum batch; time domain is off by default.
	bodies := cap.all()
	require.Len(t, bodies, 2)
	assert.True(t, strings.HasPrefix(bodies[0], "accelrun,"))
	assert.Len(t, strings.Split(bodies[1], "\n"), 4, "5 bins minus the DC bin")

	s := reporter.Get()
	assert.True(t, s.UploadOK)
	assert.Equal(t, firedAt, s.LastTrigger)
	assert.Equal(t, 8, s.SampleCount)
	assert.Equal(t, 1, s.RunsCompleted)
	assert.Contains(t, s.LastRunID, "A1B2-")
}

func TestCycleReportsSkippedUploadDistinctly(t *testing.T) {
	initTestConfig(t)

	cap := &uploadCapture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	// Connected but the clock never synced: the upload is skipped, not
	// attempted, and the loop keeps going.
	net := &stubNetwork{state: wifi.ConnectedStation, timeValid: false}
	m, reporter := newTestMonitor(t, net, srv.URL)

	m.runCycle(context.Background(), config.Get(), time.Now())

	assert.Empty(t, cap.all(), "no network I/O without a valid clock")
	s := reporter.Get()
	assert.False(t, s.UploadOK)
	assert.Contains(t, s.UploadError, "clock")
	assert.Equal(t, 1, s.RunsCompleted)
}

func TestRunConsumesTriggerAndStops(t *testing.T) {
	initTestConfig(t)

	cap := &uploadCapture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	net := &stubNetwork{state: wifi.ConnectedStation, timeValid: true}
	m, reporter := newTestMonitor(t, net, srv.URL)
	m.LoopInterval = time.Millisecond

	require.True(t, m.Trigger.Fire(time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Greater(t, net.ticks, 1, "connectivity polled every iteration")
	assert.Equal(t, 1, reporter.Get().RunsCompleted)
	_, pending := m.Trigger.Consume()
	assert.False(t, pending, "trigger consumed by the loop")
}

type rangeReader struct {
	zeroReader
	sensitivity int
	sets        []int
}

func (r *rangeReader) Sensitivity() int { return r.sensitivity }
func (r *rangeReader) SetSensitivity(v int) error {
	r.sets = append(r.sets, v)
	r.sensitivity = v
	return nil
}

func TestSensitivityChangeReachesSensor(t *testing.T) {
	initTestConfig(t)

	srv := httptest.NewServer((&uploadCapture{}).handler())
	defer srv.Close()

	net := &stubNetwork{state: wifi.ConnectedStation, timeValid: true}
	m, _ := newTestMonitor(t, net, srv.URL)
	reader := &rangeReader{sensitivity: 2}
	m.Reader = reader

	// A changed range must be written to the device, not just stamped
	// into the run metadata.
	cfg := *config.Get()
	cfg.Sensitivity = 3
	m.applyConfig(&cfg)
	assert.Equal(t, []int{3}, reader.sets)

	// An unchanged configuration does not touch the device again.
	m.applyConfig(&cfg)
	assert.Equal(t, []int{3}, reader.sets)
}

func TestResizeFollowsConfigChange(t *testing.T) {
	initTestConfig(t)

	net := &stubNetwork{state: wifi.ConnectedStation, timeValid: true}
	srv := httptest.NewServer((&uploadCapture{}).handler())
	defer srv.Close()

	m, _ := newTestMonitor(t, net, srv.URL)
	require.Equal(t, 8, m.bufs.SampleCount())

	require.NoError(t, m.resize(16))
	assert.Equal(t, 16, m.bufs.SampleCount())
	assert.Len(t, m.scratch, 16)
	assert.Equal(t, 9, m.bufs.Spectrum.NumBins())

	// A failed resize keeps the previous buffers.
	require.Error(t, m.resize(0))
	assert.Equal(t, 16, m.bufs.SampleCount())
}
