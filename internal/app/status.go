// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/vibration_monitor/internal/config"
)

// Status is the device snapshot shown on the display, the web UI and the
// MQTT status topic.
type Status struct {
	DeviceID  string `json:"device_id"`
	Operation string `json:"operation"`
	Version   string `json:"version"`

	WiFiState string `json:"wifi_state"`
	ClockOK   bool   `json:"clock_ok"`

	LastTrigger     time.Time `json:"last_trigger,omitempty"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	SampleCount     int       `json:"sample_count"`
	EffectiveRateHz float64   `json:"effective_rate_hz,omitempty"`
	UploadOK        bool      `json:"upload_ok"`
	UploadError     string    `json:"upload_error,omitempty"`
	RunsCompleted   int       `json:"runs_completed"`
}

// StatusReporter keeps the latest status and fans it out to MQTT and any
// connected websocket clients. All methods are safe for concurrent use.
type StatusReporter struct {
	mu     sync.RWMutex
	status Status

	client mqtt.Client
	topic  string

	paused  bool
	pending *Status

	wsMu sync.Mutex
	ws   map[*websocket.Conn]bool
}

// NewStatusReporter connects to the configured MQTT broker. A broker that
// is unreachable or unconfigured degrades to web-only status reporting.
func NewStatusReporter(cfg config.MQTTConfig, initial Status) *StatusReporter {
	r := &StatusReporter{
		status: initial,
		topic:  cfg.StatusTopic,
		ws:     make(map[*websocket.Conn]bool),
	}

	if cfg.Broker == "" {
		log.Println("status: no MQTT broker configured")
		return r
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("status: MQTT connect error: %v", token.Error())
		return r
	}
	r.client = client
	log.Printf("status: connected to MQTT broker at %s", cfg.Broker)
	return r
}

// Get returns a copy of the latest status.
func (r *StatusReporter) Get() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Update applies fn to the status under the lock and publishes the result.
func (r *StatusReporter) Update(fn func(*Status)) {
	r.mu.Lock()
	fn(&r.status)
	snapshot := r.status
	if r.paused {
		r.pending = &snapshot
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.publish(snapshot)
}

// Pause holds outbound publishes so no network traffic competes with a
// sampling burst. Updates still land in the snapshot; the latest one is
// flushed on Resume.
func (r *StatusReporter) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

// Resume re-enables publishing and flushes the newest deferred update.
func (r *StatusReporter) Resume() {
	r.mu.Lock()
	r.paused = false
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pending != nil {
		r.publish(*pending)
	}
}

// ReportCycle records the outcome of one trigger-to-upload cycle.
func (r *StatusReporter) ReportCycle(triggeredAt time.Time, runID string, sampleCount int, rateHz float64, uploadErr error) {
	r.Update(func(s *Status) {
		s.LastTrigger = triggeredAt
		s.LastRunID = runID
		s.SampleCount = sampleCount
		s.EffectiveRateHz = rateHz
		s.UploadOK = uploadErr == nil
		s.UploadError = ""
		if uploadErr != nil {
			s.UploadError = uploadErr.Error()
		}
		s.RunsCompleted++
	})
}

func (r *StatusReporter) publish(s Status) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Printf("status: marshal error: %v", err)
		return
	}

	if r.client != nil && r.topic != "" {
		if token := r.client.Publish(r.topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("status: MQTT publish error: %v", token.Error())
		}
	}

	r.wsMu.Lock()
	for conn := range r.ws {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(r.ws, conn)
		}
	}
	r.wsMu.Unlock()
}

// AddWebSocket registers a websocket client; it receives the current status
// immediately and every update afterwards until the write fails.
func (r *StatusReporter) AddWebSocket(conn *websocket.Conn) {
	payload, err := json.Marshal(r.Get())
	if err == nil {
		conn.WriteMessage(websocket.TextMessage, payload)
	}

	r.wsMu.Lock()
	r.ws[conn] = true
	r.wsMu.Unlock()
}

// Close disconnects MQTT and drops websocket clients.
func (r *StatusReporter) Close() {
	if r.client != nil {
		r.client.Disconnect(250)
	}
	r.wsMu.Lock()
	for conn := range r.ws {
		conn.Close()
	}
	r.ws = make(map[*websocket.Conn]bool)
	r.wsMu.Unlock()
}
