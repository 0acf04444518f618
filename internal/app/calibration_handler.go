// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// offsetLSBPerG converts a measured bias in g to ADXL313 offset register
// counts. The offset registers weigh 3.9 mg per LSB.
const offsetLSBPerG = 1.0 / 0.0039

// calibrationSamples per axis; at 100ms spacing one run takes ~5s.
const calibrationSamples = 50

// OffsetTarget is the slice of the accelerometer driver the calibration
// needs: sample reads plus access to the offset registers.
type OffsetTarget interface {
	ReadAccel() (x, y, z float32, err error)
	WriteRegister(reg, value byte) error
}

// ADXL313 offset register addresses.
const (
	regOfsX = 0x1E
	regOfsY = 0x1F
	regOfsZ = 0x20
)

// CalibrationSession walks the operator through a flat-and-still offset
// calibration over a websocket: collect samples, compute the per-axis bias
// against expected gravity (0, 0, +1g), and program the offset registers.
type CalibrationSession struct {
	Conn   *websocket.Conn
	Device OffsetTarget

	results CalibrationResult
}

// CalibrationResult is sent to the UI and kept for diagnostics.
type CalibrationResult struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	BiasX float64 `json:"bias_x"` // g
	BiasY float64 `json:"bias_y"`
	BiasZ float64 `json:"bias_z"`

	OffsetRegX int8 `json:"offset_reg_x"`
	OffsetRegY int8 `json:"offset_reg_y"`
	OffsetRegZ int8 `json:"offset_reg_z"`

	TotalSamples int     `json:"total_samples"`
	AvgStdDev    float64 `json:"avg_std_dev"`
	Confidence   float64 `json:"confidence"`
}

type calibrationMessage struct {
	Action string `json:"action"` // "start", "cancel"
}

type calibrationResponse struct {
	Type     string             `json:"type"` // "phase", "progress", "complete", "error"
	Phase    string             `json:"phase,omitempty"`
	Progress float64            `json:"progress,omitempty"`
	Message  string             `json:"message,omitempty"`
	Result   *CalibrationResult `json:"result,omitempty"`
}

// CalibrationHandler serves the offset calibration websocket for the given
// device.
func CalibrationHandler(device OffsetTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("calibration: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &CalibrationSession{
			Conn:   conn,
			Device: device,
			results: CalibrationResult{
				Version:   1,
				Timestamp: time.Now(),
			},
		}

		for {
			var msg calibrationMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("calibration: websocket read error: %v", err)
				return
			}

			switch msg.Action {
			case "start":
				if err := session.run(); err != nil {
					session.sendError(err.Error())
				}
			case "cancel":
				log.Println("calibration: cancelled by user")
				return
			default:
				session.sendError(fmt.Sprintf("unknown action: %s", msg.Action))
			}
		}
	}
}

// run performs one calibration pass. The device must be mounted flat and
// still; Z sees +1g, X and Y see zero.
func (s *CalibrationSession) run() error {
	s.sendPhase("collect")
	log.Println("calibration: collecting samples")

	samples := make([][3]float64, 0, calibrationSamples)
	for i := 0; i < calibrationSamples; i++ {
		x, y, z, err := s.Device.ReadAccel()
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, [3]float64{float64(x), float64(y), float64(z)})
		s.sendProgress(float64(i+1) / calibrationSamples * 100)
		time.Sleep(100 * time.Millisecond)
	}

	s.results.BiasX = mean(samples, 0)
	s.results.BiasY = mean(samples, 1)
	s.results.BiasZ = mean(samples, 2) - 1.0
	s.results.TotalSamples = len(samples)
	s.results.AvgStdDev = (stddev(samples, 0) + stddev(samples, 1) + stddev(samples, 2)) / 3.0
	s.results.Confidence = 100.0 / (1.0 + s.results.AvgStdDev*100.0)

	// The offset registers are subtracted from the output, hence the
	// negated bias.
	s.results.OffsetRegX = offsetCounts(-s.results.BiasX)
	s.results.OffsetRegY = offsetCounts(-s.results.BiasY)
	s.results.OffsetRegZ = offsetCounts(-s.results.BiasZ)

	s.sendPhase("program")
	if err := s.Device.WriteRegister(regOfsX, byte(s.results.OffsetRegX)); err != nil {
		return fmt.Errorf("program OFSX: %w", err)
	}
	if err := s.Device.WriteRegister(regOfsY, byte(s.results.OffsetRegY)); err != nil {
		return fmt.Errorf("program OFSY: %w", err)
	}
	if err := s.Device.WriteRegister(regOfsZ, byte(s.results.OffsetRegZ)); err != nil {
		return fmt.Errorf("program OFSZ: %w", err)
	}

	log.Printf("calibration: bias x=%.4f y=%.4f z=%.4f g, offsets %d/%d/%d",
		s.results.BiasX, s.results.BiasY, s.results.BiasZ,
		s.results.OffsetRegX, s.results.OffsetRegY, s.results.OffsetRegZ)

	return s.send(calibrationResponse{Type: "complete", Result: &s.results})
}

// offsetCounts converts g to a clamped signed offset register value.
func offsetCounts(g float64) int8 {
	counts := math.Round(g * offsetLSBPerG)
	if counts > 127 {
		counts = 127
	}
	if counts < -128 {
		counts = -128
	}
	return int8(counts)
}

func (s *CalibrationSession) sendPhase(phase string) {
	s.send(calibrationResponse{Type: "phase", Phase: phase})
}

func (s *CalibrationSession) sendProgress(progress float64) {
	s.send(calibrationResponse{Type: "progress", Progress: progress})
}

func (s *CalibrationSession) sendError(message string) {
	log.Printf("calibration: %s", message)
	s.send(calibrationResponse{Type: "error", Message: message})
}

func (s *CalibrationSession) send(resp calibrationResponse) error {
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("calibration: send error: %v", err)
		return err
	}
	return nil
}

func mean(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range data {
		sum += d[axis]
	}
	return sum / float64(len(data))
}

func stddev(data [][3]float64, axis int) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data, axis)
	sum := 0.0
	for _, d := range data {
		diff := d[axis] - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(data)-1))
}
