// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the ADXL313 accelerometer driver over SPI.
package sensors

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// ADXL313 register addresses.
const (
	RegDevID      = 0x00
	RegBWRate     = 0x2C
	RegPowerCtl   = 0x2D
	RegDataFormat = 0x31
	RegDataX0     = 0x32

	readBit  = 0x80
	multiBit = 0x40

	// DEVID response for the ADXL313.
	deviceID = 0xAD

	// POWER_CTL: I2C disable (bit 6) + measure mode (bit 3).
	powerCtlMeasure = 0x48

	// BW_RATE value for 3200 Hz output data rate.
	DataRate3200Hz = 0x0F
)

// Sensitivity ranges (DATA_FORMAT bits 1:0).
const (
	RangeHalfG = 0 // ±0.5g
	Range1G    = 1 // ±1g
	Range2G    = 2 // ±2g
	Range4G    = 3 // ±4g
)

// scaleG maps a sensitivity range to g per LSB (10-bit mode, 1024 counts
// full scale).
var scaleG = [4]float32{
	0.5 / 512.0,
	1.0 / 512.0,
	2.0 / 512.0,
	4.0 / 512.0,
}

// TriaxialReader reads one tri-axial acceleration sample in physical units
// of g. Implementations that fail must return an error; callers decide how
// to fill the slot.
type TriaxialReader interface {
	ReadAccel() (x, y, z float32, err error)
}

// ADXL313 drives the accelerometer over SPI mode 3.
type ADXL313 struct {
	port        spi.PortCloser
	conn        spi.Conn
	sensitivity int
	scale       float32
}

// NewADXL313 opens the SPI device, verifies the device ID, and configures
// measurement mode at the maximum data rate.
func NewADXL313(device string, speedHz int64, sensitivity int) (*ADXL313, error) {
	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("adxl313: SPI open (%s): %w", device, err)
	}

	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("adxl313: SPI connect: %w", err)
	}

	d := &ADXL313{port: port, conn: conn}

	id, err := d.readReg(RegDevID)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("adxl313: device ID read: %w", err)
	}
	if id != deviceID {
		port.Close()
		return nil, fmt.Errorf("adxl313: unexpected device ID 0x%02X (want 0x%02X), check wiring", id, deviceID)
	}
	log.Printf("adxl313: device ID 0x%02X", id)

	if err := d.writeReg(RegPowerCtl, powerCtlMeasure); err != nil {
		port.Close()
		return nil, fmt.Errorf("adxl313: enable measurement: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := d.SetSensitivity(sensitivity); err != nil {
		port.Close()
		return nil, err
	}
	if err := d.SetDataRate(DataRate3200Hz); err != nil {
		port.Close()
		return nil, err
	}

	log.Println("adxl313: initialized")
	return d, nil
}

// SetSensitivity selects the measurement range. Out-of-range values are
// capped at ±4g.
func (d *ADXL313) SetSensitivity(r int) error {
	if r < RangeHalfG {
		r = RangeHalfG
	}
	if r > Range4G {
		r = Range4G
	}

	// DATA_FORMAT: 10-bit mode (FULL_RES clear), range in bits 1:0.
	if err := d.writeReg(RegDataFormat, byte(r)); err != nil {
		return fmt.Errorf("adxl313: set sensitivity: %w", err)
	}
	d.sensitivity = r
	d.scale = scaleG[r]
	log.Printf("adxl313: sensitivity range %d (%.6f g/LSB)", r, d.scale)
	return nil
}

// Sensitivity returns the active range index.
func (d *ADXL313) Sensitivity() int {
	return d.sensitivity
}

// SetDataRate writes the BW_RATE register.
func (d *ADXL313) SetDataRate(rate byte) error {
	if err := d.writeReg(RegBWRate, rate); err != nil {
		return fmt.Errorf("adxl313: set data rate: %w", err)
	}
	return nil
}

// ReadRaw reads the six data registers in one burst and combines them
// little-endian into signed counts.
func (d *ADXL313) ReadRaw() (x, y, z int16, err error) {
	var buf [6]byte
	if err := d.readBurst(RegDataX0, buf[:]); err != nil {
		return 0, 0, 0, err
	}

	x = int16(uint16(buf[1])<<8 | uint16(buf[0]))
	y = int16(uint16(buf[3])<<8 | uint16(buf[2]))
	z = int16(uint16(buf[5])<<8 | uint16(buf[4]))
	return x, y, z, nil
}

// ReadAccel reads one sample and converts it to g.
func (d *ADXL313) ReadAccel() (x, y, z float32, err error) {
	rx, ry, rz, err := d.ReadRaw()
	if err != nil {
		return 0, 0, 0, err
	}
	return float32(rx) * d.scale, float32(ry) * d.scale, float32(rz) * d.scale, nil
}

// ReadRegister exposes raw register reads for the debug surface.
func (d *ADXL313) ReadRegister(reg byte) (byte, error) {
	return d.readReg(reg)
}

// WriteRegister exposes raw register writes for the debug surface. Callers
// are responsible for not breaking the measurement configuration.
func (d *ADXL313) WriteRegister(reg, value byte) error {
	return d.writeReg(reg, value)
}

// IsConnected re-reads the device ID.
func (d *ADXL313) IsConnected() bool {
	id, err := d.readReg(RegDevID)
	return err == nil && id == deviceID
}

// Close releases the SPI port.
func (d *ADXL313) Close() error {
	return d.port.Close()
}

// RangeG returns the full-scale range in g for a sensitivity index.
func RangeG(sensitivity int) float32 {
	switch sensitivity {
	case RangeHalfG:
		return 0.5
	case Range1G:
		return 1.0
	case Range4G:
		return 4.0
	default:
		return 2.0
	}
}

func (d *ADXL313) writeReg(reg, value byte) error {
	// Write: bit 7 clear.
	w := []byte{reg & 0x3F, value}
	r := make([]byte, len(w))
	return d.conn.Tx(w, r)
}

func (d *ADXL313) readReg(reg byte) (byte, error) {
	w := []byte{reg | readBit, 0x00}
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (d *ADXL313) readBurst(reg byte, out []byte) error {
	w := make([]byte, len(out)+1)
	w[0] = reg | readBit | multiBit
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return err
	}
	copy(out, r[1:])
	return nil
}
