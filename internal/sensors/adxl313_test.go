// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

func playbackDevice(t *testing.T, ops []conntest.IO, sensitivity int) *ADXL313 {
	t.Helper()
	p := &spitest.Playback{
		Playback: conntest.Playback{Ops: ops, DontPanic: true},
	}
	c, err := p.Connect(physic.MegaHertz, spi.Mode3, 8)
	require.NoError(t, err)
	return &ADXL313{
		port:        p,
		conn:        c,
		sensitivity: sensitivity,
		scale:       scaleG[sensitivity],
	}
}

func TestReadRawLittleEndian(t *testing.T) {
	// Burst read of the six data registers: read + multi-byte bits set on
	// the address byte, then six dummy bytes clocking out the data.
	ops := []conntest.IO{
		{
			W: []byte{RegDataX0 | readBit | multiBit, 0, 0, 0, 0, 0, 0},
			R: []byte{0x00, 0x10, 0x00, 0xF0, 0xFF, 0x00, 0x02},
		},
	}
	d := playbackDevice(t, ops, Range2G)

	x, y, z, err := d.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, int16(16), x)
	assert.Equal(t, int16(-16), y)
	assert.Equal(t, int16(512), z)
}

func TestReadAccelScaling(t *testing.T) {
	// z = 512 counts at ±2g (2g/512 counts) is exactly 2g.
	ops := []conntest.IO{
		{
			W: []byte{RegDataX0 | readBit | multiBit, 0, 0, 0, 0, 0, 0},
			R: []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02},
		},
	}
	d := playbackDevice(t, ops, Range2G)

	x, y, z, err := d.ReadAccel()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x, 1e-6)
	assert.InDelta(t, 0.0, y, 1e-6)
	assert.InDelta(t, 2.0, z, 1e-6)
}

func TestIsConnected(t *testing.T) {
	ops := []conntest.IO{
		{W: []byte{RegDevID | readBit, 0x00}, R: []byte{0x00, 0xAD}},
		{W: []byte{RegDevID | readBit, 0x00}, R: []byte{0x00, 0xFF}},
	}
	d := playbackDevice(t, ops, Range2G)

	assert.True(t, d.IsConnected())
	assert.False(t, d.IsConnected())
}

func TestSetSensitivityRewritesDataFormat(t *testing.T) {
	// Changing the range must reach the DATA_FORMAT register and update
	// the scale used for conversion.
	ops := []conntest.IO{
		{W: []byte{RegDataFormat, byte(Range4G)}, R: []byte{0x00, 0x00}},
	}
	d := playbackDevice(t, ops, Range2G)

	require.NoError(t, d.SetSensitivity(Range4G))
	assert.Equal(t, Range4G, d.Sensitivity())
	assert.Equal(t, scaleG[Range4G], d.scale)
}

func TestRangeG(t *testing.T) {
	assert.Equal(t, float32(0.5), RangeG(RangeHalfG))
	assert.Equal(t, float32(1.0), RangeG(Range1G))
	assert.Equal(t, float32(2.0), RangeG(Range2G))
	assert.Equal(t, float32(4.0), RangeG(Range4G))
	// Unknown indexes fall back to the ±2g default.
	assert.Equal(t, float32(2.0), RangeG(7))
}

func TestRegisterMapCoversDataRegisters(t *testing.T) {
	regs := ADXL313RegisterMap()
	byName := make(map[string]RegisterInfo, len(regs))
	for _, r := range regs {
		byName[r.Name] = r
	}

	for _, name := range []string{"DEVID_0", "BW_RATE", "POWER_CTL", "DATA_FORMAT", "DATAX0", "DATAZ1"} {
		_, ok := byName[name]
		assert.True(t, ok, "missing register %s", name)
	}
	assert.Equal(t, "0x32", byName["DATAX0"].Address)
	assert.Equal(t, "R", byName["DATAX0"].Access)
}
