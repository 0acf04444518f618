// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// BitField describes a named bit range within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo holds metadata for one register, used by the register check
// tool.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// ADXL313RegisterMap returns metadata for the ADXL313 registers.
func ADXL313RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Identification
		{Address: "0x00", Name: "DEVID_0", Description: "Device ID byte 0", Access: "R", Default: "0xAD"},
		{Address: "0x01", Name: "DEVID_1", Description: "Device ID byte 1", Access: "R", Default: "0x1D"},
		{Address: "0x02", Name: "PARTID", Description: "Part ID", Access: "R", Default: "0xCB"},
		{Address: "0x03", Name: "REVID", Description: "Silicon revision", Access: "R"},
		{Address: "0x04", Name: "XID", Description: "Extended device ID", Access: "R"},

		// Reset
		{Address: "0x18", Name: "SOFT_RESET", Description: "Software reset (write 0x52)", Access: "W"},

		// Offset adjustment
		{Address: "0x1E", Name: "OFSX", Description: "X-axis offset", Access: "RW", Default: "0x00"},
		{Address: "0x1F", Name: "OFSY", Description: "Y-axis offset", Access: "RW", Default: "0x00"},
		{Address: "0x20", Name: "OFSZ", Description: "Z-axis offset", Access: "RW", Default: "0x00"},

		// Activity detection
		{Address: "0x24", Name: "THRESH_ACT", Description: "Activity threshold", Access: "RW", Default: "0x00"},
		{Address: "0x25", Name: "THRESH_INACT", Description: "Inactivity threshold", Access: "RW", Default: "0x00"},
		{Address: "0x26", Name: "TIME_INACT", Description: "Inactivity time", Access: "RW", Default: "0x00"},
		{Address: "0x27", Name: "ACT_INACT_CTL", Description: "Activity/inactivity control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "ACT ac/dc", Description: "Activity AC-coupled", Values: "0=DC, 1=AC"},
				{Bits: "6:4", Name: "ACT_EN", Description: "Activity axis enable X/Y/Z"},
				{Bits: "3", Name: "INACT ac/dc", Description: "Inactivity AC-coupled", Values: "0=DC, 1=AC"},
				{Bits: "2:0", Name: "INACT_EN", Description: "Inactivity axis enable X/Y/Z"},
			}},

		// Rate and power
		{Address: "0x2C", Name: "BW_RATE", Description: "Data rate and power mode", Access: "RW", Default: "0x0A",
			BitFields: []BitField{
				{Bits: "4", Name: "LOW_POWER", Description: "Low power mode", Values: "0=Normal, 1=Low power"},
				{Bits: "3:0", Name: "RATE", Description: "Output data rate", Values: "0x0F=3200Hz, 0x0E=1600Hz, 0x0D=800Hz, 0x0C=400Hz, 0x0B=200Hz, 0x0A=100Hz"},
			}},
		{Address: "0x2D", Name: "POWER_CTL", Description: "Power control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "I2C_DISABLE", Description: "Disable I2C interface", Values: "0=I2C enabled, 1=SPI only"},
				{Bits: "5", Name: "LINK", Description: "Link activity/inactivity", Values: ""},
				{Bits: "4", Name: "AUTO_SLEEP", Description: "Auto-sleep on inactivity", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "MEASURE", Description: "Measurement mode", Values: "0=Standby, 1=Measure"},
				{Bits: "2", Name: "SLEEP", Description: "Sleep mode", Values: "0=Normal, 1=Sleep"},
				{Bits: "1:0", Name: "WAKEUP", Description: "Wakeup frequency", Values: "0=8Hz, 1=4Hz, 2=2Hz, 3=1Hz"},
			}},

		// Interrupts
		{Address: "0x2E", Name: "INT_ENABLE", Description: "Interrupt enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DATA_READY", Description: "Data ready interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "ACTIVITY", Description: "Activity interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "INACTIVITY", Description: "Inactivity interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "WATERMARK", Description: "FIFO watermark interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "OVERRUN", Description: "FIFO overrun interrupt", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "0x2F", Name: "INT_MAP", Description: "Interrupt pin mapping", Access: "RW", Default: "0x00"},
		{Address: "0x30", Name: "INT_SOURCE", Description: "Interrupt source", Access: "R"},

		// Data format
		{Address: "0x31", Name: "DATA_FORMAT", Description: "Data format control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SELF_TEST", Description: "Self-test force", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "SPI", Description: "SPI wire mode", Values: "0=4-wire, 1=3-wire"},
				{Bits: "5", Name: "INT_INVERT", Description: "Interrupt polarity", Values: "0=Active high, 1=Active low"},
				{Bits: "3", Name: "FULL_RES", Description: "Full resolution mode", Values: "0=10-bit, 1=Full resolution"},
				{Bits: "2", Name: "JUSTIFY", Description: "Data justification", Values: "0=Right (LSB), 1=Left (MSB)"},
				{Bits: "1:0", Name: "RANGE", Description: "Measurement range", Values: "0=±0.5g, 1=±1g, 2=±2g, 3=±4g"},
			}},

		// Sensor data (read-only, little endian pairs)
		{Address: "0x32", Name: "DATAX0", Description: "X-axis data low byte", Access: "R"},
		{Address: "0x33", Name: "DATAX1", Description: "X-axis data high byte", Access: "R"},
		{Address: "0x34", Name: "DATAY0", Description: "Y-axis data low byte", Access: "R"},
		{Address: "0x35", Name: "DATAY1", Description: "Y-axis data high byte", Access: "R"},
		{Address: "0x36", Name: "DATAZ0", Description: "Z-axis data low byte", Access: "R"},
		{Address: "0x37", Name: "DATAZ1", Description: "Z-axis data high byte", Access: "R"},

		// FIFO
		{Address: "0x38", Name: "FIFO_CTL", Description: "FIFO control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Trigger"},
				{Bits: "5", Name: "TRIGGER", Description: "Trigger event mapping", Values: "0=INT1, 1=INT2"},
				{Bits: "4:0", Name: "SAMPLES", Description: "Watermark sample count", Values: "0-31"},
			}},
		{Address: "0x39", Name: "FIFO_STATUS", Description: "FIFO status", Access: "R"},
	}
}
