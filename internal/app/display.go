// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/vibration_monitor/internal/config"
)

// StatusDisplay renders the device status on a 128x64 SSD1306 OLED.
type StatusDisplay struct {
	bus    i2c.BusCloser
	dev    *ssd1306.Dev
	status *StatusReporter

	updateInterval time.Duration
}

// NewStatusDisplay opens the I2C bus and initializes the display.
func NewStatusDisplay(cfg config.DisplayConfig, status *StatusReporter) (*StatusDisplay, error) {
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	// The ssd1306 driver speaks to the panel at the default 0x3C address.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init: %w", err)
	}
	log.Println("display: initialized")

	d := &StatusDisplay{
		bus:            bus,
		dev:            dev,
		status:         status,
		updateInterval: time.Duration(cfg.UpdateIntervalMS) * time.Millisecond,
	}
	if d.updateInterval <= 0 {
		d.updateInterval = 500 * time.Millisecond
	}

	if err := d.showSplash(); err != nil {
		log.Printf("display: splash: %v", err)
	}
	return d, nil
}

// Run redraws the status screen until the context is canceled.
func (d *StatusDisplay) Run(ctx context.Context) {
	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.bus.Close()
			return
		case <-ticker.C:
		}
		if err := d.draw(d.status.Get()); err != nil {
			log.Printf("display: draw: %v", err)
		}
	}
}

func blankImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

func newDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func (d *StatusDisplay) draw(s Status) error {
	img := blankImage()
	drawer := newDrawer(img)

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("%s %s", s.DeviceID, s.Operation)))

	drawer.Dot = fixed.P(0, 26)
	clock := " "
	if s.ClockOK {
		clock = "T"
	}
	drawer.DrawBytes([]byte(fmt.Sprintf("net:%s %s", s.WiFiState, clock)))

	drawer.Dot = fixed.P(0, 39)
	if s.LastTrigger.IsZero() {
		drawer.DrawBytes([]byte("Awaiting trigger"))
	} else {
		drawer.DrawBytes([]byte(fmt.Sprintf("run %d %s", s.RunsCompleted, s.LastTrigger.Format("15:04:05"))))
	}

	drawer.Dot = fixed.P(0, 52)
	switch {
	case s.LastTrigger.IsZero():
		drawer.DrawBytes([]byte(fmt.Sprintf("%d pts", s.SampleCount)))
	case s.UploadOK:
		drawer.DrawBytes([]byte(fmt.Sprintf("upload OK %d pts", s.SampleCount)))
	default:
		drawer.DrawBytes([]byte("upload FAILED"))
	}

	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

func (d *StatusDisplay) showSplash() error {
	img := blankImage()
	drawer := newDrawer(img)

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Vibration"))
	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Monitor " + Version))

	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}
