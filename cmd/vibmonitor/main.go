// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/vibration_monitor/internal/acquire"
	"github.com/relabs-tech/vibration_monitor/internal/app"
	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/influx"
	"github.com/relabs-tech/vibration_monitor/internal/sensors"
	"github.com/relabs-tech/vibration_monitor/internal/wifi"
)

func main() {
	configPath := flag.String("config", "./vibmonitor.yaml", "path to configuration file")
	webAddr := flag.String("addr", ":80", "web UI listen address")
	flag.Parse()

	log.Printf("starting vibration monitor %s", app.Version)

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	deviceID := config.DeviceID()
	log.Printf("device %s, operation %s", deviceID, cfg.OperationID)

	if _, err := host.Init(); err != nil {
		log.Fatalf("failed to initialize periph: %v", err)
	}

	accel, err := sensors.NewADXL313(cfg.SPI.Device, cfg.SPI.SpeedHz, cfg.Sensitivity)
	if err != nil {
		log.Fatalf("accelerometer: %v", err)
	}
	defer accel.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Trigger input: hardware edges and the web UI share one debounced
	// pending flag.
	trigger := acquire.NewTrigger(time.Duration(cfg.Trigger.DebounceMS) * time.Millisecond)
	pin := gpioreg.ByName(cfg.Trigger.GPIOPin)
	if pin == nil {
		log.Fatalf("trigger pin %q not found", cfg.Trigger.GPIOPin)
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		log.Fatalf("trigger pin setup: %v", err)
	}
	go acquire.WatchGPIO(ctx, pin, trigger)

	// Connectivity: station association with AP fallback plus SNTP clock.
	clock := wifi.NewTimeSync()
	manager := wifi.NewManager(wifi.NewWpaBackend(cfg.WiFi.Interface), clock,
		cfg.WiFi.SSID, cfg.WiFi.Password, cfg.APName())

	portal := wifi.NewCaptivePortal(net.IPv4(192, 168, 4, 1))
	manager.OnAccessPoint = func() {
		if err := portal.Start(":53"); err != nil {
			log.Printf("captive portal: %v", err)
		}
	}
	defer portal.Shutdown()

	status := app.NewStatusReporter(cfg.MQTT, app.Status{
		DeviceID:    deviceID,
		Operation:   cfg.OperationID,
		Version:     app.Version,
		SampleCount: cfg.SampleCount,
	})
	defer status.Close()

	influxClient := influx.NewClient(cfg.Influx)
	uploader := &influx.Uploader{
		Client:          influxClient,
		Net:             manager,
		Operation:       cfg.OperationID,
		DeviceID:        deviceID,
		FirmwareVersion: app.Version,
		SendTimeDomain:  cfg.SendTimeDomain,
	}

	monitor, err := app.NewMonitor(accel, trigger, manager, uploader,
		influx.NewRunSequencer(deviceID), status)
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}
	monitor.Pauser = status

	web := &app.WebServer{
		Trigger:      trigger,
		Status:       status,
		InfluxClient: influxClient,
		Registers:    accel,
		Calibration:  accel,
		Reset:        func() { os.Exit(0) }, // the service manager restarts us
	}
	go func() {
		if err := web.Run(ctx, *webAddr); err != nil {
			log.Printf("web: %v", err)
		}
	}()

	if cfg.Display.Enabled {
		display, err := app.NewStatusDisplay(cfg.Display, status)
		if err != nil {
			log.Printf("display: %v (continuing without)", err)
		} else {
			go display.Run(ctx)
		}
	}

	if err := monitor.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("fatal: %v", err)
	}
	log.Println("vibration monitor stopped")
}
