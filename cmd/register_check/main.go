// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"periph.io/x/host/v3"

	"github.com/relabs-tech/vibration_monitor/internal/app"
	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/sensors"
)

func main() {
	configPath := flag.String("config", "./vibmonitor.yaml", "path to configuration file")
	serve := flag.String("serve", "", "serve the register debug UI on this address instead of dumping once (e.g. :8081)")
	flag.Parse()

	log.Println("starting ADXL313 register check tool")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		log.Fatalf("failed to initialize periph: %v", err)
	}

	accel, err := sensors.NewADXL313(cfg.SPI.Device, cfg.SPI.SpeedHz, cfg.Sensitivity)
	if err != nil {
		log.Fatalf("accelerometer: %v", err)
	}
	defer accel.Close()

	if *serve != "" {
		http.HandleFunc("/ws", app.RegisterDebugHandler(accel))
		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, "web/register_debug.html")
		})
		log.Printf("register debug tool listening on %s", *serve)
		log.Fatal(http.ListenAndServe(*serve, nil))
	}

	dumpRegisters(accel)
}

func dumpRegisters(accel *sensors.ADXL313) {
	fmt.Printf("%-6s %-14s %-4s %-8s %s\n", "ADDR", "NAME", "ACC", "VALUE", "DESCRIPTION")
	for _, info := range sensors.ADXL313RegisterMap() {
		if !strings.Contains(info.Access, "R") {
			fmt.Printf("%-6s %-14s %-4s %-8s %s\n", info.Address, info.Name, info.Access, "-", info.Description)
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(info.Address, "0x"), 16, 8)
		if err != nil {
			continue
		}
		value, err := accel.ReadRegister(byte(addr))
		display := fmt.Sprintf("0x%02X", value)
		if err != nil {
			display = "ERR"
		}
		fmt.Printf("%-6s %-14s %-4s %-8s %s\n", info.Address, info.Name, info.Access, display, info.Description)
	}
}
