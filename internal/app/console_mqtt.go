// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/vibration_monitor/internal/config"
)

// RunConsole subscribes to the device's MQTT status topic and prints every
// update, for watching a sensor from a workstation.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTT.Broker)

	token := client.Subscribe(cfg.MQTT.StatusTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		outcome := "ok"
		if !s.UploadOK {
			outcome = "FAILED"
			if s.UploadError != "" {
				outcome = "FAILED: " + s.UploadError
			}
		}
		fmt.Printf("[%s] net=%-12s runs=%-4d last=%s %d pts @ %.1f Hz upload=%s\n",
			s.DeviceID, s.WiFiState, s.RunsCompleted,
			s.LastRunID, s.SampleCount, s.EffectiveRateHz, outcome)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.MQTT.StatusTopic)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
