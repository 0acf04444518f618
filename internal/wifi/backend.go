// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wifi

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// WpaBackend drives wpa_supplicant through wpa_cli for station association
// and hostapd for the fallback access point.
type WpaBackend struct {
	// Interface is the wireless interface name, e.g. "wlan0".
	Interface string

	// HostapdConfig is the path of the hostapd configuration written for
	// AP fallback.
	HostapdConfig string

	networkID string
	hostapd   *exec.Cmd

	// run is replaceable in tests.
	run func(name string, args ...string) (string, error)
}

// NewWpaBackend creates a backend for the given wireless interface.
func NewWpaBackend(iface string) *WpaBackend {
	return &WpaBackend{
		Interface:     iface,
		HostapdConfig: "/tmp/vibmonitor_hostapd.conf",
		run:           runCommand,
	}
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "),
			err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *WpaBackend) cli(args ...string) (string, error) {
	full := append([]string{"-i", b.Interface}, args...)
	return b.run("wpa_cli", full...)
}

// StartConnect configures and selects a wpa_supplicant network for the
// given credentials. Re-invocation replaces the previous network entry.
func (b *WpaBackend) StartConnect(ssid, password string) error {
	if b.networkID != "" {
		b.cli("remove_network", b.networkID)
		b.networkID = ""
	}

	id, err := b.cli("add_network")
	if err != nil {
		return fmt.Errorf("wifi: add network: %w", err)
	}
	b.networkID = id

	if _, err := b.cli("set_network", id, "ssid", fmt.Sprintf("%q", ssid)); err != nil {
		return fmt.Errorf("wifi: set ssid: %w", err)
	}
	if password == "" {
		if _, err := b.cli("set_network", id, "key_mgmt", "NONE"); err != nil {
			return fmt.Errorf("wifi: set open network: %w", err)
		}
	} else {
		if _, err := b.cli("set_network", id, "psk", fmt.Sprintf("%q", password)); err != nil {
			return fmt.Errorf("wifi: set psk: %w", err)
		}
	}
	if _, err := b.cli("select_network", id); err != nil {
		return fmt.Errorf("wifi: select network: %w", err)
	}

	log.Printf("wifi: associating with %q on %s", ssid, b.Interface)
	return nil
}

// LinkUp parses wpa_cli status for a completed association.
func (b *WpaBackend) LinkUp() bool {
	out, err := b.cli("status")
	if err != nil {
		return false
	}
	return strings.Contains(out, "wpa_state=COMPLETED")
}

// StartAccessPoint stops station mode and launches hostapd with an open
// network carrying the device name.
func (b *WpaBackend) StartAccessPoint(name string) error {
	b.cli("disconnect")

	conf := fmt.Sprintf("interface=%s\nssid=%s\nhw_mode=g\nchannel=6\n", b.Interface, name)
	if err := os.WriteFile(b.HostapdConfig, []byte(conf), 0644); err != nil {
		return fmt.Errorf("wifi: hostapd config: %w", err)
	}

	// 192.168.4.1 is the conventional AP address; clients get redirected
	// here by the captive DNS.
	if _, err := b.run("ip", "addr", "replace", "192.168.4.1/24", "dev", b.Interface); err != nil {
		return fmt.Errorf("wifi: assign AP address: %w", err)
	}

	cmd := exec.Command("hostapd", b.HostapdConfig)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("wifi: start hostapd: %w", err)
	}
	b.hostapd = cmd
	log.Printf("wifi: access point %q up on %s", name, b.Interface)
	return nil
}

// Stop terminates a running hostapd, if any.
func (b *WpaBackend) Stop() {
	if b.hostapd != nil && b.hostapd.Process != nil {
		b.hostapd.Process.Kill()
		b.hostapd = nil
	}
}
