// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/vibration_monitor/internal/sensors"
)

// RegisterAccessor is the raw register interface of the accelerometer,
// used only by the debug surface.
type RegisterAccessor interface {
	ReadRegister(reg byte) (byte, error)
	WriteRegister(reg, value byte) error
	IsConnected() bool
}

// RegisterDebugSession holds websocket connection state for register
// debugging.
type RegisterDebugSession struct {
	Conn   *websocket.Conn
	Device RegisterAccessor
}

// RegisterResponse is the single response envelope for all debug actions.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "status", "error"
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
}

// RegisterDebugHandler serves the websocket register debugging session for
// the given device.
func RegisterDebugHandler(device RegisterAccessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("register_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &RegisterDebugSession{Conn: conn, Device: device}

		if err := session.sendRegisterMap(); err != nil {
			log.Printf("register_debug: error sending register map: %v", err)
			return
		}

		for {
			var rawMsg map[string]interface{}
			if err := conn.ReadJSON(&rawMsg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("register_debug: websocket error: %v", err)
				}
				break
			}

			action, ok := rawMsg["action"].(string)
			if !ok {
				session.sendError("missing or invalid action field")
				continue
			}

			switch action {
			case "get_map":
				session.sendRegisterMap()
			case "read":
				session.handleRead(rawMsg)
			case "read_all":
				session.handleReadAll()
			case "write":
				session.handleWrite(rawMsg)
			default:
				session.sendError(fmt.Sprintf("unknown action: %s", action))
			}
		}
	}
}

func (s *RegisterDebugSession) handleRead(rawMsg map[string]interface{}) {
	addrStr, _ := rawMsg["addr"].(string)
	if addrStr == "" {
		s.sendError("missing addr field")
		return
	}

	addr, err := parseHexByte(addrStr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid addr %q: %v", addrStr, err))
		return
	}

	value, err := s.Device.ReadRegister(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("read 0x%02X: %v", addr, err))
		return
	}

	s.send(RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleReadAll() {
	registers := make(map[string]string)
	for _, info := range sensors.ADXL313RegisterMap() {
		if !strings.Contains(info.Access, "R") {
			continue
		}
		addr, err := parseHexByte(info.Address)
		if err != nil {
			continue
		}
		value, err := s.Device.ReadRegister(addr)
		if err != nil {
			log.Printf("register_debug: read 0x%02X: %v", addr, err)
			continue
		}
		registers[info.Address] = fmt.Sprintf("0x%02X", value)
	}

	s.send(RegisterResponse{
		Type:      "register_data",
		Registers: registers,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleWrite(rawMsg map[string]interface{}) {
	addrStr, _ := rawMsg["addr"].(string)
	valueStr, _ := rawMsg["value"].(string)
	if addrStr == "" || valueStr == "" {
		s.sendError("missing addr or value field")
		return
	}

	addr, err := parseHexByte(addrStr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid addr %q: %v", addrStr, err))
		return
	}
	value, err := parseHexByte(valueStr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid value %q: %v", valueStr, err))
		return
	}

	if !isRegisterWritable(addr) {
		s.sendError(fmt.Sprintf("register 0x%02X is not writable", addr))
		return
	}

	if err := s.Device.WriteRegister(addr, value); err != nil {
		s.sendError(fmt.Sprintf("write 0x%02X: %v", addr, err))
		return
	}

	// Read back so the UI shows the value the device actually holds.
	readBack, err := s.Device.ReadRegister(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("read back 0x%02X: %v", addr, err))
		return
	}

	s.send(RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", readBack),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) sendRegisterMap() error {
	return s.send(RegisterResponse{
		Type:        "register_map",
		RegisterMap: sensors.ADXL313RegisterMap(),
	})
}

func (s *RegisterDebugSession) send(resp RegisterResponse) error {
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("register_debug: send error: %v", err)
		return err
	}
	return nil
}

func (s *RegisterDebugSession) sendError(message string) {
	log.Printf("register_debug: %s", message)
	s.send(RegisterResponse{Type: "error", Message: message})
}

func parseHexByte(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// isRegisterWritable consults the register map's access flags.
func isRegisterWritable(addr byte) bool {
	for _, info := range sensors.ADXL313RegisterMap() {
		a, err := parseHexByte(info.Address)
		if err != nil {
			continue
		}
		if a == addr {
			return strings.Contains(info.Access, "W")
		}
	}
	return false
}
