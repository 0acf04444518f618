// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/vibration_monitor/internal/acquire"
	"github.com/relabs-tech/vibration_monitor/internal/config"
	"github.com/relabs-tech/vibration_monitor/internal/influx"
)

var upgrader = websocket.Upgrader{
	// The device serves a closed plant network or its own AP; any origin
	// that can reach it may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebServer exposes configuration, status and the manual trigger over HTTP.
// In access-point mode it doubles as the captive portal target.
type WebServer struct {
	Trigger *acquire.Trigger
	Status  *StatusReporter

	// InfluxClient answers the connection test endpoint.
	InfluxClient *influx.Client

	// Reset restarts the device; wired to process exit in production.
	Reset func()

	// Registers, when set, enables the raw register debug websocket.
	Registers RegisterAccessor

	// Calibration, when set, enables the offset calibration websocket.
	Calibration OffsetTarget

	// StaticDir holds the web UI files, "./web" by default.
	StaticDir string
}

// Handler builds the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", ws.handleConfig)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/trigger", ws.handleTrigger)
	mux.HandleFunc("/api/reset", ws.handleReset)
	mux.HandleFunc("/api/influx/test", ws.handleInfluxTest)
	mux.HandleFunc("/ws", ws.handleWebSocket)
	if ws.Registers != nil {
		mux.HandleFunc("/ws/registers", RegisterDebugHandler(ws.Registers))
	}
	if ws.Calibration != nil {
		mux.HandleFunc("/ws/calibration", CalibrationHandler(ws.Calibration))
	}

	// OS captive-portal probes; answering with a redirect makes phones and
	// laptops pop the configuration UI when they join the AP.
	for _, path := range []string{"/generate_204", "/gen_204", "/hotspot-detect.html", "/connecttest.txt", "/ncsi.txt"} {
		mux.HandleFunc(path, ws.handlePortalProbe)
	}

	dir := ws.StaticDir
	if dir == "" {
		dir = "web"
	}
	mux.Handle("/", http.FileServer(http.Dir(dir)))

	return mux
}

// Run serves until the context is canceled.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: ws.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: listening on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, config.Get())

	case http.MethodPost:
		// Start from the current configuration so omitted fields keep
		// their values.
		updated := *config.Get()
		if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
			http.Error(w, "invalid config payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := updated.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		// Replace re-validates and persists to the path InitGlobal loaded
		// from.
		if err := config.Replace(&updated); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Println("web: configuration updated")
		writeJSON(w, config.Get())

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ws.Status.Get())
}

// handleTrigger funnels operator-initiated runs through the same debounced
// pending flag as the hardware input, so a run can never re-enter.
func (ws *WebServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted := ws.Trigger.Fire(time.Now())
	if !accepted {
		http.Error(w, "trigger debounced", http.StatusTooManyRequests)
		return
	}
	log.Println("web: manual trigger accepted")
	writeJSON(w, map[string]bool{"triggered": true})
}

func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]bool{"resetting": true})
	if ws.Reset != nil {
		// Give the response a moment to flush.
		go func() {
			time.Sleep(250 * time.Millisecond)
			ws.Reset()
		}()
	}
}

func (ws *WebServer) handleInfluxTest(w http.ResponseWriter, r *http.Request) {
	if ws.InfluxClient == nil {
		http.Error(w, "influx not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := ws.InfluxClient.HealthCheck(ctx); err != nil {
		writeJSON(w, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	ws.Status.AddWebSocket(conn)
}

func (ws *WebServer) handlePortalProbe(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
