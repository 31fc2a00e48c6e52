// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsHub fans delta-angle messages out to all connected browsers.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast drops clients whose writes fail.
func (h *wsHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// RunWeb serves the latest status over HTTP and streams delta angles to
// browsers over a websocket.
func RunWeb(cfg *config.Config) error {
	var (
		mu         sync.RWMutex
		lastStatus gyro.Status
		haveStatus bool
	)

	hub := newWSHub()

	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg, "web")
	if err != nil {
		return err
	}

	// ---- 2) Subscribe to status, keep the latest snapshot ----
	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st gyro.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Warn().Err(err).Msg("web: status unmarshal error")
			return
		}
		mu.Lock()
		lastStatus = st
		haveStatus = true
		mu.Unlock()
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Info().Str("topic", cfg.TopicStatus).Msg("web subscribed")

	// ---- 3) Subscribe to delta angles, fan out to websockets ----
	deltaToken := client.Subscribe(cfg.TopicDeltaAngle, 0, func(_ mqtt.Client, msg mqtt.Message) {
		hub.broadcast(msg.Payload())
	})
	deltaToken.Wait()
	if deltaToken.Error() != nil {
		return deltaToken.Error()
	}
	log.Info().Str("topic", cfg.TopicDeltaAngle).Msg("web subscribed")

	// ---- 4) JSON API endpoint: latest status ----
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastStatus); err != nil {
			log.Warn().Err(err).Msg("web: json encode error")
		}
	})

	// ---- 5) Websocket endpoint: live delta-angle stream ----
	http.HandleFunc("/ws/delta_angle", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("web: websocket upgrade error")
			return
		}
		hub.add(conn)
		log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("web: websocket client connected")

		// Drain reads so close frames are processed.
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ---- 6) Static files from ./web as the root ----
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Info().Str("addr", addr).Msg("web server listening")
	return http.ListenAndServe(addr, nil)
}
