// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// Topics names the MQTT topics one sensor instance publishes on.
type Topics struct {
	Reading    string
	DeltaAngle string
	FIFO       string
	Status     string
}

// MQTT publishes pipeline reports as JSON over an MQTT connection.
// Publishes are qos 0 and not awaited: the pipeline runs at sample rate
// and must not stall on the broker. Status is retained so late
// subscribers see the last snapshot.
type MQTT struct {
	client mqtt.Client
	topics Topics
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, topics Topics) *MQTT {
	return &MQTT{client: client, topics: topics}
}

func (s *MQTT) PublishReading(r gyro.Reading) {
	s.publish(s.topics.Reading, false, r)
}

func (s *MQTT) PublishDeltaAngle(d gyro.DeltaAngle) {
	s.publish(s.topics.DeltaAngle, false, d)
}

func (s *MQTT) PublishBatch(b gyro.BatchReport) {
	s.publish(s.topics.FIFO, false, b)
}

func (s *MQTT) PublishStatus(st gyro.Status) {
	s.publish(s.topics.Status, true, st)
}

func (s *MQTT) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("report marshal error")
		return
	}
	s.client.Publish(topic, 0, retained, payload)
}
