// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// RunConsole subscribes to the pipeline topics and pretty-prints the
// reports, for eyeballing a live sensor.
func RunConsole(cfg *config.Config) error {
	client, err := connectMQTT(cfg, "console")
	if err != nil {
		return err
	}

	// Subscribe to calibrated readings
	readingToken := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r gyro.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Warn().Err(err).Msg("console: reading unmarshal error")
			return
		}

		fmt.Printf(
			"[RATE]  x=%9.5f y=%9.5f z=%9.5f rad/s  temp=%5.1fC\n",
			r.X, r.Y, r.Z, r.Temperature,
		)
	})
	readingToken.Wait()
	if readingToken.Error() != nil {
		return readingToken.Error()
	}
	log.Info().Str("topic", cfg.TopicReading).Msg("console subscribed")

	// Subscribe to delta angles
	deltaToken := client.Subscribe(cfg.TopicDeltaAngle, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var d gyro.DeltaAngle
		if err := json.Unmarshal(msg.Payload(), &d); err != nil {
			log.Warn().Err(err).Msg("console: delta angle unmarshal error")
			return
		}

		fmt.Printf(
			"[DELTA] dx=%9.6f dy=%9.6f dz=%9.6f rad  dt=%6dus n=%3d clip=%d\n",
			d.DeltaAngle[0], d.DeltaAngle[1], d.DeltaAngle[2], d.DT, d.Samples, d.ClipCount,
		)
	})
	deltaToken.Wait()
	if deltaToken.Error() != nil {
		return deltaToken.Error()
	}
	log.Info().Str("topic", cfg.TopicDeltaAngle).Msg("console subscribed")

	// Subscribe to status snapshots
	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st gyro.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Warn().Err(err).Msg("console: status unmarshal error")
			return
		}

		fmt.Printf(
			"[STAT]  vib=%8.5f coning=%8.5f clip=[%d %d %d] errs=%d rate=%dHz rot=%s\n",
			st.VibrationMetric, st.ConingVibration,
			st.Clipping[0], st.Clipping[1], st.Clipping[2],
			st.ErrorCount, st.MeasureRateHz, st.Rotation,
		)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Info().Str("topic", cfg.TopicStatus).Msg("console subscribed")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("console shutting down")
	client.Disconnect(250)
	return nil
}
