// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
	"github.com/relabs-tech/gyro_pipeline/internal/sensors"
	"github.com/relabs-tech/gyro_pipeline/internal/sink"
)

// waitShutdown waits on the group and turns the cancellation that
// follows SIGINT/SIGTERM into a clean exit. Any other error, wrapped or
// not, is surfaced.
func waitShutdown(eg *errgroup.Group, name string) error {
	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info().Msg(name + " shutting down")
		return nil
	}
	return err
}

// newGyroscope builds the pipeline from config with the given sample
// rate (sources may know the actual hardware rate better than config).
func newGyroscope(cfg *config.Config, sampleRate uint16, s gyro.Sink) *gyro.Gyroscope {
	g := gyro.New(gyro.Config{
		DeviceID:           cfg.DeviceID,
		Rotation:           gyro.Rotation(cfg.Rotation),
		Scale:              cfg.Scale,
		Range:              cfg.FullScaleRange,
		SampleRate:         sampleRate,
		IntegratorWindowUs: cfg.IntegratorWindowUs,
	}, s)

	g.SetCalibration(mgl64.Vec3{cfg.OffsetX, cfg.OffsetY, cfg.OffsetZ}, cfg.Scale)
	return g
}

// RunProducer drains the MPU-9250 gyro FIFO and feeds the pipeline,
// publishing reports over MQTT (FIFO → pipeline → MQTT).
func RunProducer(cfg *config.Config) error {
	log.Info().Msg("starting gyro FIFO producer")

	client, err := connectMQTT(cfg, "producer")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src, err := sensors.NewFIFOSource(sensors.FIFOConfig{
		SPIDevice:     cfg.SPIDevice,
		GyroRange:     byte(cfg.GyroRangeCode),
		DLPF:          byte(cfg.DLPFConfig),
		SampleRateDiv: byte(cfg.SampleRateDiv),
	})
	if err != nil {
		return err
	}
	defer src.Close()

	g := newGyroscope(cfg, src.SampleRate(), sink.NewMQTT(client, topics(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.DrainInterval) * time.Millisecond)
		defer ticker.Stop()

		drains := 0
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			batch, err := src.ReadBatch()
			if err != nil {
				log.Warn().Err(err).Msg("FIFO drain error")
				continue
			}
			if batch.Samples == 0 {
				continue
			}

			// Die temperature changes slowly; refresh it rarely.
			drains++
			if drains%100 == 1 {
				if temp, err := src.ReadTemperature(); err == nil {
					g.SetTemperature(temp)
				}
			}

			g.SetErrorCount(src.ErrorCount())
			g.UpdateBatch(batch)
		}
	})

	return waitShutdown(eg, "gyro producer")
}
