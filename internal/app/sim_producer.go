package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/sensors"
	"github.com/relabs-tech/gyro_pipeline/internal/sink"
)

// RunSimProducer drives the pipeline with a synthetic sinusoid so the
// console, web and display subscribers can be exercised without
// hardware.
func RunSimProducer(cfg *config.Config) error {
	log.Info().
		Float64("amplitude", cfg.SimAmplitude).
		Float64("freq_hz", cfg.SimFrequency).
		Msg("starting simulated gyro producer")

	client, err := connectMQTT(cfg, "sim-producer")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src := sensors.NewSimSource(cfg.SimAmplitude, cfg.SimFrequency, cfg.SampleRate)
	g := newGyroscope(cfg, cfg.SampleRate, sink.NewMQTT(client, topics(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// Each batch carries 8 samples, so tick at batch cadence.
		interval := time.Duration(8*1e6/int64(cfg.SampleRate)) * time.Microsecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			g.UpdateBatch(src.ReadBatch())
		}
	})

	return waitShutdown(eg, "sim producer")
}
