package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/sensors"
	"github.com/relabs-tech/gyro_pipeline/internal/sink"
)

// RunSerialProducer feeds the pipeline from a serial gyro sentence feed,
// one sample at a time (serial → pipeline → MQTT).
func RunSerialProducer(cfg *config.Config) error {
	log.Info().Msg("starting gyro serial producer")

	client, err := connectMQTT(cfg, "serial-producer")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src, err := sensors.NewSerialSource(cfg.SerialPort, cfg.SerialBaud)
	if err != nil {
		return err
	}
	defer src.Close()

	log.Info().Str("port", cfg.SerialPort).Uint("baud", cfg.SerialBaud).Msg("serial port opened")

	g := newGyroscope(cfg, cfg.SampleRate, sink.NewMQTT(client, topics(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			sample, err := src.Next()
			if err != nil {
				return err
			}
			g.Update(sample.TimestampUs, sample.X, sample.Y, sample.Z)
		}
	})

	return waitShutdown(eg, "serial producer")
}
