package app

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/sink"
)

// connectMQTT connects to the configured broker with the given client id
// suffix appended to the configured base id.
func connectMQTT(cfg *config.Config, suffix string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-" + suffix)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	log.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")
	return client, nil
}

// topics maps the configured topic names onto the sink.
func topics(cfg *config.Config) sink.Topics {
	return sink.Topics{
		Reading:    cfg.TopicReading,
		DeltaAngle: cfg.TopicDeltaAngle,
		FIFO:       cfg.TopicFIFO,
		Status:     cfg.TopicStatus,
	}
}
