package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// displayData holds the latest reports for the OLED panel.
type displayData struct {
	mu sync.RWMutex

	status     gyro.Status
	haveStatus bool

	reading     gyro.Reading
	haveReading bool
}

// RunDisplay shows live rates and the health counters on an SSD1306
// OLED over I2C.
func RunDisplay(cfg *config.Config) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// The upstream ssd1306 driver only talks to address 0x3C.
	if cfg.DisplayI2CAddr != 0x3C {
		log.Warn().Int("addr", int(cfg.DisplayI2CAddr)).Msg("display: driver ignores configured address, using 0x3C")
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Info().Msg("display initialized")

	if err := showSplash(dev); err != nil {
		log.Warn().Err(err).Msg("display: error showing splash")
	}

	data := &displayData{}

	client, err := connectMQTT(cfg, "display")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st gyro.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Warn().Err(err).Msg("display: status unmarshal error")
			return
		}
		data.mu.Lock()
		data.status = st
		data.haveStatus = true
		data.mu.Unlock()
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Info().Str("topic", cfg.TopicStatus).Msg("display subscribed")

	readingToken := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r gyro.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Warn().Err(err).Msg("display: reading unmarshal error")
			return
		}
		data.mu.Lock()
		data.reading = r
		data.haveReading = true
		data.mu.Unlock()
	})
	readingToken.Wait()
	if readingToken.Error() != nil {
		return readingToken.Error()
	}
	log.Info().Str("topic", cfg.TopicReading).Msg("display subscribed")

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Info().Msg("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := displayData{
			status:      data.status,
			haveStatus:  data.haveStatus,
			reading:     data.reading,
			haveReading: data.haveReading,
		}
		data.mu.RUnlock()

		if err := updateDisplay(dev, &snapshot); err != nil {
			log.Warn().Err(err).Msg("display: update error")
		}
	}

	return nil
}

func updateDisplay(dev *ssd1306.Dev, data *displayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveReading && !data.haveStatus {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Gyro Pipeline"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	if data.haveReading {
		r := data.reading
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("X:%8.4f", r.X)))
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("Y:%8.4f", r.Y)))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("Z:%8.4f", r.Z)))
	}

	if data.haveStatus {
		st := data.status
		clips := st.Clipping[0] + st.Clipping[1] + st.Clipping[2]
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("V:%.3f C:%d", st.VibrationMetric, clips)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Gyro Pipeline"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("data"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
