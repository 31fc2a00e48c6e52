// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// MPU-9250 registers used by the FIFO drain path.
const (
	regSmplrtDiv  = 0x19
	regConfig     = 0x1A
	regGyroConfig = 0x1B
	regFIFOEn     = 0x23
	regUserCtrl   = 0x6A
	regPwrMgmt1   = 0x6B
	regFIFOCountH = 0x72
	regFIFORW     = 0x74
	regWhoAmI     = 0x75
	regTempOutH   = 0x41

	whoAmIMPU9250 = 0x71

	fifoEnGyroXYZ    = 0x70 // GYRO_XOUT | GYRO_YOUT | GYRO_ZOUT
	userCtrlI2CIfDis = 0x10
	userCtrlFIFORst  = 0x04
	userCtrlFIFOEn   = 0x40
	pwrMgmt1Reset    = 0x80
	pwrMgmt1ClkAuto  = 0x01

	spiReadFlag    = 0x80
	bytesPerSample = 6  // int16 x/y/z
	fifoCapacity   = 512
)

// FIFOConfig holds the hardware parameters for one MPU-9250 gyro.
type FIFOConfig struct {
	SPIDevice string
	// Gyro full scale code: 0=±250°/s ... 3=±2000°/s
	GyroRange byte
	// DLPF configuration (0-7)
	DLPF byte
	// Sample rate divider: output rate = internal rate / (1 + div)
	SampleRateDiv byte
}

// FIFOSource drains the MPU-9250 gyro FIFO into fixed-size batches over
// SPI. One drain yields at most gyro.MaxBatchSamples samples sharing the
// configured inter-sample interval.
type FIFOSource struct {
	port spi.PortCloser
	conn spi.Conn

	sampleRate uint16
	dtUs       float64
	errorCount uint64

	// reusable transfer buffers so draining does not allocate
	txBuf [1 + gyro.MaxBatchSamples*bytesPerSample]byte
	rxBuf [1 + gyro.MaxBatchSamples*bytesPerSample]byte
}

// NewFIFOSource initializes the sensor: wake from reset, configure
// range, filter and rate, then enable gyro-only FIFO streaming.
func NewFIFOSource(cfg FIFOConfig) (*FIFOSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(cfg.SPIDevice)
	if err != nil {
		return nil, fmt.Errorf("SPI open (%s): %w", cfg.SPIDevice, err)
	}

	conn, err := port.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("SPI connect: %w", err)
	}

	s := &FIFOSource{port: port, conn: conn}

	// Reset and wake with the auto-selected clock source.
	if err := s.writeReg(regPwrMgmt1, pwrMgmt1Reset); err != nil {
		port.Close()
		return nil, fmt.Errorf("device reset: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := s.writeReg(regPwrMgmt1, pwrMgmt1ClkAuto); err != nil {
		port.Close()
		return nil, fmt.Errorf("device wake: %w", err)
	}

	if id, err := s.readReg(regWhoAmI); err != nil {
		port.Close()
		return nil, fmt.Errorf("WHO_AM_I read: %w", err)
	} else if id != whoAmIMPU9250 {
		log.Warn().Uint8("who_am_i", id).Msg("unexpected device ID, continuing anyway")
	}

	if err := s.writeReg(regConfig, cfg.DLPF); err != nil {
		port.Close()
		return nil, fmt.Errorf("set DLPF config: %w", err)
	}
	if err := s.writeReg(regSmplrtDiv, cfg.SampleRateDiv); err != nil {
		port.Close()
		return nil, fmt.Errorf("set sample rate divider: %w", err)
	}
	if err := s.writeReg(regGyroConfig, cfg.GyroRange<<3); err != nil {
		port.Close()
		return nil, fmt.Errorf("set gyro range: %w", err)
	}

	// Flush the FIFO, then enable it for gyro output only.
	if err := s.writeReg(regUserCtrl, userCtrlI2CIfDis|userCtrlFIFORst); err != nil {
		port.Close()
		return nil, fmt.Errorf("FIFO reset: %w", err)
	}
	if err := s.writeReg(regUserCtrl, userCtrlI2CIfDis|userCtrlFIFOEn); err != nil {
		port.Close()
		return nil, fmt.Errorf("FIFO enable: %w", err)
	}
	if err := s.writeReg(regFIFOEn, fifoEnGyroXYZ); err != nil {
		port.Close()
		return nil, fmt.Errorf("FIFO source select: %w", err)
	}

	internalRate := 1000 // 1 kHz for DLPF modes 0-6
	if cfg.DLPF == 7 {
		internalRate = 8000 // 8 kHz when DLPF disabled
	}
	outputRate := internalRate / (1 + int(cfg.SampleRateDiv))
	s.sampleRate = uint16(outputRate)
	s.dtUs = 1e6 / float64(outputRate)

	log.Info().
		Str("spi", cfg.SPIDevice).
		Int("sample_rate_hz", outputRate).
		Uint8("gyro_range_code", cfg.GyroRange).
		Msg("MPU-9250 FIFO source ready")

	return s, nil
}

// SampleRate is the configured output data rate in Hz.
func (s *FIFOSource) SampleRate() uint16 { return s.sampleRate }

// DTMicros is the inter-sample interval in µs.
func (s *FIFOSource) DTMicros() float64 { return s.dtUs }

// ErrorCount reports bus/overflow errors seen so far.
func (s *FIFOSource) ErrorCount() uint64 { return s.errorCount }

// ReadBatch drains up to gyro.MaxBatchSamples samples from the FIFO.
// When no complete sample is buffered yet, the returned batch has
// Samples == 0 and the caller should retry on the next tick.
func (s *FIFOSource) ReadBatch() (gyro.Batch, error) {
	var b gyro.Batch

	count, err := s.readFIFOCount()
	if err != nil {
		s.errorCount++
		return b, fmt.Errorf("FIFO count read: %w", err)
	}

	if count >= fifoCapacity {
		// Overflowed: sample continuity is lost, flush and start over.
		s.errorCount++
		log.Warn().Int("count", count).Msg("gyro FIFO overflow, resetting")
		if err := s.writeReg(regUserCtrl, userCtrlI2CIfDis|userCtrlFIFORst); err != nil {
			return b, fmt.Errorf("FIFO overflow reset: %w", err)
		}
		if err := s.writeReg(regUserCtrl, userCtrlI2CIfDis|userCtrlFIFOEn); err != nil {
			return b, fmt.Errorf("FIFO re-enable: %w", err)
		}
		return b, nil
	}

	n := count / bytesPerSample
	if n == 0 {
		return b, nil
	}
	if n > gyro.MaxBatchSamples {
		n = gyro.MaxBatchSamples
	}

	// Burst read: one address byte, then n samples of big-endian
	// x/y/z words.
	total := 1 + n*bytesPerSample
	s.txBuf[0] = regFIFORW | spiReadFlag
	for i := 1; i < total; i++ {
		s.txBuf[i] = 0
	}
	if err := s.conn.Tx(s.txBuf[:total], s.rxBuf[:total]); err != nil {
		s.errorCount++
		return b, fmt.Errorf("FIFO burst read: %w", err)
	}

	for i := 0; i < n; i++ {
		off := 1 + i*bytesPerSample
		b.X[i] = int16(binary.BigEndian.Uint16(s.rxBuf[off : off+2]))
		b.Y[i] = int16(binary.BigEndian.Uint16(s.rxBuf[off+2 : off+4]))
		b.Z[i] = int16(binary.BigEndian.Uint16(s.rxBuf[off+4 : off+6]))
	}

	now := time.Now().UnixMicro()
	b.TimestampSample = now - int64(float64(n-1)*s.dtUs)
	b.DT = s.dtUs
	b.Samples = uint8(n)

	return b, nil
}

// ReadTemperature reads the sensor die temperature in °C.
func (s *FIFOSource) ReadTemperature() (float64, error) {
	txBuf := [3]byte{regTempOutH | spiReadFlag, 0, 0}
	var rxBuf [3]byte
	if err := s.conn.Tx(txBuf[:], rxBuf[:]); err != nil {
		s.errorCount++
		return 0, fmt.Errorf("temperature read: %w", err)
	}
	raw := int16(binary.BigEndian.Uint16(rxBuf[1:3]))
	return float64(raw)/333.87 + 21.0, nil
}

// Close releases the SPI port.
func (s *FIFOSource) Close() error {
	return s.port.Close()
}

func (s *FIFOSource) writeReg(reg, val byte) error {
	return s.conn.Tx([]byte{reg, val}, nil)
}

func (s *FIFOSource) readReg(reg byte) (byte, error) {
	w := [2]byte{reg | spiReadFlag, 0}
	var r [2]byte
	if err := s.conn.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (s *FIFOSource) readFIFOCount() (int, error) {
	w := [3]byte{regFIFOCountH | spiReadFlag, 0, 0}
	var r [3]byte
	if err := s.conn.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(r[1:3]) & 0x1FFF), nil
}
