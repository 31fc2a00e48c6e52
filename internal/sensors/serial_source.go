// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// TypeGYR is the sentence type for raw gyro samples on the serial feed:
//
//	$RLGYR,<timestamp_us>,<x>,<y>,<z>*hh
//
// x/y/z are raw counts, timestamp is the sensor's microsecond clock.
const TypeGYR = "GYR"

// GYR is the parsed gyro sentence.
type GYR struct {
	nmea.BaseSentence
	TimestampUs int64
	X           float64
	Y           float64
	Z           float64
}

func init() {
	nmea.MustRegisterParser(TypeGYR, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return GYR{
			BaseSentence: s,
			TimestampUs:  p.Int64(0, "timestamp"),
			X:            p.Float64(1, "x"),
			Y:            p.Float64(2, "y"),
			Z:            p.Float64(3, "z"),
		}, p.Err()
	})
}

// SerialSource reads raw gyro samples from a serial line, one NMEA-style
// sentence per sample.
type SerialSource struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewSerialSource opens the serial port and prepares line reading.
func NewSerialSource(portName string, baudRate uint) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial open (%s): %w", portName, err)
	}

	return &SerialSource{
		port:   port,
		reader: bufio.NewReader(port),
	}, nil
}

// Next blocks until the next valid gyro sentence arrives. Partial or
// foreign sentences are skipped, not surfaced as errors.
func (s *SerialSource) Next() (Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Sample{}, fmt.Errorf("serial read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy line or partial sentence; keep reading
			continue
		}

		g, ok := sentence.(GYR)
		if !ok {
			continue
		}

		return Sample{
			TimestampUs: g.TimestampUs,
			X:           g.X,
			Y:           g.Y,
			Z:           g.Z,
		}, nil
	}
}

// Close releases the serial port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
