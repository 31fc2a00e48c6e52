// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

// MaxBatchSamples is the FIFO batch capacity. Sensor sources must never
// deliver more samples than this in one batch.
const MaxBatchSamples = 16

// Batch is a fixed-size group of raw gyro samples drained from a sensor
// FIFO in one go. All samples share the same inter-sample interval.
type Batch struct {
	TimestampSample int64   // µs, timestamp of the first sample
	DT              float64 // µs between consecutive samples
	Samples         uint8   // number of valid samples, 1..MaxBatchSamples
	X               [MaxBatchSamples]int16
	Y               [MaxBatchSamples]int16
	Z               [MaxBatchSamples]int16
}

// Reading is one calibrated angular-rate sample in rad/s. For batch
// input it is computed from the batch average. One Reading is published
// per Update/UpdateBatch call, unconditionally.
type Reading struct {
	TimestampSample int64   `json:"timestamp_sample"` // µs
	DeviceID        uint32  `json:"device_id"`
	Temperature     float64 `json:"temperature"` // °C, sensor die
	X               float64 `json:"x"`           // rad/s
	Y               float64 `json:"y"`
	Z               float64 `json:"z"`
	Timestamp       int64   `json:"timestamp"` // µs, publish time
}

// DeltaAngle is the time integral of angular rate over one integration
// window, published on integrator flush.
type DeltaAngle struct {
	TimestampSample int64      `json:"timestamp_sample"` // µs
	DeviceID        uint32     `json:"device_id"`
	ErrorCount      uint64     `json:"error_count"`
	DeltaAngle      [3]float64 `json:"delta_angle"` // radians
	DT              uint32     `json:"dt"`          // µs covered by this report
	Samples         uint32     `json:"samples"`     // samples folded in
	ClipCount       uint32     `json:"clip_count"`  // this window only
	Timestamp       int64      `json:"timestamp"`   // µs, publish time
}

// BatchReport echoes a raw input batch together with the scale and dt
// needed to interpret it downstream. Published once per UpdateBatch.
type BatchReport struct {
	TimestampSample int64                   `json:"timestamp_sample"` // µs
	DeviceID        uint32                  `json:"device_id"`
	DT              float64                 `json:"dt"`    // µs
	Scale           float64                 `json:"scale"` // counts → rad/s
	Samples         uint8                   `json:"samples"`
	X               [MaxBatchSamples]int16  `json:"x"`
	Y               [MaxBatchSamples]int16  `json:"y"`
	Z               [MaxBatchSamples]int16  `json:"z"`
	Timestamp       int64                   `json:"timestamp"` // µs, publish time
}

// Status is a throttled snapshot of the sensor health counters.
type Status struct {
	DeviceID        uint32    `json:"device_id"`
	ErrorCount      uint64    `json:"error_count"`
	FullScaleRange  float64   `json:"full_scale_range"` // rad/s
	Rotation        Rotation  `json:"rotation"`
	MeasureRateHz   uint16    `json:"measure_rate_hz"`
	Temperature     float64   `json:"temperature"`
	VibrationMetric float64   `json:"vibration_metric"`
	ConingVibration float64   `json:"coning_vibration"`
	Clipping        [3]uint32 `json:"clipping"`  // lifetime, per axis
	Timestamp       int64     `json:"timestamp"` // µs, publish time
}

// Sink receives pipeline reports. Implementations must not block: the
// pipeline runs at sample rate and fires and forgets. Delivery errors
// are the sink's problem, not the pipeline's.
type Sink interface {
	PublishReading(Reading)
	PublishDeltaAngle(DeltaAngle)
	PublishBatch(BatchReport)
	PublishStatus(Status)
}
