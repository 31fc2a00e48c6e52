// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import (
	"math"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultIntegratorWindowUs is the target timespan of one delta-angle
	// report. Override through Config.IntegratorWindowUs if the downstream
	// consumer wants a different report rate.
	DefaultIntegratorWindowUs = 4000

	// statusIntervalUs throttles status snapshots to one per 100 ms.
	statusIntervalUs = 100_000

	// maxRawValue is int16 full scale, the floor for the clip limit.
	maxRawValue = 32767
)

// Config parameterizes one Gyroscope instance.
type Config struct {
	DeviceID   uint32
	Rotation   Rotation
	Scale      float64 // counts → rad/s, 0 = 1.0
	Range      float64 // full scale range, rad/s
	SampleRate uint16  // Hz

	// IntegratorWindowUs sets the delta-angle window; 0 picks
	// DefaultIntegratorWindowUs.
	IntegratorWindowUs int64

	// Integrator is the single-sample accumulation strategy; nil picks
	// a trapezoidal window integrator over IntegratorWindowUs.
	Integrator Integrator

	// Clock supplies publish timestamps and the status throttle; nil
	// picks the wall clock.
	Clock clock.Clock
}

// Gyroscope turns raw rate samples into calibrated readings, delta-angle
// reports, clipping statistics and vibration metrics, publishing them
// through a Sink. One sequential caller per instance: it holds no locks
// and is not safe for concurrent use.
type Gyroscope struct {
	sink Sink
	clk  clock.Clock

	deviceID    uint32
	rotation    Rotation
	rotationDCM mgl64.Mat3

	calibrationOffset mgl64.Vec3
	scale             float64
	fullRange         float64
	temperature       float64
	errorCount        uint64
	clipLimit         float64

	updateRate             uint16
	integratorWindowUs     int64
	integratorResetSamples uint32

	integrator Integrator // single-sample path

	// batch integration state; resetIntegrator zeroes all of it at once
	integrationRaw        mgl64.Vec3
	integratorSamples     uint32 // update calls since last reset
	integratorFIFOSamples uint32 // raw samples folded in
	lastSample            [3]int16
	timestampPrev         int64 // µs, 0 = no prior batch
	integratorClipping    uint32

	clipping [3]uint32 // lifetime, never reset

	vibration vibrationTracker

	statusLastPublish int64 // µs
}

// New builds a Gyroscope publishing into sink.
func New(cfg Config, sink Sink) *Gyroscope {
	g := &Gyroscope{
		sink:               sink,
		clk:                cfg.Clock,
		deviceID:           cfg.DeviceID,
		scale:              cfg.Scale,
		fullRange:          cfg.Range,
		integratorWindowUs: cfg.IntegratorWindowUs,
		integrator:         cfg.Integrator,
	}

	if g.clk == nil {
		g.clk = clock.New()
	}
	if g.scale == 0 {
		g.scale = 1.0
	}
	if g.integratorWindowUs <= 0 {
		g.integratorWindowUs = DefaultIntegratorWindowUs
	}
	if g.integrator == nil {
		g.integrator = NewWindowIntegrator(g.integratorWindowUs)
	}

	g.SetRotation(cfg.Rotation)
	g.SetSampleRate(cfg.SampleRate)
	g.updateClipLimit()

	return g
}

// SetCalibration installs the offset (rad/s) and scale (counts → rad/s)
// and recomputes the clip limit.
func (g *Gyroscope) SetCalibration(offset mgl64.Vec3, scale float64) {
	g.calibrationOffset = offset
	g.scale = scale
	g.updateClipLimit()
}

// SetRotation installs a named board orientation.
func (g *Gyroscope) SetRotation(r Rotation) {
	g.rotation = r
	g.rotationDCM = RotationMatrix(r)
}

// SetSampleRate records the nominal sample rate and derives how many
// update calls span one integration window.
func (g *Gyroscope) SetSampleRate(rate uint16) {
	g.updateRate = rate
	if rate == 0 {
		g.integratorResetSamples = 1
		return
	}

	updateIntervalUs := 1_000_000 / int64(rate)
	n := g.integratorWindowUs / updateIntervalUs
	if n < 1 {
		n = 1
	}
	g.integratorResetSamples = uint32(n)
}

// SetFullScaleRange records the representable range (rad/s) and
// recomputes the clip limit.
func (g *Gyroscope) SetFullScaleRange(r float64) {
	g.fullRange = r
	g.updateClipLimit()
}

// SetTemperature records the sensor die temperature carried on reports.
func (g *Gyroscope) SetTemperature(t float64) {
	g.temperature = t
}

// SetErrorCount records the upstream communication error counter. The
// value is passed through on reports verbatim.
func (g *Gyroscope) SetErrorCount(c uint64) {
	g.errorCount = c
}

// Update processes one raw sample. The calibrated reading is published
// unconditionally; a delta-angle report follows whenever the configured
// integrator strategy signals readiness.
func (g *Gyroscope) Update(timestampSample int64, x, y, z float64) {
	// Rotation first, scale and offset after.
	raw := g.rotationDCM.Mul3x1(mgl64.Vec3{x, y, z})

	// Clipping is checked on unscaled raw values.
	for i := 0; i < 3; i++ {
		if math.Abs(raw[i]) >= g.clipLimit {
			g.clipping[i]++
			g.integratorClipping++
		}
	}

	calibrated := raw.Mul(g.scale).Sub(g.calibrationOffset)

	g.sink.PublishReading(Reading{
		TimestampSample: timestampSample,
		DeviceID:        g.deviceID,
		Temperature:     g.temperature,
		X:               calibrated[0],
		Y:               calibrated[1],
		Z:               calibrated[2],
		Timestamp:       g.now(),
	})

	g.integratorSamples++

	if delta, dtUs, ready := g.integrator.Put(timestampSample, calibrated); ready {
		g.sink.PublishDeltaAngle(DeltaAngle{
			TimestampSample: timestampSample,
			DeviceID:        g.deviceID,
			ErrorCount:      g.errorCount,
			DeltaAngle:      [3]float64{delta[0], delta[1], delta[2]},
			DT:              dtUs,
			Samples:         g.integratorSamples,
			ClipCount:       g.integratorClipping,
			Timestamp:       g.now(),
		})

		g.vibration.update(delta)
		g.resetIntegrator()
	}

	g.publishStatus()
}

// UpdateBatch folds one FIFO batch into the pipeline. A batch with no
// samples, or more than the FIFO can hold, is rejected whole: no state
// is mutated and nothing is published.
func (g *Gyroscope) UpdateBatch(b Batch) {
	n := int(b.Samples)
	if n < 1 || n > MaxBatchSamples {
		return
	}

	dt := b.DT

	// Calibrated reading from the batch average, published immediately.
	{
		x := float64(sumSamples(b.X[:n])) / float64(n)
		y := float64(sumSamples(b.Y[:n])) / float64(n)
		z := float64(sumSamples(b.Z[:n])) / float64(n)

		raw := g.rotationDCM.Mul3x1(mgl64.Vec3{x, y, z})
		calibrated := raw.Mul(g.scale).Sub(g.calibrationOffset)

		g.sink.PublishReading(Reading{
			TimestampSample: b.TimestampSample,
			DeviceID:        g.deviceID,
			Temperature:     g.temperature,
			X:               calibrated[0],
			Y:               calibrated[1],
			Z:               calibrated[2],
			Timestamp:       g.now(),
		})
	}

	// Clipping on the raw counts.
	clipX := clipCount(b.X[:n], g.clipLimit)
	clipY := clipCount(b.Y[:n], g.clipLimit)
	clipZ := clipCount(b.Z[:n], g.clipLimit)

	g.clipping[0] += clipX
	g.clipping[1] += clipY
	g.clipping[2] += clipZ
	g.integratorClipping += clipX + clipY + clipZ

	// A gap wider than two batch spans means samples were lost; the
	// accumulated state would integrate a false interval, so discard it
	// and start fresh from this batch. No report is emitted.
	if g.timestampPrev != 0 &&
		float64(b.TimestampSample-g.timestampPrev) > 2*float64(n)*dt {
		g.resetIntegrator()
	}

	g.integratorSamples++
	g.integratorFIFOSamples += uint32(n)

	// Trapezoidal integration over equally spaced samples; the sum stays
	// in the raw-count-times-sample domain and is scaled by dt on flush.
	// The previous batch's last sample continues the trapezoid across
	// the batch boundary.
	g.integrationRaw[0] += 0.5*(float64(g.lastSample[0])+float64(b.X[n-1])) + float64(sumSamples(b.X[:n-1]))
	g.integrationRaw[1] += 0.5*(float64(g.lastSample[1])+float64(b.Y[n-1])) + float64(sumSamples(b.Y[:n-1]))
	g.integrationRaw[2] += 0.5*(float64(g.lastSample[2])+float64(b.Z[n-1])) + float64(sumSamples(b.Z[:n-1]))

	g.lastSample[0] = b.X[n-1]
	g.lastSample[1] = b.Y[n-1]
	g.lastSample[2] = b.Z[n-1]

	if g.integratorFIFOSamples > 0 && g.integratorSamples >= g.integratorResetSamples {
		// Rotation and scale apply to the whole sum at once.
		unscaled := g.rotationDCM.Mul3x1(g.integrationRaw).Mul(g.scale)

		// The offset is per sample, so scale it to the window size.
		offset := g.calibrationOffset.Mul(float64(g.integratorFIFOSamples))

		// Integrated in µs-domain counts; 1e-6·dt converts to radians
		// over the covered timespan.
		delta := unscaled.Sub(offset).Mul(1e-6 * dt)

		g.sink.PublishDeltaAngle(DeltaAngle{
			TimestampSample: b.TimestampSample,
			DeviceID:        g.deviceID,
			ErrorCount:      g.errorCount,
			DeltaAngle:      [3]float64{delta[0], delta[1], delta[2]},
			DT:              uint32(float64(g.integratorFIFOSamples) * dt),
			Samples:         g.integratorFIFOSamples,
			ClipCount:       g.integratorClipping,
			Timestamp:       g.now(),
		})

		g.vibration.update(delta)
		g.resetIntegrator()
	}

	g.timestampPrev = b.TimestampSample

	// Raw batch passthrough.
	g.sink.PublishBatch(BatchReport{
		TimestampSample: b.TimestampSample,
		DeviceID:        g.deviceID,
		DT:              dt,
		Scale:           g.scale,
		Samples:         b.Samples,
		X:               b.X,
		Y:               b.Y,
		Z:               b.Z,
		Timestamp:       g.now(),
	})

	g.publishStatus()
}

// publishStatus emits a status snapshot at most once per 100 ms. It is
// called after every input event and holds no state beyond the last
// emission time.
func (g *Gyroscope) publishStatus() {
	now := g.now()
	if now-g.statusLastPublish < statusIntervalUs {
		return
	}

	g.sink.PublishStatus(Status{
		DeviceID:        g.deviceID,
		ErrorCount:      g.errorCount,
		FullScaleRange:  g.fullRange,
		Rotation:        g.rotation,
		MeasureRateHz:   g.updateRate,
		Temperature:     g.temperature,
		VibrationMetric: g.vibration.vibrationMetric,
		ConingVibration: g.vibration.coningVibration,
		Clipping:        g.clipping,
		Timestamp:       now,
	})

	g.statusLastPublish = now
}

// resetIntegrator clears the accumulation, both counters, the per-window
// clip count and the previous timestamp together.
func (g *Gyroscope) resetIntegrator() {
	g.integratorSamples = 0
	g.integratorFIFOSamples = 0
	g.integrationRaw = mgl64.Vec3{}
	g.integratorClipping = 0
	g.timestampPrev = 0
}

// updateClipLimit recomputes the saturation threshold: 99.9% of the
// representable raw range, but never below int16 full scale. A zero
// scale has no finite raw range, so clipping is impossible.
func (g *Gyroscope) updateClipLimit() {
	if g.scale == 0 {
		g.clipLimit = math.Inf(1)
		return
	}
	g.clipLimit = math.Max(g.fullRange/g.scale*0.999, maxRawValue)
}

func (g *Gyroscope) now() int64 {
	return g.clk.Now().UnixMicro()
}

func sumSamples(s []int16) int64 {
	var total int64
	for _, v := range s {
		total += int64(v)
	}
	return total
}

func clipCount(s []int16, limit float64) uint32 {
	var count uint32
	for _, v := range s {
		if math.Abs(float64(v)) >= limit {
			count++
		}
	}
	return count
}
