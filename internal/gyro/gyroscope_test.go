package gyro_test

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// captureSink records everything the pipeline publishes.
type captureSink struct {
	readings []gyro.Reading
	deltas   []gyro.DeltaAngle
	batches  []gyro.BatchReport
	statuses []gyro.Status
}

func (s *captureSink) PublishReading(r gyro.Reading) { s.readings = append(s.readings, r) }

func (s *captureSink) PublishDeltaAngle(d gyro.DeltaAngle) { s.deltas = append(s.deltas, d) }

func (s *captureSink) PublishBatch(b gyro.BatchReport) { s.batches = append(s.batches, b) }

func (s *captureSink) PublishStatus(st gyro.Status) { s.statuses = append(s.statuses, st) }

// newMockClock returns a mock clock advanced away from the epoch so the
// first status snapshot is not suppressed by a zero timestamp.
func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Add(24 * time.Hour)
	return clk
}

// constantBatch builds a batch with every axis held at the given raw value.
func constantBatch(ts int64, dt float64, n uint8, x, y, z int16) gyro.Batch {
	b := gyro.Batch{TimestampSample: ts, DT: dt, Samples: n}
	for i := 0; i < int(n); i++ {
		b.X[i] = x
		b.Y[i] = y
		b.Z[i] = z
	}
	return b
}

// TestBatchTrapezoidArithmetic pins down the exact trapezoid arithmetic:
// four batches of four samples at 100 counts, scale 0.01, no offset,
// identity rotation. The first batch enters with a zero seed sample, so
// its contribution is 0.5*(0+100) + 3*100 = 350; each later batch adds
// 0.5*(100+100) + 3*100 = 400.
func TestBatchTrapezoidArithmetic(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000, // 1000 µs interval → 4 batches per 4 ms window
		Clock:      newMockClock(),
	}, sink)

	ts := int64(1_000_000)
	for i := 0; i < 4; i++ {
		g.UpdateBatch(constantBatch(ts, 1000, 4, 100, 0, 0))
		ts += 4000
	}

	require.Len(t, sink.deltas, 1, "expected exactly one flush after four batches")
	d := sink.deltas[0]

	sum := 350.0 + 3*400.0
	want := sum * 0.01 * 1e-6 * 1000

	assert.InDelta(t, want, d.DeltaAngle[0], 1e-12)
	assert.InDelta(t, 0, d.DeltaAngle[1], 1e-12)
	assert.InDelta(t, 0, d.DeltaAngle[2], 1e-12)
	assert.Equal(t, uint32(16*1000), d.DT, "dt must be fifo_samples × dt")
	assert.Equal(t, uint32(16), d.Samples)

	// Every reading is the calibrated batch average: 100 × 0.01 = 1 rad/s.
	require.Len(t, sink.readings, 4)
	for _, r := range sink.readings {
		assert.InDelta(t, 1.0, r.X, 1e-12)
	}
}

// TestConstantRateIntegration checks that after the trapezoid is seeded,
// a constant input rate integrates to rate × time exactly.
func TestConstantRateIntegration(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      newMockClock(),
	}, sink)

	ts := int64(1_000_000)
	for i := 0; i < 8; i++ {
		g.UpdateBatch(constantBatch(ts, 1000, 4, 100, 0, 0))
		ts += 4000
	}

	require.Len(t, sink.deltas, 2)

	// Second window is fully seeded: 16 samples × 1000 µs at 1 rad/s.
	d := sink.deltas[1]
	totalTime := 16 * 1000 * 1e-6
	assert.InDelta(t, 1.0*totalTime, d.DeltaAngle[0], 1e-9)
}

// TestReadingPerInputEvent: exactly one calibrated reading per call,
// flush or no flush.
func TestReadingPerInputEvent(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      newMockClock(),
	}, sink)

	ts := int64(1_000_000)
	for i := 0; i < 10; i++ {
		g.UpdateBatch(constantBatch(ts, 1000, 4, 100, 0, 0))
		ts += 4000
	}
	for i := 0; i < 5; i++ {
		g.Update(ts, 10, 0, 0)
		ts += 1000
	}

	assert.Len(t, sink.readings, 15)
	assert.Len(t, sink.batches, 10, "one passthrough per batch call")
}

// TestClipCounters: per-window counts reset on flush, lifetime counters
// only ever grow.
func TestClipCounters(t *testing.T) {
	sink := &captureSink{}
	clk := newMockClock()
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		Range:      250, // 250/0.01*0.999 < 32767, so the int16 floor applies
		SampleRate: 1000,
		Clock:      clk,
	}, sink)

	ts := int64(1_000_000)
	next := func(x int16) {
		g.UpdateBatch(constantBatch(ts, 1000, 4, x, 0, 0))
		ts += 4000
		clk.Add(101 * time.Millisecond) // force a status after every batch
	}

	// First window: one saturated batch (4 clipped samples), three clean.
	next(32767)
	next(100)
	next(100)
	next(100)

	// Second window: all clean.
	for i := 0; i < 4; i++ {
		next(100)
	}

	require.Len(t, sink.deltas, 2)
	assert.Equal(t, uint32(4), sink.deltas[0].ClipCount)
	assert.Equal(t, uint32(0), sink.deltas[1].ClipCount, "window counter must reset on flush")

	require.NotEmpty(t, sink.statuses)
	var prev [3]uint32
	for _, st := range sink.statuses {
		for axis := 0; axis < 3; axis++ {
			assert.GreaterOrEqual(t, st.Clipping[axis], prev[axis],
				"lifetime clip counters must be monotonic")
		}
		prev = st.Clipping
	}
	assert.Equal(t, uint32(4), prev[0])
	assert.Equal(t, uint32(0), prev[1])
}

// TestTimestampGapResets: a batch arriving later than twice its own span
// discards the accumulation without emitting a report.
func TestTimestampGapResets(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      newMockClock(),
	}, sink)

	g.UpdateBatch(constantBatch(1_000_000, 1000, 4, 100, 0, 0))
	g.UpdateBatch(constantBatch(1_004_000, 1000, 4, 100, 0, 0))
	g.UpdateBatch(constantBatch(1_008_000, 1000, 4, 100, 0, 0))

	// Gap of 20 ms, far beyond 2 × 4 × 1000 µs.
	g.UpdateBatch(constantBatch(1_028_000, 1000, 4, 100, 0, 0))
	assert.Empty(t, sink.deltas, "reset path must not emit a report")

	// Accumulation restarts from the gap batch: three more contiguous
	// batches complete a fresh window of 16 samples.
	g.UpdateBatch(constantBatch(1_032_000, 1000, 4, 100, 0, 0))
	g.UpdateBatch(constantBatch(1_036_000, 1000, 4, 100, 0, 0))
	g.UpdateBatch(constantBatch(1_040_000, 1000, 4, 100, 0, 0))

	require.Len(t, sink.deltas, 1)
	assert.Equal(t, uint32(16), sink.deltas[0].Samples)
}

// TestStatusThrottle: over T ms of input, ⌊T/100⌋ (±1) snapshots.
func TestStatusThrottle(t *testing.T) {
	sink := &captureSink{}
	clk := newMockClock()
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      clk,
	}, sink)

	ts := int64(1_000_000)
	for i := 0; i < 1050; i++ {
		g.Update(ts, 10, 0, 0)
		ts += 1000
		clk.Add(time.Millisecond)
	}

	count := len(sink.statuses)
	assert.GreaterOrEqual(t, count, 10)
	assert.LessOrEqual(t, count, 11)
}

// TestVibrationMetricTracksAmplitude: a sinusoidal rate signal produces a
// vibration metric that grows with the signal amplitude.
func TestVibrationMetricTracksAmplitude(t *testing.T) {
	run := func(amplitude float64) float64 {
		sink := &captureSink{}
		clk := newMockClock()
		g := gyro.New(gyro.Config{
			Scale:      0.01,
			SampleRate: 1000,
			Clock:      clk,
		}, sink)

		const dtUs = 1000.0
		freq := 25.0 // Hz
		ts := int64(1_000_000)
		sampleIdx := 0

		for i := 0; i < 2000; i++ {
			b := gyro.Batch{TimestampSample: ts, DT: dtUs, Samples: 4}
			for j := 0; j < 4; j++ {
				tSec := float64(sampleIdx) * dtUs * 1e-6
				b.X[j] = int16(amplitude * math.Sin(2*math.Pi*freq*tSec))
				sampleIdx++
			}
			g.UpdateBatch(b)
			ts += 4000
			clk.Add(101 * time.Millisecond)
		}

		require.NotEmpty(t, sink.statuses)
		return sink.statuses[len(sink.statuses)-1].VibrationMetric
	}

	m1 := run(1000)
	m2 := run(2000)

	assert.Greater(t, m1, 0.0)
	assert.Greater(t, m2, 1.5*m1, "doubling the amplitude must raise the metric")
}

// TestConingVibrationAlternatingAxes: coning measures direction change
// between successive delta angles, so a signal whose axis alternates
// window to window must raise the metric, while a fixed-direction signal
// of the same strength must leave it at exactly zero.
func TestConingVibrationAlternatingAxes(t *testing.T) {
	run := func(alternate bool) gyro.Status {
		sink := &captureSink{}
		clk := newMockClock()
		g := gyro.New(gyro.Config{
			Scale:      0.01,
			SampleRate: 1000,
			Clock:      clk,
		}, sink)

		ts := int64(1_000_000)
		for w := 0; w < 40; w++ {
			var x, y int16 = 100, 0
			if alternate && w%2 == 1 {
				x, y = 0, 100
			}
			for i := 0; i < 4; i++ {
				g.UpdateBatch(constantBatch(ts, 1000, 4, x, y, 0))
				ts += 4000
			}
			clk.Add(101 * time.Millisecond)
		}

		require.Len(t, sink.deltas, 40)
		require.NotEmpty(t, sink.statuses)
		return sink.statuses[len(sink.statuses)-1]
	}

	alternating := run(true)
	fixed := run(false)

	assert.Greater(t, alternating.ConingVibration, 0.0,
		"axis changes between windows must register as coning")
	assert.Zero(t, fixed.ConingVibration,
		"collinear delta angles have no coning component")

	// The high-frequency metric reacts to the alternation too, but the
	// coning metric must not simply mirror it: a fixed-direction signal
	// still carries a nonzero diff on the very first window.
	assert.Greater(t, alternating.VibrationMetric, 0.0)
	assert.Greater(t, fixed.VibrationMetric, 0.0)
}

// TestZeroScaleDisablesClipping: a degenerate scale must not produce an
// infinite or NaN threshold that counts every sample as clipped.
func TestZeroScaleDisablesClipping(t *testing.T) {
	sink := &captureSink{}
	clk := newMockClock()
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		Range:      250,
		SampleRate: 1000,
		Clock:      clk,
	}, sink)

	g.SetCalibration(mgl64.Vec3{}, 0)

	ts := int64(1_000_000)
	for i := 0; i < 4; i++ {
		g.UpdateBatch(constantBatch(ts, 1000, 4, 32767, -32768, 32767))
		ts += 4000
		clk.Add(101 * time.Millisecond)
	}

	require.NotEmpty(t, sink.statuses)
	last := sink.statuses[len(sink.statuses)-1]
	assert.Equal(t, [3]uint32{0, 0, 0}, last.Clipping)
}

// TestInvalidBatchRejected: empty or oversized batches mutate nothing and
// publish nothing.
func TestInvalidBatchRejected(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      newMockClock(),
	}, sink)

	g.UpdateBatch(gyro.Batch{TimestampSample: 1_000_000, DT: 1000, Samples: 0})
	g.UpdateBatch(gyro.Batch{TimestampSample: 1_000_000, DT: 1000, Samples: 17})

	assert.Empty(t, sink.readings)
	assert.Empty(t, sink.deltas)
	assert.Empty(t, sink.batches)
	assert.Empty(t, sink.statuses)
}

// TestRotationAppliedBeforeScale: with a yaw-90 mount, an x-axis rate
// shows up on y, scaled and offset in the rotated frame.
func TestRotationAppliedBeforeScale(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Rotation:   gyro.RotationYaw90,
		Scale:      0.01,
		SampleRate: 1000,
		Clock:      newMockClock(),
	}, sink)
	g.SetCalibration(mgl64.Vec3{0, 0.5, 0}, 0.01)

	g.Update(1_000_000, 100, 0, 0)

	require.Len(t, sink.readings, 1)
	r := sink.readings[0]
	assert.InDelta(t, 0.0, r.X, 1e-9)
	assert.InDelta(t, 100*0.01-0.5, r.Y, 1e-9)
	assert.InDelta(t, 0.0, r.Z, 1e-9)
}

// stubIntegrator flushes every n samples with the plain sum, standing in
// for the injected single-sample strategy.
type stubIntegrator struct {
	every int
	n     int
	acc   mgl64.Vec3
}

func (s *stubIntegrator) Put(_ int64, val mgl64.Vec3) (mgl64.Vec3, uint32, bool) {
	s.n++
	s.acc = s.acc.Add(val)
	if s.n%s.every != 0 {
		return mgl64.Vec3{}, 0, false
	}
	delta := s.acc
	s.acc = mgl64.Vec3{}
	return delta, uint32(s.every * 1000), true
}

func (s *stubIntegrator) Reset() {
	s.n = 0
	s.acc = mgl64.Vec3{}
}

// TestSingleSampleStrategyFlush: the pluggable integrator drives the
// shared flush logic, and the per-window counters reset afterwards.
func TestSingleSampleStrategyFlush(t *testing.T) {
	sink := &captureSink{}
	g := gyro.New(gyro.Config{
		Scale:      0.01,
		SampleRate: 1000,
		Integrator: &stubIntegrator{every: 3},
		Clock:      newMockClock(),
	}, sink)

	ts := int64(1_000_000)
	for i := 0; i < 6; i++ {
		g.Update(ts, 100, 0, 0)
		ts += 1000
	}

	require.Len(t, sink.deltas, 2)
	for _, d := range sink.deltas {
		assert.Equal(t, uint32(3), d.Samples, "samples counts update calls since last reset")
		assert.InDelta(t, 3.0, d.DeltaAngle[0], 1e-9) // 3 × (100 × 0.01)
		assert.Equal(t, uint32(3000), d.DT)
	}
}
