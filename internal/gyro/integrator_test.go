package gyro_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

func TestWindowIntegratorConstantRate(t *testing.T) {
	integ := gyro.NewWindowIntegrator(4000)

	ts := int64(1_000_000)
	val := mgl64.Vec3{1, 0, 0} // 1 rad/s

	// First sample only seeds the window.
	_, _, ready := integ.Put(ts, val)
	require.False(t, ready)

	var delta mgl64.Vec3
	var dtUs uint32
	for i := 0; i < 4; i++ {
		ts += 1000
		delta, dtUs, ready = integ.Put(ts, val)
	}

	require.True(t, ready, "4 ms of samples must complete the window")
	assert.Equal(t, uint32(4000), dtUs)
	assert.InDelta(t, 1.0*4000e-6, delta[0], 1e-12)
	assert.InDelta(t, 0, delta[1], 1e-12)
	assert.InDelta(t, 0, delta[2], 1e-12)
}

func TestWindowIntegratorContinuesAcrossFlush(t *testing.T) {
	integ := gyro.NewWindowIntegrator(4000)

	ts := int64(1_000_000)
	val := mgl64.Vec3{2, 0, 0}

	integ.Put(ts, val)
	ready := false
	for !ready {
		ts += 1000
		_, _, ready = integ.Put(ts, val)
	}

	// The flush sample seeds the next window: another full window must
	// integrate without losing the boundary trapezoid.
	var delta mgl64.Vec3
	ready = false
	for !ready {
		ts += 1000
		delta, _, ready = integ.Put(ts, val)
	}
	assert.InDelta(t, 2.0*4000e-6, delta[0], 1e-12)
}

func TestWindowIntegratorRestartsOnBackwardsTime(t *testing.T) {
	integ := gyro.NewWindowIntegrator(4000)

	val := mgl64.Vec3{1, 0, 0}
	integ.Put(1_000_000, val)
	integ.Put(1_003_000, val)

	// Time going backwards restarts the window instead of producing a
	// negative contribution.
	_, _, ready := integ.Put(1_002_000, val)
	require.False(t, ready)

	// A full window is needed again from the restart point.
	_, _, ready = integ.Put(1_005_000, val)
	assert.False(t, ready)
	_, _, ready = integ.Put(1_006_000, val)
	assert.True(t, ready)
}

func TestWindowIntegratorReset(t *testing.T) {
	integ := gyro.NewWindowIntegrator(4000)

	val := mgl64.Vec3{1, 0, 0}
	integ.Put(1_000_000, val)
	integ.Put(1_003_000, val)
	integ.Reset()

	_, _, ready := integ.Put(1_004_000, val)
	require.False(t, ready, "reset must discard the partial window")
	_, _, ready = integ.Put(1_008_000, val)
	assert.True(t, ready)
}
