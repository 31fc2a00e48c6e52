package gyro

import "github.com/go-gl/mathgl/mgl64"

// vibrationTracker keeps exponentially smoothed vibration metrics over
// successive flushed delta angles. There is no reset: the averages run
// for the lifetime of the owning Gyroscope.
type vibrationTracker struct {
	vibrationMetric float64
	coningVibration float64
	prevDeltaAngle  mgl64.Vec3
}

// update folds one flushed delta angle into the metrics.
func (v *vibrationTracker) update(deltaAngle mgl64.Vec3) {
	// High frequency vibe: filtered length of (delta_angle - prev).
	diff := deltaAngle.Sub(v.prevDeltaAngle)
	v.vibrationMetric = 0.99*v.vibrationMetric + 0.01*diff.Len()

	// Coning metric: filtered length of (delta_angle x prev).
	coning := deltaAngle.Cross(v.prevDeltaAngle)
	v.coningVibration = 0.99*v.coningVibration + 0.01*coning.Len()

	v.prevDeltaAngle = deltaAngle
}
