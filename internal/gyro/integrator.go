// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import "github.com/go-gl/mathgl/mgl64"

// Integrator accumulates single calibrated samples over time and signals
// readiness once a full window has been integrated. The batch path has
// its own trapezoidal accumulation inside Gyroscope; this strategy only
// serves the single-sample Update path, so both paths share the same
// flush and report logic.
type Integrator interface {
	// Put folds one sample into the running integral. When ready is
	// true, delta holds the integrated angle in radians and dtUs the
	// timespan it covers; the integrator has already reset itself.
	Put(timestampUs int64, val mgl64.Vec3) (delta mgl64.Vec3, dtUs uint32, ready bool)

	// Reset discards any partial accumulation.
	Reset()
}

// windowIntegrator is a trapezoidal integrator that becomes ready once
// the configured time window has elapsed since the first sample.
type windowIntegrator struct {
	windowUs int64

	integral mgl64.Vec3
	lastVal  mgl64.Vec3
	startUs  int64 // first sample of the current window, 0 = empty
	lastUs   int64
}

// NewWindowIntegrator returns an Integrator that reports a delta angle
// roughly every windowUs microseconds of sample time.
func NewWindowIntegrator(windowUs int64) Integrator {
	if windowUs <= 0 {
		windowUs = DefaultIntegratorWindowUs
	}
	return &windowIntegrator{windowUs: windowUs}
}

func (w *windowIntegrator) Put(timestampUs int64, val mgl64.Vec3) (mgl64.Vec3, uint32, bool) {
	if w.startUs == 0 || timestampUs <= w.lastUs {
		// First sample of a window, or time went backwards: restart.
		w.startUs = timestampUs
		w.lastUs = timestampUs
		w.lastVal = val
		w.integral = mgl64.Vec3{}
		return mgl64.Vec3{}, 0, false
	}

	dt := float64(timestampUs-w.lastUs) * 1e-6
	w.integral = w.integral.Add(val.Add(w.lastVal).Mul(0.5 * dt))
	w.lastVal = val
	w.lastUs = timestampUs

	if timestampUs-w.startUs < w.windowUs {
		return mgl64.Vec3{}, 0, false
	}

	delta := w.integral
	dtUs := uint32(timestampUs - w.startUs)

	// The last sample seeds the next window so the trapezoid continues
	// across the flush boundary.
	w.startUs = timestampUs
	w.integral = mgl64.Vec3{}

	return delta, dtUs, true
}

func (w *windowIntegrator) Reset() {
	w.startUs = 0
	w.lastUs = 0
	w.lastVal = mgl64.Vec3{}
	w.integral = mgl64.Vec3{}
}
