package sensors

import (
	"math"

	"github.com/relabs-tech/gyro_pipeline/internal/gyro"
)

// SimSource generates a sinusoidal rate signal as FIFO batches, for
// running the pipeline without hardware.
type SimSource struct {
	amplitude float64 // raw counts
	freqHz    float64
	dtUs      float64

	timestampUs int64
	sampleIdx   int64
}

// NewSimSource creates a simulated gyro producing amplitude·sin(2πft)
// on the x axis at the given sample rate.
func NewSimSource(amplitude, freqHz float64, sampleRate uint16) *SimSource {
	return &SimSource{
		amplitude:   amplitude,
		freqHz:      freqHz,
		dtUs:        1e6 / float64(sampleRate),
		timestampUs: 1,
	}
}

// ReadBatch returns the next 8 samples of the synthetic signal.
func (s *SimSource) ReadBatch() gyro.Batch {
	const n = 8

	b := gyro.Batch{
		TimestampSample: s.timestampUs,
		DT:              s.dtUs,
		Samples:         n,
	}

	for i := 0; i < n; i++ {
		tSec := float64(s.sampleIdx) * s.dtUs * 1e-6
		b.X[i] = int16(s.amplitude * math.Sin(2*math.Pi*s.freqHz*tSec))
		s.sampleIdx++
	}

	s.timestampUs += int64(n * s.dtUs)
	return b
}
