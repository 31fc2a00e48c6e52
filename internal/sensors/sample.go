package sensors

// Sample is one raw single-sample gyro measurement in counts.
type Sample struct {
	TimestampUs int64
	X, Y, Z     float64
}

// SampleSource is anything that can provide raw samples over time:
// serial feed, simulated signal, replay from file, etc.
type SampleSource interface {
	Next() (Sample, error)
}
