package audio

import "math"

// Levels accumulates signal statistics over written samples
type Levels struct {
	Peak       float64 // Highest absolute sample value before clipping
	Samples    int64   // Number of samples seen (all channels)
	Clipped    int64   // Samples outside [-1.0, 1.0]
	sumSquares float64
}

// Add records one sample
func (l *Levels) Add(sample float64) {
	abs := math.Abs(sample)
	if abs > l.Peak {
		l.Peak = abs
	}
	if abs > 1.0 {
		l.Clipped++
	}
	l.sumSquares += sample * sample
	l.Samples++
}

// RMS returns the root mean square level
func (l Levels) RMS() float64 {
	if l.Samples == 0 {
		return 0
	}
	return math.Sqrt(l.sumSquares / float64(l.Samples))
}

// PeakDB returns the peak level in dBFS
func (l Levels) PeakDB() float64 {
	return toDB(l.Peak)
}

// RMSDB returns the RMS level in dBFS
func (l Levels) RMSDB() float64 {
	return toDB(l.RMS())
}

func toDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
