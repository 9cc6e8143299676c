package pipeline

import (
	"cmp"
	"io"
	"slices"
)

// Sink receives interleaved frames in output order
type Sink interface {
	// WriteFrames writes every frame in samples and returns the number of
	// frames accepted
	WriteFrames(samples []float64) (int, error)
}

// assemble writes segments to sink in ascending partition index, whatever
// order they are given in. Each segment's samples are released once written.
func assemble(segments []*Segment, sink Sink) (int64, error) {
	ordered := slices.Clone(segments)
	slices.SortFunc(ordered, func(a, b *Segment) int {
		return cmp.Compare(a.Index, b.Index)
	})

	var written int64
	for _, seg := range ordered {
		if seg.Frames == 0 {
			continue
		}

		n, err := sink.WriteFrames(seg.Samples)
		if err != nil {
			return written, &WriteError{Segment: seg.Index, Err: err}
		}
		written += int64(n)
		if int64(n) != seg.Frames {
			return written, &WriteError{Segment: seg.Index, Err: io.ErrShortWrite}
		}
		seg.Samples = nil
	}
	return written, nil
}
