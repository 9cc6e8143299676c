package pipeline

import "fmt"

// Range is a half-open span of frames [Start, End) owned by one worker
type Range struct {
	Index int
	Start int64
	End   int64
}

// Frames returns the length of the range
func (r Range) Frames() int64 {
	return r.End - r.Start
}

// Plan divides totalFrames into contiguous, non-overlapping ranges.
//
// The worker count starts at cfg.Threads (or hardware when 0) and shrinks
// until every worker owns at least cfg.MinChunksPerThread whole buffers,
// never below one. Interior ranges are a whole number of buffers; the last
// range absorbs the remainder, including any trailing partial buffer.
func Plan(totalFrames int64, cfg Config, hardware int) ([]Range, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if totalFrames < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrInvalidConfiguration, totalFrames)
	}
	if totalFrames == 0 {
		return []Range{{Index: 0, Start: 0, End: 0}}, nil
	}

	workers := cfg.Threads
	if workers == 0 {
		workers = max(hardware, 1)
	}

	bufferSize := int64(cfg.BufferSize)
	numChunks := totalFrames / bufferSize
	for workers > 1 && numChunks/int64(workers) < int64(cfg.MinChunksPerThread) {
		workers--
	}
	workers = max(workers, 1)

	span := numChunks / int64(workers) * bufferSize
	ranges := make([]Range, workers)
	for i := range ranges {
		start := int64(i) * span
		end := start + span
		if i == workers-1 {
			end = totalFrames
		}
		ranges[i] = Range{Index: i, Start: start, End: end}
	}
	return ranges, nil
}
