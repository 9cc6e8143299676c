package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/linuxmatters/reamp/internal/audio"
	"github.com/linuxmatters/reamp/internal/model"
)

// Segment is the processed output of one partition.
// Samples are interleaved and hold Frames frames.
type Segment struct {
	Index   int
	Range   Range
	Frames  int64
	Samples []float64

	// Warning is a *PartitionReadError when the worker stopped early
	Warning error
}

// worker owns one partition: its own reader, its own models, its own output
type worker struct {
	rng      Range
	cfg      Config
	channels int
	source   audio.Source
	factory  model.Factory
	logger   *slog.Logger
	progress func(done int64)
}

// run processes the partition. The returned error is fatal for the whole run;
// read failures are recorded on the segment instead.
func (w *worker) run(ctx context.Context) (*Segment, error) {
	seg := &Segment{Index: w.rng.Index, Range: w.rng}

	adapter, err := model.NewAdapter(w.factory, w.channels, w.cfg.BufferSize)
	if err != nil {
		return seg, err
	}

	reader, err := w.source.OpenReader()
	if err != nil {
		seg.Warning = &PartitionReadError{Partition: w.rng.Index, Frame: w.rng.Start, Err: err}
		return seg, nil
	}
	defer reader.Close()

	in := make([]float64, w.cfg.BufferSize*w.channels)
	out := make([]float64, w.cfg.BufferSize*w.channels)

	position := max(0, w.rng.Start-int64(w.cfg.WarmupFrames))
	if err := reader.SeekFrame(position); err != nil {
		seg.Warning = &PartitionReadError{Partition: w.rng.Index, Frame: position, Err: err}
		return seg, nil
	}

	// Warm-up output is discarded; only the model state is kept
	for position < w.rng.Start {
		if err := ctx.Err(); err != nil {
			return seg, err
		}
		want := int(min(int64(w.cfg.BufferSize), w.rng.Start-position))
		n, err := reader.ReadFrames(in[:want*w.channels])
		n = min(n, want)
		if n > 0 {
			adapter.Process(in, out, n)
			adapter.Finalize(n)
			position += int64(n)
		}
		if err != nil || n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			seg.Warning = &PartitionReadError{Partition: w.rng.Index, Frame: position, Err: err}
			return seg, nil
		}
	}
	if w.cfg.WarmupFrames > 0 && w.rng.Start > 0 {
		w.logger.Debug("worker: warm-up complete",
			"partition", w.rng.Index,
			"frames", w.rng.Start-max(0, w.rng.Start-int64(w.cfg.WarmupFrames)))
	}

	seg.Samples = make([]float64, 0, w.rng.Frames()*int64(w.channels))
	for position < w.rng.End {
		if err := ctx.Err(); err != nil {
			return seg, err
		}

		// Never read past the range end
		want := int(min(int64(w.cfg.BufferSize), w.rng.End-position))
		n, err := reader.ReadFrames(in[:want*w.channels])
		n = min(n, want)
		if n > 0 {
			adapter.Process(in, out, n)
			adapter.Finalize(n)
			seg.Samples = append(seg.Samples, out[:n*w.channels]...)
			position += int64(n)
			seg.Frames += int64(n)
			if w.progress != nil {
				w.progress(seg.Frames)
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				seg.Warning = &PartitionReadError{Partition: w.rng.Index, Frame: position, Err: err}
			}
			break
		}
		if n == 0 {
			break
		}
	}

	return seg, nil
}
