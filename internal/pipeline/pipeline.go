// Package pipeline applies a sequential model to an audio source using
// parallel workers, one per contiguous partition of the input.
//
// Every worker starts with cold model state at its partition start, so with
// more than one worker the output may differ from a single-worker run for a
// model-dependent number of frames after each partition boundary. Setting
// Config.WarmupFrames to at least the model's memory length removes the
// difference at the cost of reading those frames twice. A single-worker run
// is the reference output and is deterministic.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/reamp/internal/audio"
	"github.com/linuxmatters/reamp/internal/model"
)

// Progress reports the frames processed so far by one worker
type Progress struct {
	Worker  int
	Workers int
	Done    int64
	Total   int64
}

// Result summarises a completed run
type Result struct {
	RunID         string
	Ranges        []Range
	Segments      []Segment // Samples are released after writing
	Warnings      []error
	FramesWritten int64
	Elapsed       time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the structured logger. Handlers must be safe for
// concurrent use.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgress sets a callback invoked after every processed buffer.
// Calls are serialised.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// WithHardwareThreads overrides the detected CPU count used when
// Config.Threads is 0
func WithHardwareThreads(n int) Option {
	return func(p *Pipeline) {
		p.hardware = n
	}
}

// Pipeline runs a model over a source and writes the result to a sink
type Pipeline struct {
	cfg      Config
	factory  model.Factory
	logger   *slog.Logger
	progress func(Progress)
	hardware int

	progressMu sync.Mutex
}

// New creates a pipeline. factory is called once per channel per worker.
func New(cfg Config, factory model.Factory, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		factory:  factory,
		logger:   slog.New(slog.DiscardHandler),
		hardware: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run plans partitions, processes them in parallel and writes the segments to
// sink in input order. Read failures are returned as Result.Warnings; model
// creation and write failures are fatal. Run does not close src or sink.
func (p *Pipeline) Run(ctx context.Context, src audio.Source, sink Sink) (*Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	info := src.Info()
	if info.Channels < 1 {
		return nil, fmt.Errorf("%w: source has %d channels", ErrInvalidConfiguration, info.Channels)
	}
	if p.factory == nil {
		return nil, fmt.Errorf("%w: no model factory", model.ErrModelLoad)
	}

	ranges, err := Plan(info.Frames, p.cfg, p.hardware)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline: planned partitions",
		"frames", info.Frames,
		"channels", info.Channels,
		"buffer_size", p.cfg.BufferSize,
		"requested_threads", p.cfg.Threads,
		"workers", len(ranges),
		"warmup_frames", p.cfg.WarmupFrames)

	segments := make([]*Segment, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, rng := range ranges {
		w := &worker{
			rng:      rng,
			cfg:      p.cfg,
			channels: info.Channels,
			source:   src,
			factory:  p.factory,
			logger:   logger,
			progress: p.reporter(rng, len(ranges)),
		}
		g.Go(func() error {
			workerStart := time.Now()
			seg, err := w.run(gctx)
			segments[i] = seg
			if err != nil {
				return fmt.Errorf("partition %d: %w", rng.Index, err)
			}
			logger.Debug("worker: partition complete",
				"partition", rng.Index,
				"start", rng.Start,
				"end", rng.End,
				"frames", seg.Frames,
				"elapsed", time.Since(workerStart))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("pipeline: run failed", "error", err)
		return nil, err
	}

	result := &Result{
		RunID:    runID,
		Ranges:   ranges,
		Segments: make([]Segment, len(segments)),
	}
	for _, seg := range segments {
		if seg.Warning != nil {
			logger.Warn("pipeline: partition ended early",
				"partition", seg.Index,
				"frames", seg.Frames,
				"expected", seg.Range.Frames(),
				"error", seg.Warning)
			result.Warnings = append(result.Warnings, seg.Warning)
		}
	}

	written, err := assemble(segments, sink)
	result.FramesWritten = written
	if err != nil {
		logger.Error("pipeline: assembly failed", "error", err, "frames_written", written)
		return nil, err
	}

	for i, seg := range segments {
		result.Segments[i] = *seg
	}
	result.Elapsed = time.Since(startTime)
	logger.Info("pipeline: run complete",
		"frames_written", written,
		"warnings", len(result.Warnings),
		"elapsed", result.Elapsed)
	return result, nil
}

// reporter returns a per-worker progress hook, or nil without a callback
func (p *Pipeline) reporter(rng Range, workers int) func(int64) {
	if p.progress == nil {
		return nil
	}
	return func(done int64) {
		p.progressMu.Lock()
		defer p.progressMu.Unlock()
		p.progress(Progress{
			Worker:  rng.Index,
			Workers: workers,
			Done:    done,
			Total:   rng.Frames(),
		})
	}
}
