package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/linuxmatters/reamp/internal/audio/audiotest"
	"github.com/linuxmatters/reamp/internal/model"
)

// identity passes samples through unchanged
func identity() (model.Model, error) {
	return model.NewLinear([]float64{1}, 0), nil
}

// runningSum returns a factory for a model whose output is the sum of the
// last window inputs. Its state is the previous window-1 inputs.
func runningSum(window int) model.Factory {
	taps := make([]float64, window)
	for i := range taps {
		taps[i] = 1
	}
	return func() (model.Model, error) {
		return model.NewLinear(taps, 0), nil
	}
}

func run(t *testing.T, cfg Config, factory model.Factory, src *audiotest.MockSource, opts ...Option) (*Result, *audiotest.MockSink) {
	t.Helper()
	sink := audiotest.NewMockSink(src.Info().Channels)
	result, err := New(cfg, factory, opts...).Run(context.Background(), src, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result, sink
}

func TestRunSingleWorkerIsDeterministic(t *testing.T) {
	src := audiotest.NewSineSource(48000, 2, 20000, 440)
	cfg := Config{BufferSize: 256, Threads: 1, MinChunksPerThread: 4}

	_, first := run(t, cfg, runningSum(16), src)
	_, second := run(t, cfg, runningSum(16), src)

	if len(first.Samples) != len(second.Samples) {
		t.Fatalf("Run lengths differ: %d vs %d", len(first.Samples), len(second.Samples))
	}
	for i := range first.Samples {
		if first.Samples[i] != second.Samples[i] {
			t.Fatalf("Sample %d differs between runs: %v vs %v", i, first.Samples[i], second.Samples[i])
		}
	}
}

// TestRunMultiWorkerPreservesFrames uses a frame count that no buffer size
// or worker count divides, then checks every input frame appears exactly once
// and in order.
func TestRunMultiWorkerPreservesFrames(t *testing.T) {
	const total = 10007
	src := audiotest.NewRampSource(2, total)
	cfg := Config{BufferSize: 128, Threads: 3, MinChunksPerThread: 4}

	result, sink := run(t, cfg, identity, src)

	if len(result.Ranges) != 3 {
		t.Fatalf("Got %d workers, want 3", len(result.Ranges))
	}
	if sink.Frames() != total {
		t.Fatalf("Output has %d frames, want %d", sink.Frames(), total)
	}
	if result.FramesWritten != total {
		t.Errorf("FramesWritten = %d, want %d", result.FramesWritten, total)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", result.Warnings)
	}
	for f := int64(0); f < total; f++ {
		for ch := 0; ch < 2; ch++ {
			if got, want := sink.Samples[f*2+int64(ch)], src.Sample(f, ch); got != want {
				t.Fatalf("Frame %d channel %d = %v, want %v", f, ch, got, want)
			}
		}
	}
	if src.Opened() != 3 {
		t.Errorf("Opened %d readers, want one per worker", src.Opened())
	}
}

// TestRunOrderIgnoresCompletionOrder makes earlier partitions read slower so
// workers finish in reverse, and checks the output is still in input order.
func TestRunOrderIgnoresCompletionOrder(t *testing.T) {
	const total = 4000
	src := audiotest.NewRampSource(1, total)
	src.ReadDelay = func(position int64) time.Duration {
		return time.Duration((total-position)/250) * time.Millisecond
	}
	cfg := Config{BufferSize: 250, Threads: 4, MinChunksPerThread: 4}

	var mu sync.Mutex
	var finished []int
	result, sink := run(t, cfg, identity, src, WithProgress(func(p Progress) {
		if p.Done == p.Total {
			mu.Lock()
			finished = append(finished, p.Worker)
			mu.Unlock()
		}
	}))

	if len(result.Ranges) != 4 {
		t.Fatalf("Got %d workers, want 4", len(result.Ranges))
	}
	t.Logf("Completion order: %v", finished)

	if len(sink.Writes) != 4 {
		t.Fatalf("Got %d segment writes, want 4", len(sink.Writes))
	}
	for i, write := range sink.Writes {
		start := result.Ranges[i].Start
		if got, want := write[0], src.Sample(start, 0); got != want {
			t.Errorf("Write %d begins with %v, want frame %d (%v)", i, got, start, want)
		}
	}
	for f := int64(0); f < total; f++ {
		if sink.Samples[f] != src.Sample(f, 0) {
			t.Fatalf("Frame %d out of order", f)
		}
	}
}

// TestRunBoundaryArtifacts compares a four-worker run against the
// single-worker reference using a windowed running sum. Cold state at each
// partition start may only change the window-1 frames after the boundary.
func TestRunBoundaryArtifacts(t *testing.T) {
	const (
		total  = 8000
		window = 8
	)
	src := audiotest.NewRampSource(1, total)

	reference, refSink := run(t, Config{BufferSize: 100, Threads: 1, MinChunksPerThread: 4}, runningSum(window), src)
	if len(reference.Ranges) != 1 {
		t.Fatalf("Reference used %d workers, want 1", len(reference.Ranges))
	}

	parallel, parSink := run(t, Config{BufferSize: 100, Threads: 4, MinChunksPerThread: 4}, runningSum(window), src)
	if len(parallel.Ranges) != 4 {
		t.Fatalf("Parallel run used %d workers, want 4", len(parallel.Ranges))
	}
	if len(parSink.Samples) != len(refSink.Samples) {
		t.Fatalf("Output lengths differ: %d vs %d", len(parSink.Samples), len(refSink.Samples))
	}

	affected := make(map[int64]bool)
	for _, r := range parallel.Ranges[1:] {
		for f := r.Start; f < r.Start+window-1; f++ {
			affected[f] = true
		}
		if parSink.Samples[r.Start] == refSink.Samples[r.Start] {
			t.Errorf("Expected cold-start divergence at boundary %d", r.Start)
		}
	}

	for f := int64(0); f < total; f++ {
		diff := math.Abs(parSink.Samples[f] - refSink.Samples[f])
		if !affected[f] && diff != 0 {
			t.Errorf("Frame %d diverges by %g outside boundary window", f, diff)
		}
	}

	// Warm-up covering the model memory removes every artifact
	_, warmSink := run(t, Config{BufferSize: 100, Threads: 4, MinChunksPerThread: 4, WarmupFrames: window - 1}, runningSum(window), src)
	for f := int64(0); f < total; f++ {
		if warmSink.Samples[f] != refSink.Samples[f] {
			t.Fatalf("Frame %d diverges with warm-up: %v vs %v", f, warmSink.Samples[f], refSink.Samples[f])
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	src := audiotest.NewRampSource(2, 0)

	result, sink := run(t, DefaultConfig(), identity, src)

	if len(result.Ranges) != 1 || result.Ranges[0] != (Range{}) {
		t.Errorf("Ranges = %+v, want one empty range", result.Ranges)
	}
	if sink.Frames() != 0 || len(sink.Writes) != 0 {
		t.Errorf("Sink received %d frames in %d writes, want nothing", sink.Frames(), len(sink.Writes))
	}
	if result.FramesWritten != 0 {
		t.Errorf("FramesWritten = %d, want 0", result.FramesWritten)
	}
}

// TestRunPartitionReadFailure injects a read error at frame 500 of a
// single [0, 1000) partition. The partial output is kept without padding.
func TestRunPartitionReadFailure(t *testing.T) {
	testCases := []struct {
		name       string
		bufferSize int
	}{
		{"failure on buffer boundary", 100},
		{"failure inside a buffer", 300},
		{"failure inside the only buffer", 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := audiotest.NewRampSource(1, 1000)
			src.FailAt = 500
			cfg := Config{BufferSize: tc.bufferSize, Threads: 1, MinChunksPerThread: 1}

			result, sink := run(t, cfg, identity, src)

			if sink.Frames() != 500 {
				t.Errorf("Output has %d frames, want 500", sink.Frames())
			}
			if len(result.Warnings) != 1 {
				t.Fatalf("Got %d warnings, want 1", len(result.Warnings))
			}

			var readErr *PartitionReadError
			if !errors.As(result.Warnings[0], &readErr) {
				t.Fatalf("Warning %v is not a PartitionReadError", result.Warnings[0])
			}
			if readErr.Partition != 0 || readErr.Frame != 500 {
				t.Errorf("Warning at partition %d frame %d, want 0/500", readErr.Partition, readErr.Frame)
			}
			if !errors.Is(readErr, ErrPartitionRead) || !errors.Is(readErr, audiotest.ErrInjected) {
				t.Errorf("Warning %v should match ErrPartitionRead and the cause", readErr)
			}
			if result.Segments[0].Frames != 500 {
				t.Errorf("Segment has %d frames, want 500", result.Segments[0].Frames)
			}
		})
	}
}

// TestRunReadFailureIsLocal checks a failing partition does not stop its
// siblings from finishing.
func TestRunReadFailureIsLocal(t *testing.T) {
	src := audiotest.NewRampSource(1, 4000)
	src.FailAt = 1500
	cfg := Config{BufferSize: 250, Threads: 4, MinChunksPerThread: 4}

	result, sink := run(t, cfg, identity, src)

	// Partition 1 covers [1000, 2000); the others read below FailAt or are
	// past it and fail immediately
	if got := result.Segments[0].Frames; got != 1000 {
		t.Errorf("Segment 0 has %d frames, want 1000", got)
	}
	if got := result.Segments[1].Frames; got != 500 {
		t.Errorf("Segment 1 has %d frames, want 500", got)
	}
	if sink.Frames() != 1500 {
		t.Errorf("Output has %d frames, want 1500", sink.Frames())
	}
	if len(result.Warnings) != 3 {
		t.Errorf("Got %d warnings, want 3: %v", len(result.Warnings), result.Warnings)
	}
}

func TestRunOpenFailureIsWarning(t *testing.T) {
	src := audiotest.NewRampSource(1, 4000)
	src.OpenErr = io.ErrClosedPipe

	result, sink := run(t, Config{BufferSize: 250, Threads: 2, MinChunksPerThread: 4}, identity, src)

	if len(result.Warnings) != 2 {
		t.Errorf("Got %d warnings, want 2", len(result.Warnings))
	}
	for _, w := range result.Warnings {
		if !errors.Is(w, io.ErrClosedPipe) {
			t.Errorf("Warning %v does not wrap the open error", w)
		}
	}
	if sink.Frames() != 0 {
		t.Errorf("Output has %d frames, want 0", sink.Frames())
	}
}

func TestRunWriteFailure(t *testing.T) {
	testCases := []struct {
		name        string
		failOnWrite int
		shortWrite  bool
		wantSegment int
		wantCause   error
	}{
		{"sink error on second segment", 1, false, 1, audiotest.ErrInjected},
		{"short write", -1, true, 0, io.ErrShortWrite},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := audiotest.NewRampSource(2, 4000)
			sink := audiotest.NewMockSink(2)
			sink.FailOnWrite = tc.failOnWrite
			sink.ShortWrite = tc.shortWrite
			cfg := Config{BufferSize: 250, Threads: 4, MinChunksPerThread: 4}

			result, err := New(cfg, identity).Run(context.Background(), src, sink)
			if err == nil {
				t.Fatal("Expected write error, got nil")
			}
			if result != nil {
				t.Errorf("Expected nil result on fatal error, got %+v", result)
			}

			var writeErr *WriteError
			if !errors.As(err, &writeErr) {
				t.Fatalf("Error %v is not a WriteError", err)
			}
			if writeErr.Segment != tc.wantSegment {
				t.Errorf("Failed segment = %d, want %d", writeErr.Segment, tc.wantSegment)
			}
			if !errors.Is(err, ErrWrite) || !errors.Is(err, tc.wantCause) {
				t.Errorf("Error %v should match ErrWrite and %v", err, tc.wantCause)
			}
		})
	}
}

func TestRunModelLoadFailure(t *testing.T) {
	errNoModel := errors.New("no such model")

	t.Run("every instance fails", func(t *testing.T) {
		factory := func() (model.Model, error) { return nil, errNoModel }
		_, err := New(DefaultConfig(), factory).Run(context.Background(), audiotest.NewRampSource(1, 100000), audiotest.NewMockSink(1))
		if !errors.Is(err, model.ErrModelLoad) {
			t.Errorf("Error = %v, want ErrModelLoad", err)
		}
	})

	t.Run("one instance fails", func(t *testing.T) {
		var mu sync.Mutex
		calls := 0
		factory := func() (model.Model, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 3 {
				return nil, errNoModel
			}
			return identity()
		}
		sink := audiotest.NewMockSink(1)
		cfg := Config{BufferSize: 64, Threads: 4, MinChunksPerThread: 4}
		_, err := New(cfg, factory).Run(context.Background(), audiotest.NewRampSource(1, 100000), sink)
		if !errors.Is(err, model.ErrModelLoad) {
			t.Errorf("Error = %v, want ErrModelLoad", err)
		}
		if len(sink.Writes) != 0 {
			t.Errorf("Sink received %d writes after a fatal error", len(sink.Writes))
		}
	})

	t.Run("nil factory", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil).Run(context.Background(), audiotest.NewRampSource(1, 100), audiotest.NewMockSink(1))
		if !errors.Is(err, model.ErrModelLoad) {
			t.Errorf("Error = %v, want ErrModelLoad", err)
		}
	})
}

func TestRunInvalidConfiguration(t *testing.T) {
	src := audiotest.NewRampSource(1, 1000)
	_, err := New(Config{BufferSize: 0, MinChunksPerThread: 4}, identity).Run(context.Background(), src, audiotest.NewMockSink(1))
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Error = %v, want ErrInvalidConfiguration", err)
	}
	if src.Opened() != 0 {
		t.Errorf("Opened %d readers before validation failed", src.Opened())
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig(), identity).Run(ctx, audiotest.NewRampSource(1, 10000), audiotest.NewMockSink(1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Error = %v, want context.Canceled", err)
	}
}

func TestRunProgress(t *testing.T) {
	src := audiotest.NewRampSource(1, 10000)
	cfg := Config{BufferSize: 500, Threads: 2, MinChunksPerThread: 4}

	// Calls are serialised, so no lock is needed here
	last := make(map[int]Progress)
	calls := 0
	result, _ := run(t, cfg, identity, src, WithProgress(func(p Progress) {
		calls++
		if prev, ok := last[p.Worker]; ok && p.Done <= prev.Done {
			t.Errorf("Worker %d progress went from %d to %d", p.Worker, prev.Done, p.Done)
		}
		last[p.Worker] = p
	}))

	if calls != 20 {
		t.Errorf("Got %d progress calls, want one per buffer (20)", calls)
	}
	for _, r := range result.Ranges {
		p := last[r.Index]
		if p.Done != r.Frames() || p.Total != r.Frames() || p.Workers != 2 {
			t.Errorf("Final progress for worker %d = %+v, want %d/%d of 2", r.Index, p, r.Frames(), r.Frames())
		}
	}
}

func TestRunUsesHardwareThreads(t *testing.T) {
	src := audiotest.NewRampSource(1, 1<<16)
	cfg := Config{BufferSize: 1024, MinChunksPerThread: 4}

	result, _ := run(t, cfg, identity, src, WithHardwareThreads(5))

	if len(result.Ranges) != 5 {
		t.Errorf("Got %d workers, want 5", len(result.Ranges))
	}
	if result.RunID == "" {
		t.Error("Expected a run id")
	}
}
