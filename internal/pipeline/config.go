package pipeline

import (
	"fmt"

	"github.com/linuxmatters/reamp/internal/config"
)

// Config holds the scheduling parameters of one run
type Config struct {
	BufferSize         int // Frames per model invocation
	Threads            int // Requested workers, 0 = hardware parallelism
	MinChunksPerThread int // Minimum whole buffers per worker
	WarmupFrames       int // Frames fed through each model before its range, 0 = cold start
}

// DefaultConfig returns the default scheduling parameters
func DefaultConfig() Config {
	return Config{
		BufferSize:         config.DefaultBufferSize,
		Threads:            config.DefaultThreads,
		MinChunksPerThread: config.DefaultMinChunksPerThread,
		WarmupFrames:       config.DefaultWarmupFrames,
	}
}

// FromFile converts a loaded configuration file into pipeline parameters
func FromFile(cfg *config.Config) Config {
	return Config{
		BufferSize:         cfg.Pipeline.BufferSize,
		Threads:            cfg.Pipeline.Threads,
		MinChunksPerThread: cfg.Pipeline.MinChunksPerThread,
		WarmupFrames:       cfg.Pipeline.WarmupFrames,
	}
}

// Validate reports the first invalid field as ErrInvalidConfiguration
func (c Config) Validate() error {
	switch {
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidConfiguration, c.BufferSize)
	case c.Threads < 0:
		return fmt.Errorf("%w: thread count must not be negative, got %d", ErrInvalidConfiguration, c.Threads)
	case c.MinChunksPerThread <= 0:
		return fmt.Errorf("%w: minimum chunks per thread must be positive, got %d", ErrInvalidConfiguration, c.MinChunksPerThread)
	case c.WarmupFrames < 0:
		return fmt.Errorf("%w: warm-up frames must not be negative, got %d", ErrInvalidConfiguration, c.WarmupFrames)
	}
	return nil
}
