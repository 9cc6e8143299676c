package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline defaults
const (
	DefaultBufferSize         = 1024 // Frames per model invocation
	DefaultThreads            = 0    // 0 = one worker per CPU
	DefaultMinChunksPerThread = 4    // Minimum buffers each worker must own
	DefaultWarmupFrames       = 0    // Pre-roll frames per worker (off)
)

// Output defaults
const (
	DefaultBitDepth = 0 // 0 = same as the input
)

// Logging defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config holds settings that can be stored in a YAML file
type Config struct {
	Pipeline struct {
		BufferSize         int `yaml:"buffer_size"`
		Threads            int `yaml:"threads"`
		MinChunksPerThread int `yaml:"min_chunks_per_thread"`
		WarmupFrames       int `yaml:"warmup_frames"`
	} `yaml:"pipeline"`

	Output struct {
		BitDepth int  `yaml:"bit_depth"`
		Mono     bool `yaml:"mono"`
	} `yaml:"output"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a configuration file. Missing keys keep defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.BufferSize == 0 {
		c.Pipeline.BufferSize = DefaultBufferSize
	}
	if c.Pipeline.MinChunksPerThread == 0 {
		c.Pipeline.MinChunksPerThread = DefaultMinChunksPerThread
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Overrides holds command-line values. A nil field leaves the file setting,
// so an explicit zero (such as --threads 0 for one worker per CPU) still applies.
type Overrides struct {
	BufferSize         *int
	Threads            *int
	MinChunksPerThread *int
	WarmupFrames       *int
	BitDepth           *int
	Mono               *bool
	LogLevel           string
	LogFormat          string
}

// Merge applies the set overrides on top of c
func (c *Config) Merge(o Overrides) {
	setInt(&c.Pipeline.BufferSize, o.BufferSize)
	setInt(&c.Pipeline.Threads, o.Threads)
	setInt(&c.Pipeline.MinChunksPerThread, o.MinChunksPerThread)
	setInt(&c.Pipeline.WarmupFrames, o.WarmupFrames)
	setInt(&c.Output.BitDepth, o.BitDepth)
	if o.Mono != nil {
		c.Output.Mono = *o.Mono
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
