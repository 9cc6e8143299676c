package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reamp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestDefault verifies the built-in configuration matches the documented
// defaults, catching accidental constant drift.
func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pipeline.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.Pipeline.BufferSize, DefaultBufferSize)
	}
	if cfg.Pipeline.Threads != 0 {
		t.Errorf("Threads = %d, want 0 (auto)", cfg.Pipeline.Threads)
	}
	if cfg.Pipeline.MinChunksPerThread != 4 {
		t.Errorf("MinChunksPerThread = %d, want 4", cfg.Pipeline.MinChunksPerThread)
	}
	if cfg.Pipeline.WarmupFrames != 0 {
		t.Errorf("WarmupFrames = %d, want 0", cfg.Pipeline.WarmupFrames)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name           string
		content        string
		wantBufferSize int
		wantThreads    int
		wantMinChunks  int
		wantWarmup     int
		wantBitDepth   int
		wantMono       bool
		wantLogFormat  string
	}{
		{
			name:           "empty file keeps defaults",
			content:        "",
			wantBufferSize: DefaultBufferSize,
			wantMinChunks:  DefaultMinChunksPerThread,
			wantLogFormat:  "text",
		},
		{
			name: "full file",
			content: `
pipeline:
  buffer_size: 8192
  threads: 6
  min_chunks_per_thread: 2
  warmup_frames: 4096
output:
  bit_depth: 24
  mono: true
log:
  level: debug
  format: json
`,
			wantBufferSize: 8192,
			wantThreads:    6,
			wantMinChunks:  2,
			wantWarmup:     4096,
			wantBitDepth:   24,
			wantMono:       true,
			wantLogFormat:  "json",
		},
		{
			name: "partial file",
			content: `
pipeline:
  threads: 2
`,
			wantBufferSize: DefaultBufferSize,
			wantThreads:    2,
			wantMinChunks:  DefaultMinChunksPerThread,
			wantLogFormat:  "text",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if cfg.Pipeline.BufferSize != tc.wantBufferSize {
				t.Errorf("BufferSize = %d, want %d", cfg.Pipeline.BufferSize, tc.wantBufferSize)
			}
			if cfg.Pipeline.Threads != tc.wantThreads {
				t.Errorf("Threads = %d, want %d", cfg.Pipeline.Threads, tc.wantThreads)
			}
			if cfg.Pipeline.MinChunksPerThread != tc.wantMinChunks {
				t.Errorf("MinChunksPerThread = %d, want %d", cfg.Pipeline.MinChunksPerThread, tc.wantMinChunks)
			}
			if cfg.Pipeline.WarmupFrames != tc.wantWarmup {
				t.Errorf("WarmupFrames = %d, want %d", cfg.Pipeline.WarmupFrames, tc.wantWarmup)
			}
			if cfg.Output.BitDepth != tc.wantBitDepth {
				t.Errorf("BitDepth = %d, want %d", cfg.Output.BitDepth, tc.wantBitDepth)
			}
			if cfg.Output.Mono != tc.wantMono {
				t.Errorf("Mono = %v, want %v", cfg.Output.Mono, tc.wantMono)
			}
			if cfg.Log.Format != tc.wantLogFormat {
				t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, tc.wantLogFormat)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
	if _, err := Load(writeConfig(t, "pipeline: [not, a, map]")); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}

// TestMerge verifies that only non-zero command-line values replace file
// settings, so unset flags never clobber a config file.
func TestMerge(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Threads = 3
	cfg.Output.BitDepth = 24

	bufferSize := 512
	cfg.Merge(Overrides{BufferSize: &bufferSize, LogFormat: "json"})

	if cfg.Pipeline.BufferSize != 512 {
		t.Errorf("BufferSize = %d, want 512", cfg.Pipeline.BufferSize)
	}
	if cfg.Pipeline.Threads != 3 {
		t.Errorf("Threads = %d, want 3 (unchanged)", cfg.Pipeline.Threads)
	}
	if cfg.Output.BitDepth != 24 {
		t.Errorf("BitDepth = %d, want 24 (unchanged)", cfg.Output.BitDepth)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
}

// TestMergeExplicitZero verifies a zero given on the command line replaces a
// non-zero file value, while unset flags leave the file alone.
func TestMergeExplicitZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, `pipeline:
  threads: 6
  warmup_frames: 2048
output:
  bit_depth: 24
  mono: true
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	zero := 0
	mono := false
	cfg.Merge(Overrides{Threads: &zero, WarmupFrames: &zero, Mono: &mono})

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"Threads", cfg.Pipeline.Threads, 0},
		{"WarmupFrames", cfg.Pipeline.WarmupFrames, 0},
		{"BitDepth", cfg.Output.BitDepth, 24},
		{"BufferSize", cfg.Pipeline.BufferSize, DefaultBufferSize},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Output.Mono {
		t.Error("Mono = true, want false from explicit override")
	}
}
