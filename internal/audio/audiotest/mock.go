// Package audiotest provides in-memory sources and sinks for pipeline tests.
package audiotest

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/linuxmatters/reamp/internal/audio"
)

// ErrInjected is returned by readers and sinks at their configured failure point
var ErrInjected = errors.New("injected failure")

// MockSource is a test helper that generates audio data for testing.
// Each OpenReader call returns an independent cursor.
type MockSource struct {
	info     audio.Info
	waveform func(frame int64, channel int) float64

	// FailAt makes reads fail once the cursor reaches this frame (-1 disables)
	FailAt int64

	// ReadDelay, when set, is slept before every read with the cursor position
	ReadDelay func(position int64) time.Duration

	// OpenErr is returned by OpenReader when set
	OpenErr error

	mu     sync.Mutex
	opened int
}

// NewMockSource creates a mock source of totalFrames frames.
// waveform generates a sample value given frame index and channel.
func NewMockSource(sampleRate, channels int, totalFrames int64, waveform func(frame int64, channel int) float64) *MockSource {
	return &MockSource{
		info: audio.Info{
			Format:     "mock",
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   16,
			Frames:     totalFrames,
		},
		waveform: waveform,
		FailAt:   -1,
	}
}

// NewRampSource generates frame/total on every channel, so each frame is distinct
func NewRampSource(channels int, totalFrames int64) *MockSource {
	return NewMockSource(44100, channels, totalFrames, func(frame int64, channel int) float64 {
		return float64(frame)/float64(totalFrames+1) - float64(channel)*0.001
	})
}

// NewSineSource creates a mock source that generates a sine wave
func NewSineSource(sampleRate, channels int, totalFrames int64, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int64, channel int) float64 {
		t := float64(frame) / float64(sampleRate)
		return 0.5 * math.Sin(2*math.Pi*frequency*t)
	})
}

// Info returns the stream description
func (m *MockSource) Info() audio.Info {
	return m.info
}

// Sample returns the generated value for a frame and channel
func (m *MockSource) Sample(frame int64, channel int) float64 {
	return m.waveform(frame, channel)
}

// Opened returns how many readers have been opened
func (m *MockSource) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// OpenReader returns a new cursor at frame 0
func (m *MockSource) OpenReader() (audio.FrameReader, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return &mockReader{source: m}, nil
}

type mockReader struct {
	source   *MockSource
	position int64
	closed   bool
}

func (r *mockReader) ReadFrames(dst []float64) (int, error) {
	if r.closed {
		return 0, errors.New("read from closed reader")
	}
	if r.source.ReadDelay != nil {
		time.Sleep(r.source.ReadDelay(r.position))
	}

	channels := r.source.info.Channels
	frames := len(dst) / channels
	end := min(r.position+int64(frames), r.source.info.Frames)

	failing := r.source.FailAt >= 0 && end > r.source.FailAt
	if failing {
		end = max(r.position, r.source.FailAt)
	}

	read := int(end - r.position)
	for i := 0; i < read; i++ {
		for ch := 0; ch < channels; ch++ {
			dst[i*channels+ch] = r.source.waveform(r.position+int64(i), ch)
		}
	}
	r.position = end

	if failing {
		return read, ErrInjected
	}
	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

func (r *mockReader) SeekFrame(frame int64) error {
	if frame < 0 || frame > r.source.info.Frames {
		return errors.New("seek out of range")
	}
	r.position = frame
	return nil
}

func (r *mockReader) Close() error {
	r.closed = true
	return nil
}

// MockSink records every WriteFrames call
type MockSink struct {
	Channels int

	// FailOnWrite makes the given 0-based write call return ErrInjected (-1 disables)
	FailOnWrite int

	// ShortWrite makes every write report one frame fewer than given
	ShortWrite bool

	Samples []float64
	Writes  [][]float64
}

// NewMockSink creates a sink for interleaved frames of the given width
func NewMockSink(channels int) *MockSink {
	return &MockSink{Channels: channels, FailOnWrite: -1}
}

// WriteFrames appends samples and returns the number of frames accepted
func (s *MockSink) WriteFrames(samples []float64) (int, error) {
	call := len(s.Writes)
	s.Writes = append(s.Writes, append([]float64(nil), samples...))
	if call == s.FailOnWrite {
		return 0, ErrInjected
	}

	frames := len(samples) / s.Channels
	if s.ShortWrite && frames > 0 {
		frames--
	}
	s.Samples = append(s.Samples, samples[:frames*s.Channels]...)
	return frames, nil
}

// Frames returns the number of frames accepted so far
func (s *MockSink) Frames() int64 {
	return int64(len(s.Samples) / s.Channels)
}
