package audio

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedFormat is returned for file extensions or encodings with no decoder
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidFile is returned when a file cannot be parsed by its decoder
	ErrInvalidFile = errors.New("invalid audio file")
)

// Info describes a decoded audio stream
type Info struct {
	Format     string // "wav", "flac", "mp3" or "ogg"
	SampleRate int
	Channels   int
	BitDepth   int   // Source PCM bit depth, 16 for lossy formats
	Frames     int64 // Total frames (one sample per channel)
}

// Duration returns the playing time of the stream
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.Frames) / float64(i.SampleRate) * float64(time.Second))
}

// FrameReader is a private read cursor over a decoded stream.
// Samples are interleaved float64 values in [-1.0, 1.0].
type FrameReader interface {
	// ReadFrames fills dst with up to len(dst)/channels frames and returns
	// the number of frames read. Returns io.EOF once the stream is exhausted.
	ReadFrames(dst []float64) (int, error)

	// SeekFrame moves the cursor to an absolute frame index
	SeekFrame(frame int64) error

	// Close releases the underlying file
	Close() error
}

// Source is a seekable audio input. Every OpenReader call returns an
// independent cursor backed by its own file handle.
type Source interface {
	Info() Info
	OpenReader() (FrameReader, error)
}

// decoder is implemented by every format reader in this package
type decoder interface {
	FrameReader
	Info() Info
}

// clampFrames limits a request to the frames left in the stream
func clampFrames(want int, position, total int64) int {
	if left := total - position; int64(want) > left {
		if left < 0 {
			return 0
		}
		return int(left)
	}
	return want
}
