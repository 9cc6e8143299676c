package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WriterOptions controls the output encoding
type WriterOptions struct {
	BitDepth int  // 16, 24 or 32; 0 keeps the input depth
	Mono     bool // Downmix to one channel by averaging
}

// WAVWriter writes interleaved float64 frames to a PCM WAV file
type WAVWriter struct {
	file        *os.File
	encoder     *wav.Encoder
	inChannels  int
	outChannels int
	sampleRate  int
	bitDepth    int
	maxVal      float64
	intBuf      *audio.IntBuffer
	frames      int64
	levels      Levels
}

// NewWAVWriter creates filename for frames shaped like info
func NewWAVWriter(filename string, info Info, opts WriterOptions) (*WAVWriter, error) {
	bitDepth := opts.BitDepth
	if bitDepth == 0 {
		bitDepth = info.BitDepth
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		// 8-bit WAV is unsigned and lossy formats report 16
		if bitDepth < 16 {
			bitDepth = 16
		} else {
			return nil, fmt.Errorf("%w: %d-bit output", ErrUnsupportedFormat, bitDepth)
		}
	}
	if info.Channels < 1 || info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, info.Channels, info.SampleRate)
	}

	outChannels := info.Channels
	if opts.Mono {
		outChannels = 1
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &WAVWriter{
		file:        f,
		encoder:     wav.NewEncoder(f, info.SampleRate, bitDepth, outChannels, wavFormatPCM),
		inChannels:  info.Channels,
		outChannels: outChannels,
		sampleRate:  info.SampleRate,
		bitDepth:    bitDepth,
		maxVal:      float64(audio.IntMaxSignedValue(bitDepth)),
	}, nil
}

// WriteFrames encodes interleaved frames and returns how many were written.
// Samples outside [-1.0, 1.0] are clipped and counted in Levels.
func (w *WAVWriter) WriteFrames(samples []float64) (int, error) {
	frames := len(samples) / w.inChannels
	if frames == 0 {
		return 0, nil
	}

	size := frames * w.outChannels
	if w.intBuf == nil || cap(w.intBuf.Data) < size {
		w.intBuf = &audio.IntBuffer{
			Data: make([]int, size),
			Format: &audio.Format{
				NumChannels: w.outChannels,
				SampleRate:  w.sampleRate,
			},
			SourceBitDepth: w.bitDepth,
		}
	}
	w.intBuf.Data = w.intBuf.Data[:size]

	for i := 0; i < frames; i++ {
		if w.outChannels == 1 && w.inChannels > 1 {
			// Multi-channel - downmix to mono by averaging channels
			var sum float64
			for ch := 0; ch < w.inChannels; ch++ {
				sum += samples[i*w.inChannels+ch]
			}
			w.intBuf.Data[i] = w.quantise(sum / float64(w.inChannels))
			continue
		}
		for ch := 0; ch < w.outChannels; ch++ {
			w.intBuf.Data[i*w.outChannels+ch] = w.quantise(samples[i*w.inChannels+ch])
		}
	}

	if err := w.encoder.Write(w.intBuf); err != nil {
		return 0, fmt.Errorf("failed to write PCM buffer: %w", err)
	}
	w.frames += int64(frames)
	return frames, nil
}

func (w *WAVWriter) quantise(sample float64) int {
	w.levels.Add(sample)
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	}
	return int(math.Round(sample * w.maxVal))
}

// Frames returns the number of frames written so far
func (w *WAVWriter) Frames() int64 {
	return w.frames
}

// Levels returns statistics of the written signal
func (w *WAVWriter) Levels() Levels {
	return w.levels
}

// Close finalises the WAV header and closes the file
func (w *WAVWriter) Close() error {
	if w.file == nil {
		return nil
	}

	// The encoder only emits its header on the first Write
	if w.frames == 0 {
		empty := &audio.IntBuffer{
			Data:           []int{},
			Format:         &audio.Format{NumChannels: w.outChannels, SampleRate: w.sampleRate},
			SourceBitDepth: w.bitDepth,
		}
		if err := w.encoder.Write(empty); err != nil {
			w.file.Close()
			w.file = nil
			return fmt.Errorf("failed to write WAV header: %w", err)
		}
	}

	err := w.encoder.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	return nil
}
