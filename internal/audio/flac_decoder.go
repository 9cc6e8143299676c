package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACDecoder implements FrameReader for FLAC files
type FLACDecoder struct {
	stream   *flac.Stream
	file     *os.File
	info     Info
	maxVal   float64
	position int64

	// Decoded frame not yet fully consumed
	pending *frame.Frame
	offset  int
}

// NewFLACDecoder creates a new FLAC decoder with seek support
func NewFLACDecoder(filename string) (*FLACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create FLAC decoder: %v", ErrInvalidFile, err)
	}

	return &FLACDecoder{
		stream: stream,
		file:   f,
		maxVal: float64(int64(1) << (stream.Info.BitsPerSample - 1)),
		info: Info{
			Format:     "flac",
			SampleRate: int(stream.Info.SampleRate),
			Channels:   int(stream.Info.NChannels),
			BitDepth:   int(stream.Info.BitsPerSample),
			Frames:     int64(stream.Info.NSamples),
		},
	}, nil
}

// Info returns the stream description
func (d *FLACDecoder) Info() Info {
	return d.info
}

// ReadFrames reads the next frames as interleaved float64
func (d *FLACDecoder) ReadFrames(dst []float64) (int, error) {
	channels := d.info.Channels
	frames := clampFrames(len(dst)/channels, d.position, d.info.Frames)
	if frames == 0 {
		return 0, io.EOF
	}

	read := 0
	for read < frames {
		if d.pending == nil || d.offset >= len(d.pending.Subframes[0].Samples) {
			// Parse next frame including audio samples
			f, err := d.stream.ParseNext()
			if err != nil {
				if err == io.EOF {
					break
				}
				d.position += int64(read)
				return read, fmt.Errorf("failed to parse FLAC frame: %w", err)
			}
			d.pending = f
			d.offset = 0
		}

		// FLAC frames contain one subframe per channel
		available := len(d.pending.Subframes[0].Samples) - d.offset
		take := min(available, frames-read)
		for i := 0; i < take; i++ {
			for ch, sub := range d.pending.Subframes {
				dst[(read+i)*channels+ch] = float64(sub.Samples[d.offset+i]) / d.maxVal
			}
		}
		d.offset += take
		read += take
	}

	if read == 0 {
		return 0, io.EOF
	}
	d.position += int64(read)
	return read, nil
}

// SeekFrame repositions the cursor to an absolute frame
func (d *FLACDecoder) SeekFrame(target int64) error {
	if target < 0 || target > d.info.Frames {
		return fmt.Errorf("seek to frame %d outside [0, %d]", target, d.info.Frames)
	}
	d.pending = nil
	d.offset = 0
	if target == d.info.Frames {
		d.position = target
		return nil
	}

	// Seek lands on the first sample of the frame containing target
	start, err := d.stream.Seek(uint64(target))
	if err != nil {
		return fmt.Errorf("failed to seek FLAC stream: %w", err)
	}

	f, err := d.stream.ParseNext()
	if err != nil {
		return fmt.Errorf("failed to parse FLAC frame after seek: %w", err)
	}
	d.pending = f
	d.offset = int(target - int64(start))
	d.position = target
	return nil
}

// Close closes the decoder and releases resources
func (d *FLACDecoder) Close() error {
	if d.stream != nil {
		d.stream.Close()
		d.stream = nil
	}
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		// Stream.Close closes the file too when it holds the only reference
		if err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
	}
	return nil
}
