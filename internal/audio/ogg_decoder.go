package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder implements FrameReader for Ogg Vorbis files
type OggDecoder struct {
	reader   *oggvorbis.Reader
	file     *os.File
	info     Info
	position int64
	buf      []float32
}

// NewOggDecoder creates a new Ogg Vorbis decoder
func NewOggDecoder(filename string) (*OggDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create Ogg Vorbis decoder: %v", ErrInvalidFile, err)
	}

	return &OggDecoder{
		reader: reader,
		file:   f,
		info: Info{
			Format:     "ogg",
			SampleRate: reader.SampleRate(),
			Channels:   reader.Channels(),
			BitDepth:   16,
			Frames:     reader.Length(),
		},
	}, nil
}

// Info returns the stream description
func (d *OggDecoder) Info() Info {
	return d.info
}

// ReadFrames reads the next frames as interleaved float64
func (d *OggDecoder) ReadFrames(dst []float64) (int, error) {
	channels := d.info.Channels
	frames := clampFrames(len(dst)/channels, d.position, d.info.Frames)
	if frames == 0 {
		return 0, io.EOF
	}

	size := frames * channels
	if cap(d.buf) < size {
		d.buf = make([]float32, size)
	}
	buf := d.buf[:size]

	// Read returns the number of values decoded, not frames
	total := 0
	for total < size {
		n, err := d.reader.Read(buf[total:])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read Ogg Vorbis data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	read := total / channels
	if read == 0 {
		return 0, io.EOF
	}
	for i := 0; i < read*channels; i++ {
		dst[i] = float64(buf[i])
	}

	d.position += int64(read)
	return read, nil
}

// SeekFrame repositions the cursor to an absolute frame
func (d *OggDecoder) SeekFrame(frame int64) error {
	if frame < 0 || frame > d.info.Frames {
		return fmt.Errorf("seek to frame %d outside [0, %d]", frame, d.info.Frames)
	}
	if err := d.reader.SetPosition(frame); err != nil {
		return fmt.Errorf("failed to seek Ogg Vorbis stream: %w", err)
	}
	d.position = frame
	return nil
}

// Close closes the decoder and releases resources
func (d *OggDecoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
