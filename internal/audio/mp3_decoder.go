package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs interleaved 16-bit stereo: L0 R0 L1 R1 ...
const mp3BytesPerFrame = 4

// MP3Decoder implements FrameReader for MP3 files
type MP3Decoder struct {
	decoder  *mp3.Decoder
	file     *os.File
	info     Info
	position int64
	buf      []byte
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	// Open file for MP3 decoding
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create MP3 decoder: %v", ErrInvalidFile, err)
	}

	// Length is known because *os.File is an io.Seeker
	length := decoder.Length()
	if length < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: MP3 length unknown", ErrInvalidFile)
	}

	return &MP3Decoder{
		decoder: decoder,
		file:    f,
		info: Info{
			Format:     "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
			Frames:     length / mp3BytesPerFrame,
		},
	}, nil
}

// Info returns the stream description
func (d *MP3Decoder) Info() Info {
	return d.info
}

// ReadFrames reads the next frames as interleaved stereo float64
func (d *MP3Decoder) ReadFrames(dst []float64) (int, error) {
	frames := clampFrames(len(dst)/2, d.position, d.info.Frames)
	if frames == 0 {
		return 0, io.EOF
	}

	size := frames * mp3BytesPerFrame
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	buf := d.buf[:size]

	n, err := io.ReadFull(d.decoder, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("failed to read MP3 data: %w", err)
	}

	read := n / mp3BytesPerFrame
	if read == 0 {
		return 0, io.EOF
	}

	for i := 0; i < read*2; i++ {
		// 16-bit signed little-endian
		v := int16(buf[i*2]) | (int16(buf[i*2+1]) << 8)
		dst[i] = float64(v) / 32768.0
	}

	d.position += int64(read)
	return read, nil
}

// SeekFrame repositions the cursor to an absolute frame
func (d *MP3Decoder) SeekFrame(frame int64) error {
	if frame < 0 || frame > d.info.Frames {
		return fmt.Errorf("seek to frame %d outside [0, %d]", frame, d.info.Frames)
	}
	if _, err := d.decoder.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek MP3 stream: %w", err)
	}
	d.position = frame
	return nil
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
