package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder implements FrameReader for PCM WAV files
type WAVDecoder struct {
	decoder  *wav.Decoder
	file     *os.File
	info     Info
	maxVal   float64
	offset   float64 // 8-bit PCM is unsigned, centred on 128
	position int64
	intBuf   *audio.IntBuffer

	dataStart  int64 // file offset of the first PCM byte
	dataSize   int64 // PCM chunk length in bytes
	blockAlign int64 // bytes per frame
}

// NewWAVDecoder creates a new WAV decoder positioned at frame 0
func NewWAVDecoder(filename string) (*WAVDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	d := &WAVDecoder{file: f}
	if err := d.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// readHeader parses the header and leaves the cursor at the first PCM frame
func (d *WAVDecoder) readHeader() error {
	decoder := wav.NewDecoder(d.file)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return fmt.Errorf("%w: WAV encoding %d is not integer PCM", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	// Get format info without reading all samples
	if err := decoder.FwdToPCM(); err != nil {
		return fmt.Errorf("failed to seek to PCM data: %w", err)
	}

	bytesPerSample := int64(decoder.BitDepth / 8)
	numChannels := int64(decoder.NumChans)
	if bytesPerSample == 0 || numChannels == 0 {
		return fmt.Errorf("%w: %d-bit, %d channels", ErrInvalidFile, decoder.BitDepth, decoder.NumChans)
	}

	// The decoder reads PCM straight from the file, so this is the data start
	start, err := d.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to locate PCM data: %w", err)
	}

	d.decoder = decoder
	d.dataStart = start
	d.dataSize = int64(decoder.PCMChunk.Size)
	d.blockAlign = bytesPerSample * numChannels
	d.position = 0
	d.maxVal = float64(audio.IntMaxSignedValue(int(decoder.BitDepth)))
	if decoder.BitDepth == 8 {
		d.maxVal = 128
		d.offset = 128
	}
	d.info = Info{
		Format:     "wav",
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Frames:     decoder.PCMLen() / d.blockAlign,
	}
	return nil
}

// Info returns the stream description
func (d *WAVDecoder) Info() Info {
	return d.info
}

// ReadFrames reads the next frames as interleaved float64
func (d *WAVDecoder) ReadFrames(dst []float64) (int, error) {
	channels := d.info.Channels
	frames := clampFrames(len(dst)/channels, d.position, d.info.Frames)
	if frames == 0 {
		return 0, io.EOF
	}

	size := frames * channels
	if d.intBuf == nil || cap(d.intBuf.Data) < size {
		d.intBuf = &audio.IntBuffer{
			Data: make([]int, size),
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  d.info.SampleRate,
			},
			SourceBitDepth: d.info.BitDepth,
		}
	}
	d.intBuf.Data = d.intBuf.Data[:size]

	n, err := d.decoder.PCMBuffer(d.intBuf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	read := n / channels
	if read == 0 {
		return 0, io.EOF
	}

	for i := 0; i < read*channels; i++ {
		dst[i] = (float64(d.intBuf.Data[i]) - d.offset) / d.maxVal
	}

	d.position += int64(read)
	return read, nil
}

// SeekFrame repositions the cursor. PCM frames have a fixed size, so this is
// a direct file seek.
func (d *WAVDecoder) SeekFrame(frame int64) error {
	if frame < 0 || frame > d.info.Frames {
		return fmt.Errorf("seek to frame %d outside [0, %d]", frame, d.info.Frames)
	}

	skip := frame * d.blockAlign
	if _, err := d.file.Seek(d.dataStart+skip, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to frame %d: %w", frame, err)
	}
	d.decoder.PCMChunk.R = io.LimitReader(d.file, d.dataSize-skip)
	d.decoder.PCMChunk.Pos = int(skip)
	d.position = frame
	return nil
}

// Close closes the decoder and releases resources
func (d *WAVDecoder) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
