package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileSource is a Source backed by an audio file on disk
type FileSource struct {
	path string
	info Info
	open func(string) (decoder, error)
}

// Open probes an audio file by extension and reads its header.
// The probe handle is closed again; readers are opened on demand.
func Open(filename string) (*FileSource, error) {
	open, err := openerFor(filename)
	if err != nil {
		return nil, err
	}

	d, err := open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	info := d.Info()
	if err := d.Close(); err != nil {
		return nil, err
	}

	if info.Channels < 1 {
		return nil, fmt.Errorf("%w: %s has no audio channels", ErrInvalidFile, filename)
	}

	return &FileSource{path: filename, info: info, open: open}, nil
}

func openerFor(filename string) (func(string) (decoder, error), error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".wav", ".wave":
		return func(name string) (decoder, error) { return NewWAVDecoder(name) }, nil
	case ".flac":
		return func(name string) (decoder, error) { return NewFLACDecoder(name) }, nil
	case ".mp3":
		return func(name string) (decoder, error) { return NewMP3Decoder(name) }, nil
	case ".ogg", ".oga":
		return func(name string) (decoder, error) { return NewOggDecoder(name) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Path returns the file the source reads from
func (s *FileSource) Path() string {
	return s.path
}

// Info returns the stream description captured at Open
func (s *FileSource) Info() Info {
	return s.info
}

// OpenReader opens a new file handle with its own cursor at frame 0
func (s *FileSource) OpenReader() (FrameReader, error) {
	d, err := s.open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reader for %s: %w", s.path, err)
	}
	return d, nil
}
