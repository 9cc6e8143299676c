// Package model defines the sequential transform contract used by the
// reamping pipeline and the model formats it can load.
//
// A Model is stateful: the output for a sample may depend on every sample it
// has processed before. Instances are never shared, so a worker that starts
// part-way through a file begins from a cold, zero state.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrModelLoad is returned when a descriptor cannot be parsed or an
	// instance cannot be constructed
	ErrModelLoad = errors.New("model load failed")

	// ErrSampleRateMismatch reports input audio at a different rate from the
	// one the model was captured at. Processing still works but the tone shifts.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
)

// Model is a single-channel, sample-sequential transform
type Model interface {
	// Process transforms len(input) consecutive samples into output.
	// It does not advance internal state; calling it twice with the same
	// input yields the same output.
	Process(input, output []float64)

	// Finalize commits the state of the last Process call of numFrames
	// samples. It must follow every Process call, including partial buffers.
	Finalize(numFrames int)
}

// Factory creates a new Model instance with cold state
type Factory func() (Model, error)

// Descriptor is a loaded model file
type Descriptor struct {
	Path string
	Kind string // "nam" or "impulse"

	// SampleRate is the rate the model was captured at, 0 when the file
	// does not say
	SampleRate int

	// New creates cold instances
	New Factory
}

// CheckSampleRate returns ErrSampleRateMismatch when the model declares a
// sample rate and rate differs from it
func (d *Descriptor) CheckSampleRate(rate int) error {
	if d.SampleRate == 0 || d.SampleRate == rate {
		return nil
	}
	return fmt.Errorf("%w: %s expects %d Hz, input is %d Hz", ErrSampleRateMismatch, filepath.Base(d.Path), d.SampleRate, rate)
}

// Load reads a model descriptor once and returns it with a factory for
// instances. Supported descriptors are NAM JSON files (.nam, .json) and
// impulse responses (.wav).
func Load(descriptor string) (*Descriptor, error) {
	switch ext := strings.ToLower(filepath.Ext(descriptor)); ext {
	case ".nam", ".json":
		return LoadNAM(descriptor)
	case ".wav", ".wave":
		return LoadImpulseResponse(descriptor)
	default:
		return nil, fmt.Errorf("%w: unknown descriptor type %q", ErrModelLoad, ext)
	}
}
