package model

import (
	"fmt"
	"os"

	"github.com/argusdusty/gofft"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MaxImpulseFrames caps impulse responses; cabinet IRs rarely exceed 500 ms
const MaxImpulseFrames = 1 << 15

// LoadImpulseResponse reads a WAV impulse response. The first channel is used.
func LoadImpulseResponse(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrModelLoad, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read impulse response: %v", ErrModelLoad, err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%w: impulse response has no channels", ErrModelLoad)
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("%w: impulse response is empty", ErrModelLoad)
	}
	frames = min(frames, MaxImpulseFrames)

	maxVal := float64(audio.IntMaxSignedValue(int(decoder.BitDepth)))
	offset := 0.0
	if decoder.BitDepth == 8 {
		// 8-bit PCM is unsigned
		maxVal, offset = 128, 128
	}
	kernel := make([]float64, frames)
	for i := range kernel {
		kernel[i] = (float64(buf.Data[i*channels]) - offset) / maxVal
	}

	return &Descriptor{
		Path:       path,
		Kind:       "impulse",
		SampleRate: int(decoder.SampleRate),
		New: func() (Model, error) {
			return NewConvolver(kernel), nil
		},
	}, nil
}

// Convolver applies an impulse response by FFT overlap-add. The overlap
// carried between buffers is its state.
type Convolver struct {
	kernel []float64

	// Kernel spectra keyed by FFT size
	spectra map[int][]complex128
	work    []complex128

	tail    []float64 // committed overlap, len(kernel)-1
	pending []float64 // overlap produced by the last Process call
	lastLen int
}

// NewConvolver creates a Convolver with cold state. kernel is not copied.
func NewConvolver(kernel []float64) *Convolver {
	return &Convolver{
		kernel:  kernel,
		spectra: make(map[int][]complex128),
		tail:    make([]float64, len(kernel)-1),
		pending: make([]float64, len(kernel)-1),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (c *Convolver) spectrum(size int) []complex128 {
	if s, ok := c.spectra[size]; ok {
		return s
	}
	s := make([]complex128, size)
	for i, v := range c.kernel {
		s[i] = complex(v, 0)
	}
	// size is a power of two, the only error gofft reports
	if err := gofft.FFT(s); err != nil {
		panic(fmt.Sprintf("kernel FFT of size %d: %v", size, err))
	}
	c.spectra[size] = s
	return s
}

// Process implements Model
func (c *Convolver) Process(input, output []float64) {
	n := len(input)
	m := len(c.kernel)
	size := nextPowerOfTwo(n + m - 1)

	if cap(c.work) < size {
		c.work = make([]complex128, size)
	}
	x := c.work[:size]
	for i := range x {
		if i < n {
			x[i] = complex(input[i], 0)
		} else {
			x[i] = 0
		}
	}

	if err := gofft.FFT(x); err != nil {
		panic(fmt.Sprintf("input FFT of size %d: %v", size, err))
	}
	h := c.spectrum(size)
	for i := range x {
		x[i] *= h[i]
	}
	if err := gofft.IFFT(x); err != nil {
		panic(fmt.Sprintf("inverse FFT of size %d: %v", size, err))
	}

	for i := 0; i < n; i++ {
		y := real(x[i])
		if i < len(c.tail) {
			y += c.tail[i]
		}
		output[i] = y
	}

	// Overlap for the next buffer: this block's spill plus unspent tail
	for j := range c.pending {
		v := real(x[n+j])
		if n+j < len(c.tail) {
			v += c.tail[n+j]
		}
		c.pending[j] = v
	}
	c.lastLen = n
}

// Finalize implements Model
func (c *Convolver) Finalize(numFrames int) {
	if numFrames != c.lastLen {
		panic(fmt.Sprintf("Finalize(%d) after Process of %d frames", numFrames, c.lastLen))
	}
	c.tail, c.pending = c.pending, c.tail
}
