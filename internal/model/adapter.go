package model

import "fmt"

// Adapter runs one private Model per channel over interleaved buffers.
// An Adapter belongs to a single worker and is not safe for concurrent use.
type Adapter struct {
	lanes    []Model
	laneIn   [][]float64
	laneOut  [][]float64
	channels int
}

// NewAdapter creates channels cold model instances sized for bufferSize frames
func NewAdapter(factory Factory, channels, bufferSize int) (*Adapter, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: no model factory", ErrModelLoad)
	}
	if channels < 1 || bufferSize < 1 {
		return nil, fmt.Errorf("%w: %d channels, buffer of %d frames", ErrModelLoad, channels, bufferSize)
	}

	a := &Adapter{
		lanes:    make([]Model, channels),
		laneIn:   make([][]float64, channels),
		laneOut:  make([][]float64, channels),
		channels: channels,
	}
	for ch := range a.lanes {
		m, err := factory()
		if err != nil {
			return nil, fmt.Errorf("%w: channel %d: %v", ErrModelLoad, ch, err)
		}
		a.lanes[ch] = m
		if channels > 1 {
			a.laneIn[ch] = make([]float64, bufferSize)
			a.laneOut[ch] = make([]float64, bufferSize)
		}
	}
	return a, nil
}

// Channels returns the number of lanes
func (a *Adapter) Channels() int {
	return a.channels
}

// Process transforms numFrames interleaved frames from input into output
func (a *Adapter) Process(input, output []float64, numFrames int) {
	if a.channels == 1 {
		a.lanes[0].Process(input[:numFrames], output[:numFrames])
		return
	}

	for ch, m := range a.lanes {
		in := a.laneIn[ch][:numFrames]
		out := a.laneOut[ch][:numFrames]
		for i := range in {
			in[i] = input[i*a.channels+ch]
		}
		m.Process(in, out)
		for i, v := range out {
			output[i*a.channels+ch] = v
		}
	}
}

// Finalize commits numFrames on every lane
func (a *Adapter) Finalize(numFrames int) {
	for _, m := range a.lanes {
		m.Finalize(numFrames)
	}
}
