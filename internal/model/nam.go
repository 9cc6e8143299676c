package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// namFile is the top level of a Neural Amp Modeler export
type namFile struct {
	Version      string          `json:"version"`
	Architecture string          `json:"architecture"`
	Config       json.RawMessage `json:"config"`
	Weights      []float64       `json:"weights"`
	SampleRate   float64         `json:"sample_rate,omitempty"`
}

type linearConfig struct {
	ReceptiveField int  `json:"receptive_field"`
	Bias           bool `json:"bias"`
}

// LoadNAM loads a NAM model file
func LoadNAM(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	defer f.Close()

	d, err := ParseNAM(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Path = path
	return d, nil
}

// ParseNAM decodes a NAM model from r. Only the Linear architecture can be
// evaluated; WaveNet, LSTM and ConvNet exports fail with ErrModelLoad.
func ParseNAM(r io.Reader) (*Descriptor, error) {
	var nf namFile
	if err := json.NewDecoder(r).Decode(&nf); err != nil {
		return nil, fmt.Errorf("%w: invalid NAM JSON: %v", ErrModelLoad, err)
	}

	switch nf.Architecture {
	case "Linear":
		var cfg linearConfig
		if err := json.Unmarshal(nf.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: invalid Linear config: %v", ErrModelLoad, err)
		}
		factory, err := linearFactory(cfg, nf.Weights)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: "nam", SampleRate: int(nf.SampleRate), New: factory}, nil
	case "":
		return nil, fmt.Errorf("%w: missing architecture", ErrModelLoad)
	default:
		return nil, fmt.Errorf("%w: unsupported architecture %q", ErrModelLoad, nf.Architecture)
	}
}

func linearFactory(cfg linearConfig, weights []float64) (Factory, error) {
	if cfg.ReceptiveField < 1 {
		return nil, fmt.Errorf("%w: receptive_field must be positive, got %d", ErrModelLoad, cfg.ReceptiveField)
	}

	want := cfg.ReceptiveField
	if cfg.Bias {
		want++
	}
	if len(weights) != want {
		return nil, fmt.Errorf("%w: Linear expects %d weights, got %d", ErrModelLoad, want, len(weights))
	}

	taps := append([]float64(nil), weights[:cfg.ReceptiveField]...)
	var bias float64
	if cfg.Bias {
		bias = weights[cfg.ReceptiveField]
	}

	return func() (Model, error) {
		return NewLinear(taps, bias), nil
	}, nil
}

// Linear is a FIR filter over the last len(taps) input samples.
// taps[0] weights the oldest sample in the window, the last tap the newest.
type Linear struct {
	taps    []float64
	bias    float64
	history []float64 // last len(taps)-1 committed inputs, zero when cold
	window  []float64 // history followed by the pending input
}

// NewLinear creates a Linear model with cold state. taps is not copied.
func NewLinear(taps []float64, bias float64) *Linear {
	return &Linear{
		taps:    taps,
		bias:    bias,
		history: make([]float64, len(taps)-1),
	}
}

// Process implements Model
func (l *Linear) Process(input, output []float64) {
	l.window = append(append(l.window[:0], l.history...), input...)

	rf := len(l.taps)
	for i := range input {
		sum := l.bias
		frame := l.window[i : i+rf]
		for j, w := range l.taps {
			sum += w * frame[j]
		}
		output[i] = sum
	}
}

// Finalize implements Model
func (l *Linear) Finalize(numFrames int) {
	keep := len(l.history)
	if keep == 0 {
		return
	}
	end := keep + numFrames
	copy(l.history, l.window[end-keep:end])
}
