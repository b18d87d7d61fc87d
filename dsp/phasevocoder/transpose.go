package phasevocoder

import (
	"fmt"
	"math"
)

// PitchTranspose shifts each bin's frequency and magnitude by a
// (possibly audio-rate) transposition ratio. Magnitudes at colliding
// target bins sum; frequencies at a colliding bin are overwritten by the
// last source bin processed (ascending k) — a deliberate, lossy
// approximation rather than an energy-weighted blend.
type PitchTranspose struct {
	input FrameProducer
	diag  func(string)

	transpo Param

	layout    Layout
	count     []int
	overcount int
	magn      [][]float64
	freq      [][]float64
}

// TransposeOption configures a PitchTranspose at construction time.
type TransposeOption func(*PitchTranspose) error

// WithTransposeRatio sets the transposition ratio (scalar or audio-rate).
func WithTransposeRatio(p Param) TransposeOption {
	return func(t *PitchTranspose) error {
		t.transpo = p
		return nil
	}
}

// WithTransposeDiagnostics overrides where advisory messages are sent.
func WithTransposeDiagnostics(d Diagnostics) TransposeOption {
	return func(t *PitchTranspose) error {
		t.diag = resolveDiagnostics(d)
		return nil
	}
}

// NewPitchTranspose binds a PitchTranspose to an upstream spectral bus.
// input must implement FrameProducer; any other type is a fatal
// type-mismatch-at-bind error.
func NewPitchTranspose(input any, opts ...TransposeOption) (*PitchTranspose, error) {
	fp, err := bindFrameProducer(input)
	if err != nil {
		return nil, err
	}

	t := &PitchTranspose{
		input:   fp,
		diag:    defaultDiagnostics,
		transpo: Const(1.0),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(t); err != nil {
			return nil, err
		}
	}

	t.reconfigure(fp.FrameBus().Layout)

	return t, nil
}

func (t *PitchTranspose) reconfigure(layout Layout) {
	t.layout = layout
	t.overcount = 0
	t.magn, t.freq = allocFrameTables(layout.Olaps, layout.Hsize, t.magn, t.freq)
}

// FrameBus returns the published spectral frame bus.
func (t *PitchTranspose) FrameBus() *SpectralFrameBus {
	return &SpectralFrameBus{
		Layout:    t.layout,
		Magn:      t.magn,
		Freq:      t.freq,
		Count:     t.count,
		Overcount: t.overcount,
	}
}

// ProcessBlock reads the upstream bus and, on each frame boundary, emits a
// bin-shifted frame. blockLen must match the upstream bus's Count length.
func (t *PitchTranspose) ProcessBlock(blockLen int) error {
	bus := t.input.FrameBus()
	if bus.Layout != t.layout {
		if t.diag != nil {
			t.diag(fmt.Sprintf("phasevocoder: transpose adapting to upstream layout change: size=%d olaps=%d",
				bus.Layout.Size, bus.Layout.Olaps))
		}

		t.reconfigure(bus.Layout)
	}

	t.count = bus.Count

	if blockLen != len(bus.Count) {
		return fmt.Errorf("phasevocoder: transpose block length %d != upstream count length %d",
			blockLen, len(bus.Count))
	}

	layout := t.layout

	for i := range blockLen {
		if bus.Count[i] != layout.Size-1 {
			continue
		}

		magnIn := bus.Magn[t.overcount]
		freqIn := bus.Freq[t.overcount]
		magnOut := t.magn[t.overcount]
		freqOut := t.freq[t.overcount]

		for k := range layout.Hsize {
			magnOut[k] = 0
			freqOut[k] = 0
		}

		ratio := t.transpo.sample(i)

		for k := range layout.Hsize {
			idx := int(math.Floor(float64(k) * ratio))
			if idx < 0 || idx >= layout.Hsize {
				continue
			}

			magnOut[idx] += magnIn[k]
			freqOut[idx] = freqIn[k] * ratio
		}

		t.overcount = (t.overcount + 1) % layout.Olaps
	}

	return nil
}
