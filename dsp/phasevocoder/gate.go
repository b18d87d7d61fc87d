package phasevocoder

import (
	"fmt"

	"github.com/cwbudde/algo-phasevocoder/dsp/core"
)

const defaultGateThreshDB = -20.0

// SpectralGate attenuates bins below a magnitude threshold. thresh is
// expressed in dB and converted to a linear magnitude once per frame;
// damp is the linear gain applied to bins below threshold.
type SpectralGate struct {
	input FrameProducer
	diag  func(string)

	thresh Param // dB
	damp   Param // linear gain below threshold

	layout    Layout
	count     []int
	overcount int
	magn      [][]float64
	freq      [][]float64
}

// GateOption configures a SpectralGate at construction time.
type GateOption func(*SpectralGate) error

// WithGateThreshold sets the gate threshold in dB (scalar or audio-rate).
func WithGateThreshold(p Param) GateOption {
	return func(g *SpectralGate) error {
		g.thresh = p
		return nil
	}
}

// WithGateDamp sets the linear gain applied below threshold (scalar or
// audio-rate).
func WithGateDamp(p Param) GateOption {
	return func(g *SpectralGate) error {
		g.damp = p
		return nil
	}
}

// WithGateDiagnostics overrides where advisory messages are sent.
func WithGateDiagnostics(d Diagnostics) GateOption {
	return func(g *SpectralGate) error {
		g.diag = resolveDiagnostics(d)
		return nil
	}
}

// NewSpectralGate binds a SpectralGate to an upstream spectral bus. input
// must implement FrameProducer; any other type is a fatal
// type-mismatch-at-bind error.
func NewSpectralGate(input any, opts ...GateOption) (*SpectralGate, error) {
	fp, err := bindFrameProducer(input)
	if err != nil {
		return nil, err
	}

	g := &SpectralGate{
		input:  fp,
		diag:   defaultDiagnostics,
		thresh: Const(defaultGateThreshDB),
		damp:   Const(0),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(g); err != nil {
			return nil, err
		}
	}

	g.reconfigure(fp.FrameBus().Layout)

	return g, nil
}

func (g *SpectralGate) reconfigure(layout Layout) {
	g.layout = layout
	g.overcount = 0
	g.magn, g.freq = allocFrameTables(layout.Olaps, layout.Hsize, g.magn, g.freq)
}

// FrameBus returns the published spectral frame bus.
func (g *SpectralGate) FrameBus() *SpectralFrameBus {
	return &SpectralFrameBus{
		Layout:    g.layout,
		Magn:      g.magn,
		Freq:      g.freq,
		Count:     g.count,
		Overcount: g.overcount,
	}
}

// ProcessBlock reads the upstream bus and, on each frame boundary, emits a
// gated frame. blockLen must match the upstream bus's Count length.
func (g *SpectralGate) ProcessBlock(blockLen int) error {
	bus := g.input.FrameBus()
	if bus.Layout != g.layout {
		if g.diag != nil {
			g.diag(fmt.Sprintf("phasevocoder: gate adapting to upstream layout change: size=%d olaps=%d",
				bus.Layout.Size, bus.Layout.Olaps))
		}

		g.reconfigure(bus.Layout)
	}

	g.count = bus.Count

	if blockLen != len(bus.Count) {
		return fmt.Errorf("phasevocoder: gate block length %d != upstream count length %d",
			blockLen, len(bus.Count))
	}

	layout := g.layout

	for i := range blockLen {
		if bus.Count[i] != layout.Size-1 {
			continue
		}

		threshLinear := core.DBToLinear(g.thresh.sample(i))
		damp := g.damp.sample(i)

		magnIn := bus.Magn[g.overcount]
		freqIn := bus.Freq[g.overcount]
		magnOut := g.magn[g.overcount]
		freqOut := g.freq[g.overcount]

		for k := range layout.Hsize {
			if magnIn[k] < threshLinear {
				magnOut[k] = magnIn[k] * damp
			} else {
				magnOut[k] = magnIn[k]
			}

			freqOut[k] = freqIn[k]
		}

		g.overcount = (g.overcount + 1) % layout.Olaps
	}

	return nil
}
