package phasevocoder

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-phasevocoder/dsp/buffer"
	"github.com/cwbudde/algo-phasevocoder/dsp/core"
	"github.com/cwbudde/algo-phasevocoder/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

const (
	defaultAnalyzerSize      = 1024
	defaultAnalyzerOlaps     = 4
	defaultAnalyzerBlockSize = 64
)

// Analyzer turns a time-domain audio-block stream into instantaneous-
// frequency spectral frames via windowed STFT and phase-deviation
// unwrapping. It exposes a SpectralFrameBus as its sole product; it has no
// audio output of its own.
type Analyzer struct {
	cfg        core.ProcessorConfig // SampleRate, BlockSize
	windowType window.Type
	diag       func(string)

	layout Layout
	scale  float64 // 2*pi*hopsize/size
	factor float64 // sampleRate/(hopsize*2*pi)

	plan         *algofft.Plan[complex128]
	windowCoeffs []float64
	frame        []complex128 // in-place FFT scratch, length Size
	lastPhase    []float64    // length Hsize

	pool        *buffer.Pool
	inputBuffer *buffer.Buffer // length Size, sliding window
	incount     int

	count     []int // length blockSize
	overcount int
	magn      [][]float64 // [Olaps][Hsize]
	freq      [][]float64 // [Olaps][Hsize]
}

// AnalyzerOption configures an Analyzer at construction time.
type AnalyzerOption func(*Analyzer) error

// WithAnalyzerSize sets the FFT size. Non-power-of-two values are snapped
// up with an advisory diagnostic.
func WithAnalyzerSize(size int) AnalyzerOption {
	return func(a *Analyzer) error {
		a.layout.Size = size
		return nil
	}
}

// WithAnalyzerOverlap sets the overlap factor. Non-power-of-two values are
// snapped up with an advisory diagnostic.
func WithAnalyzerOverlap(olaps int) AnalyzerOption {
	return func(a *Analyzer) error {
		a.layout.Olaps = olaps
		return nil
	}
}

// WithAnalyzerWindow sets the STFT window kind.
func WithAnalyzerWindow(t window.Type) AnalyzerOption {
	return func(a *Analyzer) error {
		a.windowType = t
		return nil
	}
}

// WithAnalyzerBlockSize sets the fixed host block size this analyzer is
// clocked with.
func WithAnalyzerBlockSize(n int) AnalyzerOption {
	return func(a *Analyzer) error {
		if n <= 0 {
			return fmt.Errorf("phasevocoder: analyzer block size must be > 0: %d", n)
		}

		a.cfg.BlockSize = n

		return nil
	}
}

// WithAnalyzerDiagnostics overrides where advisory messages are sent.
func WithAnalyzerDiagnostics(d Diagnostics) AnalyzerOption {
	return func(a *Analyzer) error {
		a.diag = resolveDiagnostics(d)
		return nil
	}
}

// NewAnalyzer creates an Analyzer with practical defaults: size 1024,
// olaps 4, window Hann, block size 64.
func NewAnalyzer(sampleRate float64, opts ...AnalyzerOption) (*Analyzer, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("phasevocoder: analyzer sample rate must be > 0: %f", sampleRate)
	}

	a := &Analyzer{
		cfg: core.ApplyProcessorOptions(
			core.WithSampleRate(sampleRate),
			core.WithBlockSize(defaultAnalyzerBlockSize),
		),
		windowType: window.TypeHann,
		diag:       defaultDiagnostics,
		layout:     Layout{Size: defaultAnalyzerSize, Olaps: defaultAnalyzerOlaps},
		pool:       buffer.NewPool(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if err := a.rebuildState(); err != nil {
		return nil, err
	}

	return a, nil
}

// Layout returns the current (possibly snapped) FFT/overlap layout.
func (a *Analyzer) Layout() Layout { return a.layout }

// SampleRate returns the configured sample rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.cfg.SampleRate }

// BlockSize returns the fixed audio block size this analyzer expects.
func (a *Analyzer) BlockSize() int { return a.cfg.BlockSize }

// WindowType returns the STFT window kind.
func (a *Analyzer) WindowType() window.Type { return a.windowType }

// SetSize changes the FFT size and rebuilds internal state.
func (a *Analyzer) SetSize(size int) error {
	a.layout.Size = size
	return a.rebuildState()
}

// SetOverlap changes the overlap factor and rebuilds internal state.
func (a *Analyzer) SetOverlap(olaps int) error {
	a.layout.Olaps = olaps
	return a.rebuildState()
}

// SetWindowType changes the STFT window kind and rebuilds internal state.
func (a *Analyzer) SetWindowType(t window.Type) error {
	a.windowType = t
	return a.rebuildState()
}

// Reconfigure changes size, olaps, and window kind together in one
// rebuild, matching the node contract's reconfigure(size, olaps, wintype).
func (a *Analyzer) Reconfigure(size, olaps int, t window.Type) error {
	a.layout.Size = size
	a.layout.Olaps = olaps
	a.windowType = t

	return a.rebuildState()
}

func (a *Analyzer) rebuildState() error {
	layout, err := newLayout(a.layout.Size, a.layout.Olaps, a.diag)
	if err != nil {
		return err
	}

	a.layout = layout
	a.scale = 2 * math.Pi * float64(layout.Hopsize) / float64(layout.Size)
	a.factor = a.cfg.SampleRate / (float64(layout.Hopsize) * 2 * math.Pi)

	plan, err := algofft.NewPlan64(layout.Size)
	if err != nil {
		return fmt.Errorf("phasevocoder: analyzer FFT plan: %w", err)
	}

	a.plan = plan

	coeffs := window.Generate(a.windowType, layout.Size, window.WithPeriodic())
	if len(coeffs) != layout.Size {
		return fmt.Errorf("phasevocoder: analyzer window generation failed for size %d", layout.Size)
	}

	if a.diag != nil {
		analysis := window.Analyze(coeffs)
		a.diag(fmt.Sprintf("phasevocoder: analyzer window type=%v ENBW=%.3f bins coherent-gain=%.3f",
			a.windowType, analysis.ENBW, analysis.CoherentGain))
	}

	a.windowCoeffs = coeffs
	a.frame = make([]complex128, layout.Size)
	a.lastPhase = make([]float64, layout.Hsize)

	if a.inputBuffer != nil {
		a.pool.Put(a.inputBuffer)
	}

	a.inputBuffer = a.pool.Get(layout.Size)

	a.incount = layout.InputLatency
	a.overcount = 0
	a.count = make([]int, a.cfg.BlockSize)
	a.magn, a.freq = allocFrameTables(layout.Olaps, layout.Hsize, a.magn, a.freq)

	return nil
}

// FrameBus returns the published spectral frame bus. Consumers must
// re-fetch this every block so a reconfigure between blocks is observed.
func (a *Analyzer) FrameBus() *SpectralFrameBus {
	return &SpectralFrameBus{
		Layout:    a.layout,
		Magn:      a.magn,
		Freq:      a.freq,
		Count:     a.count,
		Overcount: a.overcount,
	}
}

// ProcessBlock consumes blockSize audio samples, advancing the sliding
// input window and publishing a new spectral frame whenever the window
// fills.
func (a *Analyzer) ProcessBlock(block []float64) error {
	if len(block) != a.cfg.BlockSize {
		return fmt.Errorf("phasevocoder: analyzer block length %d != configured %d", len(block), a.cfg.BlockSize)
	}

	layout := a.layout
	ib := a.inputBuffer.Samples()

	for i, sample := range block {
		ib[a.incount] = sample
		a.count[i] = a.incount
		a.incount++

		if a.incount != layout.Size {
			continue
		}

		a.incount = layout.InputLatency

		mod := layout.Hopsize * a.overcount
		for k := range layout.Size {
			a.frame[(k+mod)%layout.Size] = complex(ib[k]*a.windowCoeffs[k], 0)
		}

		if err := a.plan.Forward(a.frame, a.frame); err != nil {
			return fmt.Errorf("phasevocoder: analyzer forward FFT failed: %w", err)
		}

		for k := range layout.Hsize {
			re := real(a.frame[k])
			im := imag(a.frame[k])
			mag := math.Hypot(re, im)
			phase := math.Atan2(im, re) // atan2(0,0) == 0, the defined zero-magnitude case

			delta := phase - a.lastPhase[k]
			a.lastPhase[k] = phase

			for delta > math.Pi {
				delta -= 2 * math.Pi
			}

			for delta < -math.Pi {
				delta += 2 * math.Pi
			}

			a.magn[a.overcount][k] = mag
			a.freq[a.overcount][k] = (delta + float64(k)*a.scale) * a.factor
		}

		copy(ib[0:layout.InputLatency], ib[layout.Hopsize:layout.Size])

		a.overcount = (a.overcount + 1) % layout.Olaps
	}

	return nil
}
