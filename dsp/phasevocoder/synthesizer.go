package phasevocoder

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-phasevocoder/dsp/buffer"
	"github.com/cwbudde/algo-phasevocoder/dsp/core"
	"github.com/cwbudde/algo-phasevocoder/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// Synthesizer reconstructs a time-domain audio-block stream from a bound
// SpectralFrameBus via phase accumulation, inverse FFT, and overlap-add. It
// has no bus of its own; it is the terminal node of a chain.
type Synthesizer struct {
	cfg        core.ProcessorConfig // SampleRate (BlockSize unused: clocked by bus.Count length)
	windowType window.Type
	mul        float64
	add        float64
	diag       func(string)

	input  FrameProducer
	layout Layout
	scale  float64 // sampleRate/size
	factor float64 // hopsize*2*pi/sampleRate
	ampScl float64 // 1/sqrt(olaps)

	plan         *algofft.Plan[complex128]
	windowCoeffs []float64
	frame        []complex128 // in-place IFFT scratch, length Size

	sumPhase []float64 // length Hsize

	pool         *buffer.Pool
	outputAccum  *buffer.Buffer // length Size+Hopsize
	outputBuffer *buffer.Buffer // length Size
	overcount    int
}

// SynthesizerOption configures a Synthesizer at construction time.
type SynthesizerOption func(*Synthesizer) error

// WithSynthesizerWindow sets the STFT window kind.
func WithSynthesizerWindow(t window.Type) SynthesizerOption {
	return func(s *Synthesizer) error {
		s.windowType = t
		return nil
	}
}

// WithSynthesizerGain sets the output post-multiplier and post-bias,
// applied as out[i] = sample*mul + add (the external "post-multiplier/
// adder stage" the spec names as out of scope, bound here to two plain
// fields).
func WithSynthesizerGain(mul, add float64) SynthesizerOption {
	return func(s *Synthesizer) error {
		s.mul = mul
		s.add = add

		return nil
	}
}

// WithSynthesizerDiagnostics overrides where advisory messages are sent.
func WithSynthesizerDiagnostics(d Diagnostics) SynthesizerOption {
	return func(s *Synthesizer) error {
		s.diag = resolveDiagnostics(d)
		return nil
	}
}

// NewSynthesizer binds a Synthesizer to an upstream spectral bus. input
// must implement FrameProducer; any other type is a fatal type-mismatch-at-
// bind error and construction is refused.
func NewSynthesizer(sampleRate float64, input any, opts ...SynthesizerOption) (*Synthesizer, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("phasevocoder: synthesizer sample rate must be > 0: %f", sampleRate)
	}

	fp, err := bindFrameProducer(input)
	if err != nil {
		return nil, err
	}

	s := &Synthesizer{
		cfg:        core.ApplyProcessorOptions(core.WithSampleRate(sampleRate)),
		windowType: window.TypeHann,
		mul:        1,
		add:        0,
		diag:       defaultDiagnostics,
		input:      fp,
		pool:       buffer.NewPool(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := s.reconfigure(fp.FrameBus().Layout); err != nil {
		return nil, err
	}

	return s, nil
}

// Layout returns the layout this synthesizer is currently built for.
func (s *Synthesizer) Layout() Layout { return s.layout }

// SetWindowType changes the STFT window kind and rebuilds internal state.
func (s *Synthesizer) SetWindowType(t window.Type) error {
	s.windowType = t
	return s.reconfigure(s.layout)
}

// SetGain updates the output post-multiplier and post-bias.
func (s *Synthesizer) SetGain(mul, add float64) {
	s.mul = mul
	s.add = add
}

func (s *Synthesizer) reconfigure(layout Layout) error {
	s.layout = layout
	s.scale = s.cfg.SampleRate / float64(layout.Size)
	s.factor = float64(layout.Hopsize) * 2 * math.Pi / s.cfg.SampleRate
	s.ampScl = 1 / math.Sqrt(float64(layout.Olaps))

	plan, err := algofft.NewPlan64(layout.Size)
	if err != nil {
		return fmt.Errorf("phasevocoder: synthesizer FFT plan: %w", err)
	}

	s.plan = plan

	coeffs := window.Generate(s.windowType, layout.Size, window.WithPeriodic())
	if len(coeffs) != layout.Size {
		return fmt.Errorf("phasevocoder: synthesizer window generation failed for size %d", layout.Size)
	}

	if s.diag != nil {
		analysis := window.Analyze(coeffs)
		s.diag(fmt.Sprintf("phasevocoder: synthesizer window type=%v ENBW=%.3f bins coherent-gain=%.3f",
			s.windowType, analysis.ENBW, analysis.CoherentGain))
	}

	s.windowCoeffs = coeffs
	s.frame = make([]complex128, layout.Size)
	s.sumPhase = make([]float64, layout.Hsize)

	if s.outputAccum != nil {
		s.pool.Put(s.outputAccum)
	}

	s.outputAccum = s.pool.Get(layout.Size + layout.Hopsize)

	if s.outputBuffer != nil {
		s.pool.Put(s.outputBuffer)
	}

	s.outputBuffer = s.pool.Get(layout.Size)

	s.overcount = 0

	return nil
}

// ProcessBlock fills block with len(block) reconstructed audio samples. If
// the upstream bus reports a changed layout, the synthesizer reconfigures
// itself before processing this block.
func (s *Synthesizer) ProcessBlock(block []float64) error {
	bus := s.input.FrameBus()
	if bus.Layout != s.layout {
		if s.diag != nil {
			s.diag(fmt.Sprintf("phasevocoder: synthesizer adapting to upstream layout change: size=%d olaps=%d",
				bus.Layout.Size, bus.Layout.Olaps))
		}

		if err := s.reconfigure(bus.Layout); err != nil {
			return err
		}
	}

	if len(block) != len(bus.Count) {
		return fmt.Errorf("phasevocoder: synthesizer block length %d != upstream count length %d",
			len(block), len(bus.Count))
	}

	layout := s.layout
	ob := s.outputBuffer.Samples()
	oa := s.outputAccum.Samples()

	for i := range block {
		idx := bus.Count[i] - layout.InputLatency
		block[i] = ob[idx]*s.mul + s.add

		if bus.Count[i] != layout.Size-1 {
			continue
		}

		for k := range layout.Hsize {
			mag := bus.Magn[s.overcount][k]
			freqHz := bus.Freq[s.overcount][k]

			domega := (freqHz - float64(k)*s.scale) * s.factor
			s.sumPhase[k] += domega
			phase := s.sumPhase[k]

			s.frame[k] = complex(mag*math.Cos(phase), mag*math.Sin(phase))
		}

		s.frame[0] = complex(real(s.frame[0]), 0)
		s.frame[layout.Hsize] = 0 // Nyquist not carried, written as zero on repack

		for k := 1; k < layout.Hsize; k++ {
			v := s.frame[k]
			s.frame[layout.Size-k] = complex(real(v), -imag(v))
		}

		if err := s.plan.Inverse(s.frame, s.frame); err != nil {
			return fmt.Errorf("phasevocoder: synthesizer inverse FFT failed: %w", err)
		}

		mod := layout.Hopsize * s.overcount
		for k := range layout.Size {
			oa[k] += real(s.frame[(k+mod)%layout.Size]) * s.windowCoeffs[k] * s.ampScl
		}

		copy(ob[0:layout.Hopsize], oa[0:layout.Hopsize])
		copy(oa[0:layout.Size], oa[layout.Hopsize:layout.Size+layout.Hopsize])

		s.overcount = (s.overcount + 1) % layout.Olaps
	}

	return nil
}
