package phasevocoder

import "fmt"

const (
	defaultReverbTime = 0.75
	defaultReverbDamp = 0.75
)

// SpectralReverb applies a per-bin envelope follower with instant attack
// and exponential decay, the higher bins decaying at least as fast as the
// lower ones as amp compounds by d (0.997 + damp*0.003) once per bin each
// frame.
type SpectralReverb struct {
	input FrameProducer
	diag  func(string)

	revtime float64 // [0,1]
	damp    float64 // [0,1]
	r       float64 // 0.75 + revtime*0.25
	d       float64 // 0.997 + damp*0.003

	layout    Layout
	count     []int
	overcount int
	magn      [][]float64
	freq      [][]float64
	follower  []float64 // length Hsize, persists across reconfigure-free lifetime
}

// ReverbOption configures a SpectralReverb at construction time.
type ReverbOption func(*SpectralReverb) error

// WithReverbTime sets revtime in [0,1]; 0 is shortest decay, 1 longest.
func WithReverbTime(revtime float64) ReverbOption {
	return func(r *SpectralReverb) error {
		if revtime < 0 || revtime > 1 {
			return fmt.Errorf("phasevocoder: reverb revtime must be in [0, 1]: %f", revtime)
		}

		r.revtime = revtime

		return nil
	}
}

// WithReverbDamp sets damp in [0,1]; lower damp makes upper bins decay
// faster than lower ones, and at 1 all bins decay at the same rate.
func WithReverbDamp(damp float64) ReverbOption {
	return func(r *SpectralReverb) error {
		if damp < 0 || damp > 1 {
			return fmt.Errorf("phasevocoder: reverb damp must be in [0, 1]: %f", damp)
		}

		r.damp = damp

		return nil
	}
}

// WithReverbDiagnostics overrides where advisory messages are sent.
func WithReverbDiagnostics(d Diagnostics) ReverbOption {
	return func(r *SpectralReverb) error {
		r.diag = resolveDiagnostics(d)
		return nil
	}
}

// NewSpectralReverb binds a SpectralReverb to an upstream spectral bus.
// input must implement FrameProducer; any other type is a fatal
// type-mismatch-at-bind error.
func NewSpectralReverb(input any, opts ...ReverbOption) (*SpectralReverb, error) {
	fp, err := bindFrameProducer(input)
	if err != nil {
		return nil, err
	}

	r := &SpectralReverb{
		input:   fp,
		diag:    defaultDiagnostics,
		revtime: defaultReverbTime,
		damp:    defaultReverbDamp,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.reconfigure(fp.FrameBus().Layout)

	return r, nil
}

func (r *SpectralReverb) rebuildCoeffs() {
	r.r = 0.75 + r.revtime*0.25
	r.d = 0.997 + r.damp*0.003
}

// SetRevtime updates revtime in [0,1].
func (r *SpectralReverb) SetRevtime(revtime float64) error {
	if revtime < 0 || revtime > 1 {
		return fmt.Errorf("phasevocoder: reverb revtime must be in [0, 1]: %f", revtime)
	}

	r.revtime = revtime
	r.rebuildCoeffs()

	return nil
}

// SetDamp updates damp in [0,1].
func (r *SpectralReverb) SetDamp(damp float64) error {
	if damp < 0 || damp > 1 {
		return fmt.Errorf("phasevocoder: reverb damp must be in [0, 1]: %f", damp)
	}

	r.damp = damp
	r.rebuildCoeffs()

	return nil
}

func (r *SpectralReverb) reconfigure(layout Layout) {
	r.layout = layout
	r.overcount = 0
	r.magn, r.freq = allocFrameTables(layout.Olaps, layout.Hsize, r.magn, r.freq)
	r.follower = make([]float64, layout.Hsize)
	r.rebuildCoeffs()
}

// FrameBus returns the published spectral frame bus.
func (r *SpectralReverb) FrameBus() *SpectralFrameBus {
	return &SpectralFrameBus{
		Layout:    r.layout,
		Magn:      r.magn,
		Freq:      r.freq,
		Count:     r.count,
		Overcount: r.overcount,
	}
}

// ProcessBlock reads the upstream bus and, on each frame boundary, emits a
// reverb-processed frame. blockLen must match the upstream bus's Count
// length.
func (r *SpectralReverb) ProcessBlock(blockLen int) error {
	bus := r.input.FrameBus()
	if bus.Layout != r.layout {
		if r.diag != nil {
			r.diag(fmt.Sprintf("phasevocoder: reverb adapting to upstream layout change: size=%d olaps=%d",
				bus.Layout.Size, bus.Layout.Olaps))
		}

		r.reconfigure(bus.Layout)
	}

	r.count = bus.Count

	if blockLen != len(bus.Count) {
		return fmt.Errorf("phasevocoder: reverb block length %d != upstream count length %d",
			blockLen, len(bus.Count))
	}

	layout := r.layout

	for i := range blockLen {
		if bus.Count[i] != layout.Size-1 {
			continue
		}

		magnIn := bus.Magn[r.overcount]
		freqIn := bus.Freq[r.overcount]
		magnOut := r.magn[r.overcount]
		freqOut := r.freq[r.overcount]

		amp := 1.0

		for k := range layout.Hsize {
			in := magnIn[k]

			if in > r.follower[k] {
				r.follower[k] = in
				magnOut[k] = in
			} else {
				r.follower[k] = in + (r.follower[k]-in)*r.r*amp
				magnOut[k] = r.follower[k]
			}

			freqOut[k] = freqIn[k]
			amp *= r.d
		}

		r.overcount = (r.overcount + 1) % layout.Olaps
	}

	return nil
}
