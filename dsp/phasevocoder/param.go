package phasevocoder

// Param is a tagged union over a scalar (control-rate) value and an
// audio-rate stream, per the dynamic-dispatch-over-parameters design note:
// a single Param.sample(i) call handles both a fixed knob value and a
// per-sample modulation buffer without branching at every call site.
type Param struct {
	constant float64
	stream   []float64
}

// Const returns a Param holding a fixed scalar value.
func Const(v float64) Param {
	return Param{constant: v}
}

// Stream returns a Param sourced from an audio-rate buffer. buf is kept by
// reference, never copied, and is read again on every later block, so it
// must outlive the Param.
func Stream(buf []float64) Param {
	return Param{stream: buf}
}

// sample returns the parameter's value at sample index i within the
// current block. A stream shorter than the block holds its last value.
func (p Param) sample(i int) float64 {
	if p.stream == nil {
		return p.constant
	}

	if i < len(p.stream) {
		return p.stream[i]
	}

	if len(p.stream) == 0 {
		return p.constant
	}

	return p.stream[len(p.stream)-1]
}
