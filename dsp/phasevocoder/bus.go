package phasevocoder

import (
	"fmt"

	"github.com/cwbudde/algo-phasevocoder/dsp/core"
)

// Layout holds the power-of-two FFT/overlap invariants shared by every node
// in a phase-vocoder chain.
type Layout struct {
	Size         int // FFT length, power of two
	Olaps        int // overlap factor, power of two
	Hopsize      int // Size / Olaps
	Hsize        int // Size / 2, bins excluding Nyquist
	InputLatency int // Size - Hopsize
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// newLayout validates and derives a Layout from the requested size/olaps.
// Non-power-of-two requests are snapped up to the next power of two and
// reported through diag, matching the configuration-snap error case: a
// non-fatal, auto-corrected advisory.
func newLayout(size, olaps int, diag func(string)) (Layout, error) {
	snappedSize := size
	if !isPow2(snappedSize) {
		snappedSize = nextPow2(snappedSize)
		if diag != nil {
			diag(fmt.Sprintf("phasevocoder: size %d is not a power of two, snapped to %d", size, snappedSize))
		}
	}

	snappedOlaps := olaps
	if !isPow2(snappedOlaps) {
		snappedOlaps = nextPow2(snappedOlaps)
		if diag != nil {
			diag(fmt.Sprintf("phasevocoder: olaps %d is not a power of two, snapped to %d", olaps, snappedOlaps))
		}
	}

	if snappedSize < 2*snappedOlaps {
		return Layout{}, fmt.Errorf("phasevocoder: size must be >= 2*olaps: size=%d olaps=%d", snappedSize, snappedOlaps)
	}

	hopsize := snappedSize / snappedOlaps

	return Layout{
		Size:         snappedSize,
		Olaps:        snappedOlaps,
		Hopsize:      hopsize,
		Hsize:        snappedSize / 2,
		InputLatency: snappedSize - hopsize,
	}, nil
}

// SpectralFrameBus is the shared carrier a producer node exposes and any
// consumer node binds to. It is read-only from the consumer's perspective;
// the backing tables remain valid for the lifetime of the producing node
// and are replaced wholesale, between blocks, on reconfigure. Consumers
// must re-fetch FrameBus() at the start of every ProcessBlock so a producer
// reconfigure is observed.
type SpectralFrameBus struct {
	Layout Layout

	// Magn[o][k] is the magnitude of bin k captured in overlap slot o.
	Magn [][]float64
	// Freq[o][k] is the instantaneous frequency, in Hz, of bin k captured
	// in overlap slot o.
	Freq [][]float64
	// Count[i] is the producing Analyzer's input-buffer write index at
	// sample i of the current block. Count[i] >= Layout.Size-1 signals a
	// frame boundary fell on sample i.
	Count []int
	// Overcount is the overlap slot the next completed frame will be
	// written into. Producer-private; published for inspection.
	Overcount int
}

// FrameProducer is implemented by any node that publishes a
// SpectralFrameBus: the Analyzer and every Transformer.
type FrameProducer interface {
	FrameBus() *SpectralFrameBus
}

// bindFrameProducer type-asserts an arbitrary input port to a
// FrameProducer. This is the fatal, construction-time "type mismatch at
// bind" error case: a node given e.g. a raw audio stream where a spectral
// bus is required refuses construction rather than failing later inside
// ProcessBlock.
func bindFrameProducer(port any) (FrameProducer, error) {
	fp, ok := port.(FrameProducer)
	if !ok {
		return nil, fmt.Errorf("phasevocoder: bind input port (%T): %w", port, ErrBusTypeMismatch)
	}

	return fp, nil
}

// allocFrameTables builds [olaps][hsize] magnitude/frequency tables, reusing
// the backing arrays of prevMagn/prevFreq where possible (same shape or
// smaller) instead of discarding them on every reconfigure.
func allocFrameTables(olaps, hsize int, prevMagn, prevFreq [][]float64) ([][]float64, [][]float64) {
	magn := make([][]float64, olaps)
	freq := make([][]float64, olaps)

	for o := range olaps {
		var prevM, prevF []float64
		if o < len(prevMagn) {
			prevM = prevMagn[o]
		}

		if o < len(prevFreq) {
			prevF = prevFreq[o]
		}

		magn[o] = core.EnsureLen(prevM, hsize)
		freq[o] = core.EnsureLen(prevF, hsize)

		core.Zero(magn[o])
		core.Zero(freq[o])
	}

	return magn, freq
}
