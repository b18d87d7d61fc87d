package phasevocoder

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-phasevocoder/internal/testutil"
)

// buildIdentityChain wires an Analyzer straight into a Synthesizer with
// matching (size, olaps, wintype) and no transformer in between.
func buildIdentityChain(t *testing.T, size, olaps, block int) (*Analyzer, *Synthesizer) {
	t.Helper()

	a, err := NewAnalyzer(testSampleRate,
		WithAnalyzerSize(size),
		WithAnalyzerOverlap(olaps),
		WithAnalyzerBlockSize(block),
	)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	s, err := NewSynthesizer(testSampleRate, a)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}

	return a, s
}

func runIdentityChain(t *testing.T, a *Analyzer, s *Synthesizer, input []float64, block int) []float64 {
	t.Helper()

	out := make([]float64, len(input))
	scratch := make([]float64, block)

	for pos := 0; pos+block <= len(input); pos += block {
		copy(scratch, input[pos:pos+block])

		if err := a.ProcessBlock(scratch); err != nil {
			t.Fatalf("analyzer ProcessBlock: %v", err)
		}

		if err := s.ProcessBlock(scratch); err != nil {
			t.Fatalf("synthesizer ProcessBlock: %v", err)
		}

		copy(out[pos:pos+block], scratch)
	}

	return out
}

func TestIdentityChainReconstructsSine(t *testing.T) {
	const (
		size  = 1024
		olaps = 4
		block = 64
	)

	latency := size - size/olaps

	a, s := buildIdentityChain(t, size, olaps, block)

	sine := testutil.DeterministicSine(441, testSampleRate, 0.5, 8*size)
	out := runIdentityChain(t, a, s, sine, block)

	testutil.RequireFinite(t, out)

	warmup := 2 * size
	ampScale := 1 / math.Sqrt(float64(olaps))

	var sumSq, count float64

	for n := warmup; n+latency < len(out) && n < len(sine); n++ {
		want := sine[n] * ampScale
		got := out[n+latency]
		diff := got - want
		sumSq += diff * diff
		count++
	}

	if count == 0 {
		t.Fatal("no samples compared")
	}

	rms := math.Sqrt(sumSq / count)
	if rms > 5e-2 {
		t.Errorf("identity reconstruction RMS error %v too high", rms)
	}
}

func TestIdentityChainZeroInputYieldsZeroOutput(t *testing.T) {
	const (
		size  = 1024
		olaps = 4
		block = 64
	)

	a, s := buildIdentityChain(t, size, olaps, block)

	silence := make([]float64, 4*size)
	out := runIdentityChain(t, a, s, silence, block)

	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0 for silent input", i, v)
		}
	}
}
