package phasevocoder

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-phasevocoder/internal/testutil"
)

const testSampleRate = 44100.0

func TestAnalyzerZeroInputYieldsZeroMagnitudes(t *testing.T) {
	a, err := NewAnalyzer(testSampleRate, WithAnalyzerBlockSize(64))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	silence := make([]float64, a.BlockSize())

	for range 64 {
		if err := a.ProcessBlock(silence); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
	}

	bus := a.FrameBus()
	for o := range bus.Layout.Olaps {
		for k := range bus.Layout.Hsize {
			if bus.Magn[o][k] != 0 {
				t.Fatalf("magn[%d][%d] = %v, want 0", o, k, bus.Magn[o][k])
			}
		}
	}
}

func TestAnalyzerFrequencyEstimateNearBinCenter(t *testing.T) {
	const (
		size  = 1024
		olaps = 4
		block = 64
		k     = 8 // test tone sits exactly at the centre of bin k
	)

	binWidth := testSampleRate / size
	freqHz := k * binWidth

	a, err := NewAnalyzer(testSampleRate,
		WithAnalyzerSize(size),
		WithAnalyzerOverlap(olaps),
		WithAnalyzerBlockSize(block),
	)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	sine := testutil.DeterministicSine(freqHz, testSampleRate, 0.5, size*(olaps+4))

	for pos := 0; pos+block <= len(sine); pos += block {
		if err := a.ProcessBlock(sine[pos : pos+block]); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
	}

	bus := a.FrameBus()

	for o := range bus.Layout.Olaps {
		got := bus.Freq[o][k]
		if diff := math.Abs(got - freqHz); diff > 0.5*binWidth {
			t.Errorf("overlap %d: freq[%d] = %v, want within %v of %v (diff %v)", o, k, got, 0.5*binWidth, freqHz, diff)
		}
	}
}

func TestAnalyzerRejectsMismatchedBlockLength(t *testing.T) {
	a, err := NewAnalyzer(testSampleRate, WithAnalyzerBlockSize(64))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	if err := a.ProcessBlock(make([]float64, 32)); err == nil {
		t.Fatal("expected error for mismatched block length")
	}
}
