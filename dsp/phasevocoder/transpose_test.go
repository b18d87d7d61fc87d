package phasevocoder

import "testing"

// fakeProducer is a minimal FrameProducer stand-in for unit-testing
// transformers without running a full Analyzer.
type fakeProducer struct {
	bus *SpectralFrameBus
}

func (f *fakeProducer) FrameBus() *SpectralFrameBus { return f.bus }

func newFakeProducer(layout Layout, blockLen int) *fakeProducer {
	magn, freq := allocFrameTables(layout.Olaps, layout.Hsize, nil, nil)
	count := make([]int, blockLen)
	count[blockLen-1] = layout.Size - 1 // a frame boundary on the last sample

	return &fakeProducer{bus: &SpectralFrameBus{
		Layout: layout,
		Magn:   magn,
		Freq:   freq,
		Count:  count,
	}}
}

func TestPitchTransposeShiftsBins(t *testing.T) {
	layout, err := newLayout(16, 4, nil)
	if err != nil {
		t.Fatalf("newLayout: %v", err)
	}

	fp := newFakeProducer(layout, 8)
	fp.bus.Magn[0][1] = 1.0
	fp.bus.Freq[0][1] = 100
	fp.bus.Magn[0][2] = 2.0
	fp.bus.Freq[0][2] = 200

	tr, err := NewPitchTranspose(fp, WithTransposeRatio(Const(2.0)))
	if err != nil {
		t.Fatalf("NewPitchTranspose: %v", err)
	}

	if err := tr.ProcessBlock(8); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	bus := tr.FrameBus()
	// Both bin 1 (1*2=2) and bin 2 (2*2=4) map to distinct bins; verify a
	// direct shift (collisions are covered by the next test).
	if bus.Magn[0][2] != 1.0 {
		t.Errorf("magn[2] = %v, want 1.0 (shifted from bin 1)", bus.Magn[0][2])
	}

	if bus.Freq[0][2] != 200 {
		t.Errorf("freq[2] = %v, want 200", bus.Freq[0][2])
	}
}

func TestPitchTransposeCollisionsSumMagnitude(t *testing.T) {
	layout, err := newLayout(16, 4, nil)
	if err != nil {
		t.Fatalf("newLayout: %v", err)
	}

	fp := newFakeProducer(layout, 8)
	fp.bus.Magn[0][2] = 1.0
	fp.bus.Freq[0][2] = 50
	fp.bus.Magn[0][3] = 3.0
	fp.bus.Freq[0][3] = 75

	// ratio=0.5: bin 2 -> idx 1, bin 3 -> idx 1 (floor(3*0.5)=1): collision.
	tr, err := NewPitchTranspose(fp, WithTransposeRatio(Const(0.5)))
	if err != nil {
		t.Fatalf("NewPitchTranspose: %v", err)
	}

	if err := tr.ProcessBlock(8); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	bus := tr.FrameBus()
	if got, want := bus.Magn[0][1], 4.0; got != want {
		t.Errorf("magn[1] = %v, want %v (summed collision)", got, want)
	}

	if got, want := bus.Freq[0][1], 75*0.5; got != want {
		t.Errorf("freq[1] = %v, want %v (last-write-wins)", got, want)
	}
}

func TestTransposeRejectsNonFrameProducerInput(t *testing.T) {
	_, err := NewPitchTranspose("not a producer")
	if err == nil {
		t.Fatal("expected fatal bind error for non-FrameProducer input")
	}
}
