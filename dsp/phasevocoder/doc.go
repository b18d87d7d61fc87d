// Package phasevocoder implements a realtime phase-vocoder pipeline: an
// overlap-add STFT analyzer that produces instantaneous-frequency frames,
// spectral-domain transformers that plug in between, and an overlap-add
// inverse synthesizer that reconstructs phase-coherent audio.
//
// Nodes are clocked by the host at fixed block size. The Analyzer consumes
// samples and, on hop boundaries, publishes a new spectral frame on its
// SpectralFrameBus. Transformers bind to an upstream bus, read it once per
// block, and publish a transformed bus of the same shape. The Synthesizer
// binds to the final bus and emits audio continuously.
//
// All nodes preallocate their buffers at construction and at every
// reconfigure; no allocation occurs during ProcessBlock.
package phasevocoder
