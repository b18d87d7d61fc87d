package phasevocoder

// Every node in this package follows the same shape, though Go's static
// typing means the exact method set differs per node (an Analyzer takes
// audio in and has no spectral input; a Synthesizer takes spectral input
// and has no spectral output):
//
//   - a constructor that validates configuration and performs the first
//     reconfigure, returning (*Node, error);
//   - Set* methods for parameters that can change after construction, each
//     triggering a rebuild of any buffer whose size depends on it;
//   - ProcessBlock, called once per audio block in topological order, doing
//     no allocation;
//   - FrameBus, for any node that produces spectral frames.
//
// There is no teardown method: nodes hold no resources beyond Go-managed
// memory, so garbage collection is sufficient and an explicit Close would
// be a no-op.
