package mir

// Pipeline is the ordered list of block passes run to a fixed point (§4.1,
// §2 "Control flow"). Each entry is itself a BlockPass — either a
// structural/SSA/dataflow pass implemented directly as one, or a bundle of
// instruction passes adapted via InstructionWalkerAsBlockPass.
type Pipeline struct {
	Passes []NamedPass
}

// NamedPass pairs a pass with a descriptive name; Run only uses Pass and
// does not read Name.
type NamedPass struct {
	Name string
	Pass BlockPass
}

// Run executes the pipeline's passes once per outer iteration, looping
// until no pass reports progress — the fixed-point protocol of §4.1. It
// returns the number of outer iterations taken (used by tests asserting
// P3, the pipeline fixed point property) plus the first error raised by
// any pass.
func (p *Pipeline) Run(cfg *CFG) (iterations int, err error) {
	for {
		iterations++
		anyProgress := false

		for _, np := range p.Passes {
			progress, perr := BlockWalker(cfg, []BlockPass{np.Pass})
			if perr != nil {
				return iterations, perr
			}
			anyProgress = anyProgress || progress
		}

		if !anyProgress {
			return iterations, nil
		}

		// A pass pipeline that never converges is an InternalAssertion-class
		// bug (every pass in §4.3-§4.6 must be monotone, P2): guard against a
		// runaway loop rather than hanging forever.
		if iterations > maxPipelineIterations {
			return iterations, errRunawayPipeline
		}
	}
}

const maxPipelineIterations = 10000

var errRunawayPipeline = runawayError{}

type runawayError struct{}

func (runawayError) Error() string {
	return "pipeline did not reach a fixed point within the iteration bound; a pass is not monotone"
}
