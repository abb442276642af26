package mcts

import (
	"strconv"

	"github.com/pkg/errors"
)

// Params is the set of tunable search constants spec §5's Design Notes name
// (cpuct, fpu, virtual loss, time management fractions): every knob a UCI
// "setoption" command can reach, with defaults matching an AlphaZero-style
// PUCT search.
type Params struct {
	Cpuct     float32 // base exploration constant in the PUCT formula
	CpuctBase float32 // visit-count growth term: cpuct(s) grows as N(s) grows
	RootCpuct float32 // override for Cpuct at the root only, wider than interior nodes
	RootPst   float32 // per-move multiplier on root priors, applied after softmax and renormalized

	FpuBase      float32 // first-play urgency baseline
	FpuReduction float32 // FPU penalty scale on the parent's sum of sqrt(prior) over already-visited children

	PolicyTemp float32 // temperature passed to policynet.Priors at every node, including the root
	Scale      int32   // centipawn<->[-1,1] value conversion scale

	DirichletAlpha   float32 // Dirichlet concentration for root exploration noise
	DirichletEpsilon float32 // weight given to the Dirichlet sample when mixing into root priors; 0 disables it

	VirtualLoss int32 // virtual visits added to an edge per in-flight selection; counted in the PUCT denominator and subtracted from the score as VirtualLoss/(1+N+VirtualLoss)

	SoftTimeFrac float32 // fraction of the allotted move time after which search may stop early
	HardTimeFrac float32 // fraction of the allotted move time that forces a stop regardless

	InfoIntervalMs int // minimum spacing between UCI "info" lines
}

// DefaultParams returns the engine's out-of-the-box tuning.
func DefaultParams() Params {
	return Params{
		Cpuct:            1.5,
		CpuctBase:        19652,
		RootCpuct:        2.0,
		RootPst:          1.25,
		FpuBase:          0.0,
		FpuReduction:     0.25,
		PolicyTemp:       1.0,
		Scale:            400,
		DirichletAlpha:   0.3,
		DirichletEpsilon: 0.25,
		VirtualLoss:      1,
		SoftTimeFrac:     0.5,
		HardTimeFrac:     4.0,
		InfoIntervalMs:   1000,
	}
}

// SetOption applies a single UCI/UAI "setoption name X value Y" pair to p,
// matching on name case-sensitively against the field names below. Unknown
// names are reported as an error rather than silently ignored, so a typo in
// a tuning script doesn't silently no-op.
func (p *Params) SetOption(name, value string) error {
	switch name {
	case "Cpuct":
		return setFloat(&p.Cpuct, value)
	case "CpuctBase":
		return setFloat(&p.CpuctBase, value)
	case "RootCpuct":
		return setFloat(&p.RootCpuct, value)
	case "RootPst":
		return setFloat(&p.RootPst, value)
	case "FpuBase":
		return setFloat(&p.FpuBase, value)
	case "FpuReduction":
		return setFloat(&p.FpuReduction, value)
	case "PolicyTemp":
		return setFloat(&p.PolicyTemp, value)
	case "Scale":
		return setInt32(&p.Scale, value)
	case "DirichletAlpha":
		return setFloat(&p.DirichletAlpha, value)
	case "DirichletEpsilon":
		return setFloat(&p.DirichletEpsilon, value)
	case "VirtualLoss":
		return setInt32(&p.VirtualLoss, value)
	case "SoftTimeFrac":
		return setFloat(&p.SoftTimeFrac, value)
	case "HardTimeFrac":
		return setFloat(&p.HardTimeFrac, value)
	case "InfoIntervalMs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "mcts: option %s", name)
		}
		p.InfoIntervalMs = n
		return nil
	}
	return errors.Errorf("mcts: unknown option %q", name)
}

func setFloat(dst *float32, value string) error {
	v, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return errors.Wrap(err, "mcts: option value")
	}
	*dst = float32(v)
	return nil
}

func setInt32(dst *int32, value string) error {
	v, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return errors.Wrap(err, "mcts: option value")
	}
	*dst = int32(v)
	return nil
}
