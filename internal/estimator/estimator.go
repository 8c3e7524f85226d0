// Package estimator derives per-job resource estimates from raw descriptor text.
// The heuristic is deliberately crude: it exists to rank jobs and backends, not to
// predict true cost.
package estimator

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Atomic symbols recognised when counting atoms in a descriptor.
var recognisedAtoms = []string{"H", "O", "C", "N", "S", "P", "Li"}

// Basis sets mapped to ordinal cost tiers. Anything unrecognised is tier 1.
var basisTiers = []struct {
	substring string
	tier      int
}{
	{"6-31g", 2},
	{"cc-pvdz", 3},
	{"cc-pvtz", 4},
}

// ResourceEstimate captures a job's estimated resource needs.
type ResourceEstimate struct {
	AtomCount       int
	BasisTier       int
	ComplexityScore int
	QubitNeed       int
	DepthEstimate   int
}

// CountAtoms counts occurrences of the recognised atomic symbols in text.
func CountAtoms(text string) int {
	atoms := 0
	for _, symbol := range recognisedAtoms {
		atoms += strings.Count(text, symbol)
	}
	return atoms
}

// Estimate computes a deterministic resource estimate from descriptor text.
// It never fails: empty or unparseable content yields a zeroed estimate and a
// warning, so one malformed descriptor cannot block the batch's scheduling pass.
func Estimate(name string, raw string) ResourceEstimate {
	if raw == "" {
		log.Warnf("empty descriptor for %s; using zero resource estimate", name)
		return ResourceEstimate{BasisTier: 1}
	}

	atoms := CountAtoms(raw)

	tier := 1
	lowered := strings.ToLower(raw)
	for _, bt := range basisTiers {
		if strings.Contains(lowered, bt.substring) {
			tier = bt.tier
			break
		}
	}

	complexity := atoms * tier
	orbitals := atoms * 2
	if orbitals < 4 {
		orbitals = 4
	}
	return ResourceEstimate{
		AtomCount:       atoms,
		BasisTier:       tier,
		ComplexityScore: complexity,
		QubitNeed:       orbitals * 2,
		DepthEstimate:   complexity * 20,
	}
}
