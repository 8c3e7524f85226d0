package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateWaterLikeDescriptor(t *testing.T) {
	raw := "atom = \"O 0 0 0; H 0 0 0.96; H 0 0.75 -0.29\"\nbasis = \"6-31g\"\n"
	est := Estimate("water", raw)

	assert.Equal(t, 3, est.AtomCount)
	assert.Equal(t, 2, est.BasisTier)
	assert.Equal(t, 6, est.ComplexityScore)
	assert.Equal(t, 12, est.QubitNeed)
	assert.Equal(t, 120, est.DepthEstimate)
}

func TestEstimateBasisTiers(t *testing.T) {
	assert.Equal(t, 2, Estimate("a", "H\nbasis = \"6-31g\"").BasisTier)
	assert.Equal(t, 3, Estimate("b", "H\nbasis = \"cc-pvdz\"").BasisTier)
	assert.Equal(t, 4, Estimate("c", "H\nbasis = \"cc-pvtz\"").BasisTier)
	assert.Equal(t, 1, Estimate("d", "H\nbasis = \"sto-3g\"").BasisTier)
	assert.Equal(t, 1, Estimate("e", "H\nbasis = \"made-up\"").BasisTier)
}

func TestEstimateQubitFloor(t *testing.T) {
	// A single atom still books the minimum active space.
	est := Estimate("hydrogen", "atom = \"H 0 0 0\"\nbasis = \"sto-3g\"\n")
	assert.Equal(t, 1, est.AtomCount)
	assert.Equal(t, 8, est.QubitNeed)
}

func TestEstimateEmptyDescriptorNeverFails(t *testing.T) {
	est := Estimate("broken", "")
	assert.Equal(t, 0, est.AtomCount)
	assert.Equal(t, 1, est.BasisTier)
	assert.Equal(t, 0, est.ComplexityScore)
	assert.Equal(t, 0, est.QubitNeed)
	assert.Equal(t, 0, est.DepthEstimate)
}
