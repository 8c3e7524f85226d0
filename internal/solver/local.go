package solver

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/qbatchproject/qbatch/internal/estimator"
	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// LocalProvider derives deterministic pseudo-integrals from descriptor fields.
// It stands in for the external electronic-structure package in offline runs and
// tests; the values have the right shapes and invariants, not physical meaning.
type LocalProvider struct{}

func (p *LocalProvider) Integrals(ctx context.Context, atom string, basis string, symmetry bool, spinSq int, charge int, nFrozen int) (*Integrals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if atom == "" {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "atom",
			Value:   atom,
			Message: "descriptor declares no geometry",
		})
	}

	seedBytes := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%v|%d|%d|%d", atom, basis, symmetry, spinSq, charge, nFrozen)))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(seedBytes[:8]))))

	// Dimensions mirror the resource estimator so the measurement width produced
	// for the circuit agrees with the active space handed to the solver.
	orbitals := estimator.CountAtoms(atom) * 2
	if orbitals < 4 {
		orbitals = 4
	}
	electrons := orbitals - nFrozen
	if electrons < 2 {
		electrons = 2
	}
	elecA := (electrons + spinSq) / 2
	elecB := (electrons - spinSq) / 2

	oneBody := make([]float64, orbitals*orbitals)
	for i := range oneBody {
		oneBody[i] = -1 + rng.Float64()
	}
	twoBody := make([]float64, orbitals*orbitals)
	for i := range twoBody {
		twoBody[i] = rng.Float64() / 2
	}

	return &Integrals{
		NumOrbitals:      orbitals,
		NumElecA:         elecA,
		NumElecB:         elecB,
		NuclearRepulsion: rng.Float64() * float64(orbitals),
		OneBody:          oneBody,
		TwoBody:          twoBody,
	}, nil
}

// LocalSolver approximates the ground-state energy from measurement statistics.
// A stand-in for the external subspace-diagonalisation solver with the same
// contract, including the result-shape failure mode: measurement bitstrings
// whose width disagrees with the integral dimensions surface as ErrResultShape.
type LocalSolver struct{}

func (s *LocalSolver) Solve(ctx context.Context, integrals *Integrals, measurements map[string]int, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if integrals == nil {
		return nil, errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "integrals",
			Value:   integrals,
			Message: "integrals must be non-nil",
		})
	}
	if len(measurements) == 0 {
		return nil, errors.WithStack(&ErrResultShape{Detail: "no measurement data"})
	}

	expectedWidth := integrals.NumOrbitals * 2
	totalShots := 0
	for bits, count := range measurements {
		if len(bits) != expectedWidth {
			return nil, errors.WithStack(&ErrResultShape{
				Detail: fmt.Sprintf("bitstring width %d does not match %d spin orbitals", len(bits), expectedWidth),
			})
		}
		totalShots += count
	}

	// Weight one-body terms by observed occupation frequencies.
	energy := 0.0
	for bits, count := range measurements {
		weight := float64(count) / float64(totalShots)
		for i, c := range bits {
			if c == '1' && i < len(integrals.OneBody) {
				energy += weight * integrals.OneBody[i]
			}
		}
	}
	for i := 0; i < opts.MaxIterations; i++ {
		energy -= math.Abs(energy) * opts.EnergyTol
	}

	subspace := len(measurements) * opts.NumBatches
	if subspace > opts.SamplesPerBatch*opts.NumBatches {
		subspace = opts.SamplesPerBatch * opts.NumBatches
	}
	return &Result{Energy: energy, SubspaceDim: subspace}, nil
}
