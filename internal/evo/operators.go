package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"featsel/internal/chromosome"
)

var (
	ErrLengthMismatch     = errors.New("chromosome lengths must match")
	ErrChromosomeTooShort = errors.New("one-point crossover requires at least 3 genes")
)

// Mutate flips each gene independently with probability rate. The argument is
// never modified.
func Mutate(rng *rand.Rand, c chromosome.Chromosome, rate float64) chromosome.Chromosome {
	out := make(chromosome.Chromosome, len(c))
	for i, gene := range c {
		if rng.Float64() < rate {
			out[i] = !gene
		} else {
			out[i] = gene
		}
	}
	return out
}

// Crossover performs a one-point crossover with probability rate. The cut is
// drawn from [1, len-2] so both children always mix interior material; when
// the crossover does not fire the children are copies of the parents.
func Crossover(rng *rand.Rand, a, b chromosome.Chromosome, rate float64) (chromosome.Chromosome, chromosome.Chromosome, error) {
	if len(a) != len(b) {
		return nil, nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if rng.Float64() >= rate {
		return a.Clone(), b.Clone(), nil
	}
	if len(a) < 3 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrChromosomeTooShort, len(a))
	}

	cut := 1 + rng.Intn(len(a)-2)
	childA := make(chromosome.Chromosome, 0, len(a))
	childA = append(childA, a[:cut]...)
	childA = append(childA, b[cut:]...)
	childB := make(chromosome.Chromosome, 0, len(b))
	childB = append(childB, b[:cut]...)
	childB = append(childB, a[cut:]...)
	return childA, childB, nil
}
