package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"featsel/internal/chromosome"
)

var ErrInvalidTournamentSize = errors.New("invalid tournament size")

// FitnessFunc scores a chromosome; higher is better.
type FitnessFunc func(chromosome.Chromosome) (float64, error)

// ScoredChromosome pairs a chromosome with its fitness.
type ScoredChromosome struct {
	Chromosome chromosome.Chromosome
	Fitness    float64
}

// Selector chooses a single parent from a population.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, population chromosome.Population, fitness FitnessFunc) (chromosome.Chromosome, error)
}

// TournamentSelector samples Size candidates with replacement and picks the
// best fitness among them.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, population chromosome.Population, fitness FitnessFunc) (chromosome.Chromosome, error) {
	return TournamentSelection(rng, population, fitness, s.Size)
}

// Score evaluates every member of the population in order.
func Score(population chromosome.Population, fitness FitnessFunc) ([]ScoredChromosome, error) {
	if fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	scored := make([]ScoredChromosome, 0, len(population))
	for i, c := range population {
		value, err := fitness(c)
		if err != nil {
			return nil, fmt.Errorf("evaluate member %d (%s): %w", i, c, err)
		}
		scored = append(scored, ScoredChromosome{Chromosome: c, Fitness: value})
	}
	return scored, nil
}

// Rank returns the population ordered by fitness, best first. Ties keep their
// population order.
func Rank(population chromosome.Population, fitness FitnessFunc) ([]ScoredChromosome, error) {
	scored, err := Score(population, fitness)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness > scored[j].Fitness
	})
	return scored, nil
}

// FindElite returns copies of the size fittest chromosomes, best first.
func FindElite(population chromosome.Population, fitness FitnessFunc, size int) (chromosome.Population, error) {
	if size < 0 || size > len(population) {
		return nil, fmt.Errorf("elite size must be in [0, %d]: got %d", len(population), size)
	}
	if size == 0 {
		return chromosome.Population{}, nil
	}
	ranked, err := Rank(population, fitness)
	if err != nil {
		return nil, err
	}
	elite := make(chromosome.Population, 0, size)
	for _, item := range ranked[:size] {
		elite = append(elite, item.Chromosome.Clone())
	}
	return elite, nil
}

// TournamentSelection draws size chromosomes uniformly with replacement and
// returns a copy of the fittest; the earliest draw wins ties. A tournament as
// large as the population always returns the global best.
func TournamentSelection(rng *rand.Rand, population chromosome.Population, fitness FitnessFunc, size int) (chromosome.Chromosome, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	if size <= 0 || size > len(population) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTournamentSize, size, len(population))
	}
	if size == len(population) {
		best, _, err := Best(population, fitness)
		return best, err
	}

	best := population[rng.Intn(len(population))]
	bestFitness, err := fitness(best)
	if err != nil {
		return nil, fmt.Errorf("evaluate tournament candidate %s: %w", best, err)
	}
	for i := 1; i < size; i++ {
		candidate := population[rng.Intn(len(population))]
		candidateFitness, err := fitness(candidate)
		if err != nil {
			return nil, fmt.Errorf("evaluate tournament candidate %s: %w", candidate, err)
		}
		if candidateFitness > bestFitness {
			best = candidate
			bestFitness = candidateFitness
		}
	}
	return best.Clone(), nil
}

// Best returns a copy of the fittest chromosome, first in population order on
// ties.
func Best(population chromosome.Population, fitness FitnessFunc) (chromosome.Chromosome, float64, error) {
	if len(population) == 0 {
		return nil, 0, fmt.Errorf("population is empty")
	}
	scored, err := Score(population, fitness)
	if err != nil {
		return nil, 0, err
	}
	best := scored[0]
	for _, item := range scored[1:] {
		if item.Fitness > best.Fitness {
			best = item
		}
	}
	return best.Chromosome.Clone(), best.Fitness, nil
}
