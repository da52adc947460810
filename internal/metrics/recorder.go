package metrics

import (
	"fmt"
	"math"

	"featsel/internal/chromosome"
	"featsel/internal/evo"
	"featsel/internal/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Recorder collects one GenerationRecord per generation. Its OnGeneration
// method is an evo.GenerationHook.
type Recorder struct {
	fitness  evo.FitnessFunc
	baseline float64
	records  []model.GenerationRecord
}

// NewRecorder evaluates the baseline chromosome once; its fitness is reported
// alongside every generation.
func NewRecorder(baseline chromosome.Chromosome, fitness evo.FitnessFunc) (*Recorder, error) {
	if fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	value, err := fitness(baseline)
	if err != nil {
		return nil, fmt.Errorf("evaluate baseline %s: %w", baseline, err)
	}
	return &Recorder{fitness: fitness, baseline: value}, nil
}

func (r *Recorder) Baseline() float64 {
	return r.baseline
}

func (r *Recorder) OnGeneration(generation int, population chromosome.Population) error {
	values, err := Fitnesses(population, r.fitness)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("generation %d: population is empty", generation)
	}
	r.records = append(r.records, model.GenerationRecord{
		Generation: generation,
		Baseline:   r.baseline,
		Best:       floats.Max(values),
		Average:    stat.Mean(values, nil),
		Entropy:    Entropy(population),
	})
	return nil
}

func (r *Recorder) Records() []model.GenerationRecord {
	return append([]model.GenerationRecord(nil), r.records...)
}

// Fitnesses evaluates the population in order.
func Fitnesses(population chromosome.Population, fitness evo.FitnessFunc) ([]float64, error) {
	scored, err := evo.Score(population, fitness)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(scored))
	for i, item := range scored {
		values[i] = item.Fitness
	}
	return values, nil
}

func BestFitness(population chromosome.Population, fitness evo.FitnessFunc) (float64, error) {
	values, err := Fitnesses(population, fitness)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("population is empty")
	}
	return floats.Max(values), nil
}

func AverageFitness(population chromosome.Population, fitness evo.FitnessFunc) (float64, error) {
	values, err := Fitnesses(population, fitness)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("population is empty")
	}
	return stat.Mean(values, nil), nil
}

// Entropy is the allele-frequency entropy in bits: -sum(p*log2(p)) over the
// per-gene frequency p of True across the population.
func Entropy(population chromosome.Population) float64 {
	if len(population) == 0 {
		return 0
	}
	frequencies := make([]float64, len(population[0]))
	for _, c := range population {
		for i := range frequencies {
			if i < len(c) && c[i] {
				frequencies[i]++
			}
		}
	}
	floats.Scale(1/float64(len(population)), frequencies)
	return stat.Entropy(frequencies) / math.Ln2
}
