package evo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"featsel/internal/chromosome"
)

var ErrTerminated = errors.New("engine already terminated")

// Config is the parameter surface of a run.
type Config struct {
	ChromosomeLength int     `json:"chromosome_length"`
	PopulationSize   int     `json:"population_size"`
	EliteSize        int     `json:"elite_size"`
	TournamentSize   int     `json:"tournament_size"`
	CrossoverRate    float64 `json:"crossover_rate"`
	MutationRate     float64 `json:"mutation_rate"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
}

// Validate reports every configuration error at once.
func (c Config) Validate() error {
	var errs []error
	if c.ChromosomeLength <= 0 {
		errs = append(errs, fmt.Errorf("chromosome length must be > 0"))
	}
	if c.PopulationSize <= 0 {
		errs = append(errs, fmt.Errorf("population size must be > 0"))
	}
	if c.EliteSize < 0 || c.EliteSize > c.PopulationSize {
		errs = append(errs, fmt.Errorf("elite size must be in [0, population size]"))
	}
	if c.TournamentSize <= 0 || c.TournamentSize > c.PopulationSize {
		errs = append(errs, fmt.Errorf("%w: must be in [1, population size]", ErrInvalidTournamentSize))
	}
	if !isProbability(c.CrossoverRate) {
		errs = append(errs, fmt.Errorf("crossover rate must be in [0, 1]: got %v", c.CrossoverRate))
	}
	if !isProbability(c.MutationRate) {
		errs = append(errs, fmt.Errorf("mutation rate must be in [0, 1]: got %v", c.MutationRate))
	}
	if c.Generations <= 0 {
		errs = append(errs, fmt.Errorf("generations must be > 0"))
	}
	if c.CrossoverRate > 0 && c.ChromosomeLength > 0 && c.ChromosomeLength < 3 {
		errs = append(errs, ErrChromosomeTooShort)
	}
	return errors.Join(errs...)
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// GenerationHook observes the population produced by a generation. It gets its
// own copy of the population.
type GenerationHook func(generation int, population chromosome.Population) error

// PostOptimizeHook observes the final population once the run terminates.
type PostOptimizeHook func(final chromosome.Population) error

type Hooks struct {
	Generation   GenerationHook
	PostOptimize PostOptimizeHook
}

// Engine runs the generational loop. It owns its random source and is not
// safe for concurrent use.
type Engine struct {
	cfg      Config
	fitness  FitnessFunc
	hooks    Hooks
	selector Selector
	logger   *slog.Logger
	rng      *rand.Rand

	generation int
	terminated bool
}

func NewEngine(cfg Config, fitness FitnessFunc, hooks Hooks, logger *slog.Logger) (*Engine, error) {
	if fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cfg:      cfg,
		fitness:  fitness,
		hooks:    hooks,
		selector: TournamentSelector{Size: cfg.TournamentSize},
		logger:   logger.With(slog.String("subsystem", "evo")),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Generation is the number of completed generations.
func (e *Engine) Generation() int {
	return e.generation
}

func (e *Engine) Terminated() bool {
	return e.terminated
}

// Optimize samples generation 0 and runs every configured generation.
func (e *Engine) Optimize() (chromosome.Population, error) {
	if e.terminated {
		return nil, ErrTerminated
	}
	initial, err := chromosome.GeneratePopulation(e.rng, e.cfg.ChromosomeLength, e.cfg.PopulationSize)
	if err != nil {
		return nil, err
	}
	return e.Run(initial)
}

// Run evolves the given generation-0 population until the generation budget
// is spent and returns the final population.
func (e *Engine) Run(initial chromosome.Population) (chromosome.Population, error) {
	if e.terminated {
		return nil, ErrTerminated
	}
	if len(initial) != e.cfg.PopulationSize {
		return nil, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), e.cfg.PopulationSize)
	}
	for i, c := range initial {
		if len(c) != e.cfg.ChromosomeLength {
			return nil, fmt.Errorf("initial member %d: %w: got=%d want=%d", i, ErrLengthMismatch, len(c), e.cfg.ChromosomeLength)
		}
	}

	e.logger.Info("optimization started",
		slog.Int("population_size", e.cfg.PopulationSize),
		slog.Int("chromosome_length", e.cfg.ChromosomeLength),
		slog.Int("generations", e.cfg.Generations),
		slog.Int64("seed", e.cfg.Seed),
	)

	population := initial.Clone()
	for e.generation < e.cfg.Generations {
		next, err := e.Step(population)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", e.generation+1, err)
		}
		population = next
		e.generation++

		if e.hooks.Generation != nil {
			if err := e.hooks.Generation(e.generation, population.Clone()); err != nil {
				return nil, fmt.Errorf("generation hook %d: %w", e.generation, err)
			}
		}
		e.logger.Debug("generation complete", slog.Int("generation", e.generation))
	}

	e.terminated = true
	if e.hooks.PostOptimize != nil {
		if err := e.hooks.PostOptimize(population.Clone()); err != nil {
			return nil, fmt.Errorf("post-optimize hook: %w", err)
		}
	}
	e.logger.Info("optimization finished", slog.Int("generations", e.generation))
	return population, nil
}

// Step produces the next population: elites carried over unchanged, then
// offspring pairs until exactly PopulationSize members exist. When a single
// slot remains the second child of the pair is dropped.
func (e *Engine) Step(population chromosome.Population) (chromosome.Population, error) {
	if len(population) != e.cfg.PopulationSize {
		return nil, fmt.Errorf("population mismatch: got=%d want=%d", len(population), e.cfg.PopulationSize)
	}

	next, err := FindElite(population, e.fitness, e.cfg.EliteSize)
	if err != nil {
		return nil, fmt.Errorf("find elite: %w", err)
	}
	next = append(make(chromosome.Population, 0, e.cfg.PopulationSize), next...)

	for len(next) < e.cfg.PopulationSize {
		parentA, err := e.selector.PickParent(e.rng, population, e.fitness)
		if err != nil {
			return nil, err
		}
		parentB, err := e.selector.PickParent(e.rng, population, e.fitness)
		if err != nil {
			return nil, err
		}
		childA, childB, err := Crossover(e.rng, parentA, parentB, e.cfg.CrossoverRate)
		if err != nil {
			return nil, err
		}
		childA = Mutate(e.rng, childA, e.cfg.MutationRate)
		childB = Mutate(e.rng, childB, e.cfg.MutationRate)

		next = append(next, childA)
		if len(next) < e.cfg.PopulationSize {
			next = append(next, childB)
		}
	}
	return next, nil
}
