// Package featsel selects regression features with a generational genetic
// algorithm and keeps a record of every run.
package featsel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"featsel/internal/chromosome"
	"featsel/internal/evo"
	"featsel/internal/fitness"
	"featsel/internal/metrics"
	"featsel/internal/model"
	"featsel/internal/regression"
	"featsel/internal/stats"
	"featsel/internal/storage"

	"github.com/google/uuid"
)

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultDBPath     = "featsel.db"

	DefaultPopulationSize = 50
	DefaultGenerations    = 30
	DefaultEliteSize      = 2
	DefaultTournamentSize = 3
	DefaultCrossoverRate  = 0.9
	DefaultMutationRate   = 0.02

	DefaultSyntheticRows        = 200
	DefaultSyntheticFeatures    = 16
	DefaultSyntheticInformative = 4
	DefaultSyntheticNoise       = 1.0
)

type Options struct {
	StoreKind  string
	DBPath     string
	ResultsDir string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool

	resultsDir string
	exportsDir string
}

// RunRequest describes one optimization. DataPath selects a CSV whose last
// column is the label; without it a synthetic dataset is generated from the
// Synthetic* fields. Zero numeric fields take the package defaults and negative
// ones are rejected; rates use pointers so an explicit zero can be told apart
// from unset.
type RunRequest struct {
	RunID    string
	DataPath string

	SyntheticRows        int
	SyntheticFeatures    int
	SyntheticInformative int
	SyntheticNoise       float64

	PopulationSize int
	Generations    int
	EliteSize      *int
	TournamentSize int
	CrossoverRate  *float64
	MutationRate   *float64
	Seed           int64
	TestFraction   float64

	SkipPlots bool
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Solution         string
	SelectedFeatures []string
	SolutionRMSE     float64
	BaselineRMSE     float64
	Records          []model.GenerationRecord
	Evaluations      int
	CacheHits        int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	DataPath         string
	Seed             int64
	PopulationSize   int
	Generations      int
	Solution         string
	SelectedFeatures int
	SolutionRMSE     float64
	BaselineRMSE     float64
}

type MetricsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

// RunDetail is the parameter copy and solution kept in a run's results
// directory.
type RunDetail struct {
	RunID            string
	DataPath         string
	TestFraction     float64
	ChromosomeLength int
	PopulationSize   int
	EliteSize        int
	TournamentSize   int
	CrossoverRate    float64
	MutationRate     float64
	Generations      int
	Seed             int64
	Solution         string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger.With(slog.String("component", "featsel")),
		resultsDir: resultsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Reset drops every persisted run. Result directories on disk are kept.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	c.logger.Info("store reset")
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	ds, err := loadDataset(req)
	if err != nil {
		return RunSummary{}, err
	}
	cfg := engineConfig(req, ds.FeatureCount())
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, fmt.Errorf("invalid run configuration: %w", err)
	}
	testFraction := req.TestFraction
	if testFraction == 0 {
		testFraction = regression.DefaultTestFraction
	}

	now := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With(slog.String("run_id", runID))

	score, err := regression.NewFitness(ds, regression.FitnessOptions{TestFraction: testFraction, Seed: cfg.Seed})
	if err != nil {
		return RunSummary{}, err
	}
	cache, err := fitness.NewCache(score)
	if err != nil {
		return RunSummary{}, err
	}
	recorder, err := metrics.NewRecorder(chromosome.Full(cfg.ChromosomeLength), cache.Evaluate)
	if err != nil {
		return RunSummary{}, fmt.Errorf("score baseline: %w", err)
	}

	var (
		engine   *evo.Engine
		solution chromosome.Chromosome
		best     float64
		runDir   string
	)
	hooks := evo.Hooks{
		Generation: func(generation int, population chromosome.Population) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return recorder.OnGeneration(generation, population)
		},
		PostOptimize: func(final chromosome.Population) error {
			var err error
			solution, best, err = evo.Best(final, cache.Evaluate)
			if err != nil {
				return err
			}
			runDir, err = stats.WriteRunArtifacts(c.resultsDir, stats.RunArtifacts{
				Config: stats.RunConfig{
					RunID:        runID,
					DataPath:     req.DataPath,
					TestFraction: testFraction,
					Engine:       engine.Config(),
				},
				Records:   recorder.Records(),
				Solution:  solution.String(),
				SkipPlots: req.SkipPlots,
			})
			return err
		},
	}

	engine, err = evo.NewEngine(cfg, cache.Evaluate, hooks, logger)
	if err != nil {
		return RunSummary{}, err
	}
	if _, err := engine.Optimize(); err != nil {
		logger.Warn("optimization stopped",
			slog.Int("generation", engine.Generation()),
			slog.Any("error", err),
		)
		return RunSummary{}, fmt.Errorf("optimize: %w", err)
	}

	cacheStats := cache.Stats()
	records := recorder.Records()
	run := storage.Stamp(model.RunRecord{
		ID:               runID,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
		DataPath:         req.DataPath,
		ChromosomeLength: cfg.ChromosomeLength,
		PopulationSize:   cfg.PopulationSize,
		EliteSize:        cfg.EliteSize,
		TournamentSize:   cfg.TournamentSize,
		CrossoverRate:    cfg.CrossoverRate,
		MutationRate:     cfg.MutationRate,
		Generations:      cfg.Generations,
		Seed:             cfg.Seed,
		Solution:         solution.String(),
		SelectedFeatures: solution.SelectedCount(),
		SolutionRMSE:     -best,
		BaselineRMSE:     -recorder.Baseline(),
		Evaluations:      cacheStats.Misses,
		CacheHits:        cacheStats.Hits,
	})
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveGenerationRecords(ctx, runID, records); err != nil {
		return RunSummary{}, fmt.Errorf("save generation records: %w", err)
	}
	if err := stats.AppendRunIndex(c.resultsDir, stats.RunIndexEntry{
		RunID:            runID,
		DataPath:         req.DataPath,
		PopulationSize:   cfg.PopulationSize,
		Generations:      cfg.Generations,
		Seed:             cfg.Seed,
		Solution:         run.Solution,
		FinalBestFitness: best,
		BaselineFitness:  recorder.Baseline(),
		CreatedAtUTC:     run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	logger.Info("solution found",
		slog.String("solution", run.Solution),
		slog.Int("selected", run.SelectedFeatures),
		slog.Float64("solution_rmse", run.SolutionRMSE),
		slog.Float64("baseline_rmse", run.BaselineRMSE),
		slog.Int("evaluations", run.Evaluations),
		slog.Int("cache_hits", run.CacheHits),
	)

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		Solution:         run.Solution,
		SelectedFeatures: selectedNames(ds, solution),
		SolutionRMSE:     run.SolutionRMSE,
		BaselineRMSE:     run.BaselineRMSE,
		Records:          records,
		Evaluations:      run.Evaluations,
		CacheHits:        run.CacheHits,
	}, nil
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:            run.ID,
			CreatedAtUTC:     run.CreatedAtUTC,
			DataPath:         run.DataPath,
			Seed:             run.Seed,
			PopulationSize:   run.PopulationSize,
			Generations:      run.Generations,
			Solution:         run.Solution,
			SelectedFeatures: run.SelectedFeatures,
			SolutionRMSE:     run.SolutionRMSE,
			BaselineRMSE:     run.BaselineRMSE,
		})
	}
	return out, nil
}

// Metrics returns the per-generation records of a run. Runs missing from the
// store fall back to the metrics.csv in the results directory.
func (c *Client) Metrics(ctx context.Context, req MetricsRequest) ([]model.GenerationRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	records, ok, err := c.store.GetGenerationRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		records, ok, err = stats.ReadMetricsCSV(c.resultsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("metrics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	out := make([]model.GenerationRecord, len(records))
	copy(out, records)
	return out, nil
}

// Show reads back the configuration and solution written for a run.
func (c *Client) Show(_ context.Context, req ShowRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}

	cfg, ok, err := stats.ReadRunConfig(c.resultsDir, runID)
	if err != nil {
		return RunDetail{}, fmt.Errorf("read run config: %w", err)
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run config not found for run id: %s", runID)
	}
	solution, ok, err := stats.ReadSolution(c.resultsDir, runID)
	if err != nil {
		return RunDetail{}, fmt.Errorf("read solution: %w", err)
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("solution not found for run id: %s", runID)
	}

	return RunDetail{
		RunID:            cfg.RunID,
		DataPath:         cfg.DataPath,
		TestFraction:     cfg.TestFraction,
		ChromosomeLength: cfg.Engine.ChromosomeLength,
		PopulationSize:   cfg.Engine.PopulationSize,
		EliteSize:        cfg.Engine.EliteSize,
		TournamentSize:   cfg.Engine.TournamentSize,
		CrossoverRate:    cfg.Engine.CrossoverRate,
		MutationRate:     cfg.Engine.MutationRate,
		Generations:      cfg.Engine.Generations,
		Seed:             cfg.Engine.Seed,
		Solution:         solution,
	}, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.resultsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		if runID == "" {
			return "", errors.New("run id or latest is required")
		}
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func loadDataset(req RunRequest) (*regression.Dataset, error) {
	if req.DataPath != "" {
		ds, err := regression.LoadCSV(req.DataPath)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		return ds, nil
	}

	rows := orDefault(req.SyntheticRows, DefaultSyntheticRows)
	features := orDefault(req.SyntheticFeatures, DefaultSyntheticFeatures)
	informative := req.SyntheticInformative
	if informative == 0 {
		informative = min(DefaultSyntheticInformative, features)
	}
	noise := req.SyntheticNoise
	if noise == 0 {
		noise = DefaultSyntheticNoise
	}
	ds, err := regression.Synthesize(rand.New(rand.NewSource(req.Seed)), rows, features, informative, noise)
	if err != nil {
		return nil, fmt.Errorf("synthesize dataset: %w", err)
	}
	return ds, nil
}

func engineConfig(req RunRequest, length int) evo.Config {
	cfg := evo.Config{
		ChromosomeLength: length,
		PopulationSize:   orDefault(req.PopulationSize, DefaultPopulationSize),
		EliteSize:        DefaultEliteSize,
		TournamentSize:   orDefault(req.TournamentSize, DefaultTournamentSize),
		CrossoverRate:    DefaultCrossoverRate,
		MutationRate:     DefaultMutationRate,
		Generations:      orDefault(req.Generations, DefaultGenerations),
		Seed:             req.Seed,
	}
	if req.EliteSize != nil {
		cfg.EliteSize = *req.EliteSize
	}
	if req.CrossoverRate != nil {
		cfg.CrossoverRate = *req.CrossoverRate
	}
	if req.MutationRate != nil {
		cfg.MutationRate = *req.MutationRate
	}
	return cfg
}

func selectedNames(ds *regression.Dataset, solution chromosome.Chromosome) []string {
	names := make([]string, 0, solution.SelectedCount())
	for i, selected := range solution {
		if !selected {
			continue
		}
		if len(ds.Header) > i {
			names = append(names, ds.Header[i])
		} else {
			names = append(names, fmt.Sprintf("x%d", i))
		}
	}
	return names
}

// orDefault only fills unset values. Negatives pass through so validation can
// reject them.
func orDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
