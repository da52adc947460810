package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"featsel/internal/regression"
	"featsel/internal/stats"
	"featsel/internal/storage"
	featapi "featsel/pkg/featsel"

	"github.com/dustin/go-humanize"
)

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultDBPath     = "featsel.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "metrics":
		return runMetrics(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "generate":
		return runGenerate(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that opens a client.
type clientFlags struct {
	storeKind  *string
	dbPath     *string
	resultsDir *string
	logLevel   *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:  fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", defaultDBPath, "sqlite database path"),
		resultsDir: fs.String("results-dir", defaultResultsDir, "directory holding per-run results"),
		logLevel:   fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open() (*featapi.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return featapi.New(featapi.Options{
		StoreKind:  *f.storeKind,
		DBPath:     *f.dbPath,
		ResultsDir: *f.resultsDir,
		ExportsDir: defaultExportsDir,
		Logger:     logger,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *cf.storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	dataPath := fs.String("data", "", "CSV dataset; the last column is the label (empty generates a synthetic dataset)")
	rows := fs.Int("rows", featapi.DefaultSyntheticRows, "synthetic dataset rows")
	features := fs.Int("features", featapi.DefaultSyntheticFeatures, "synthetic dataset feature columns")
	informative := fs.Int("informative", featapi.DefaultSyntheticInformative, "synthetic columns that drive the label")
	noise := fs.Float64("noise", featapi.DefaultSyntheticNoise, "synthetic label noise standard deviation")
	population := fs.Int("pop", featapi.DefaultPopulationSize, "population size")
	generations := fs.Int("gens", featapi.DefaultGenerations, "generation count")
	elite := fs.Int("elite", featapi.DefaultEliteSize, "individuals copied unchanged into each generation")
	tournament := fs.Int("tournament", featapi.DefaultTournamentSize, "tournament size")
	crossover := fs.Float64("crossover", featapi.DefaultCrossoverRate, "crossover probability")
	mutation := fs.Float64("mutation", featapi.DefaultMutationRate, "per-gene mutation probability")
	seed := fs.Int64("seed", 1, "rng seed")
	testFraction := fs.Float64("test-fraction", regression.DefaultTestFraction, "fraction of rows held out for scoring")
	noPlots := fs.Bool("no-plots", false, "skip PNG plots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	flagValues := map[string]any{
		"run-id":        *runID,
		"data":          *dataPath,
		"rows":          *rows,
		"features":      *features,
		"informative":   *informative,
		"noise":         *noise,
		"pop":           *population,
		"gens":          *generations,
		"elite":         *elite,
		"tournament":    *tournament,
		"crossover":     *crossover,
		"mutation":      *mutation,
		"seed":          *seed,
		"test-fraction": *testFraction,
		"no-plots":      *noPlots,
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		all := make(map[string]bool, len(flagValues))
		for name := range flagValues {
			all[name] = true
		}
		setFlags = all
	}
	if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s generations=%d evaluations=%s cache_hits=%s\n",
		summary.RunID,
		len(summary.Records),
		humanize.Comma(int64(summary.Evaluations)),
		humanize.Comma(int64(summary.CacheHits)),
	)
	for _, record := range summary.Records {
		fmt.Printf("generation=%d best=%.6f average=%.6f entropy=%.4f\n", record.Generation, record.Best, record.Average, record.Entropy)
	}
	fmt.Printf("solution=%s selected=%s\n", summary.Solution, strings.Join(summary.SelectedFeatures, ","))
	fmt.Printf("solution_rmse=%.6f baseline_rmse=%.6f\n", summary.SolutionRMSE, summary.BaselineRMSE)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	resultsDir := fs.String("results-dir", defaultResultsDir, "directory holding per-run results")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(*resultsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		created := e.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Printf("run_id=%s created=%q seed=%d pop=%d gens=%d solution=%s best_fitness=%.6f baseline_fitness=%.6f\n",
			e.RunID,
			created,
			e.Seed,
			e.PopulationSize,
			e.Generations,
			e.Solution,
			e.FinalBestFitness,
			e.BaselineFitness,
		)
	}
	return nil
}

func runMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show metrics for the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit metrics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Metrics(ctx, featapi.MetricsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, record := range records {
		fmt.Printf("generation=%d baseline=%.6f best=%.6f average=%.6f entropy=%.4f\n",
			record.Generation,
			record.Baseline,
			record.Best,
			record.Average,
			record.Entropy,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.Show(ctx, featapi.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}
	fmt.Printf("run_id=%s solution=%s chromosome_length=%d population=%d generations=%d elite=%d tournament=%d crossover=%g mutation=%g seed=%d test_fraction=%g\n",
		detail.RunID,
		detail.Solution,
		detail.ChromosomeLength,
		detail.PopulationSize,
		detail.Generations,
		detail.EliteSize,
		detail.TournamentSize,
		detail.CrossoverRate,
		detail.MutationRate,
		detail.Seed,
		detail.TestFraction,
	)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, featapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runGenerate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	out := fs.String("out", "dataset.csv", "output CSV path")
	rows := fs.Int("rows", featapi.DefaultSyntheticRows, "rows")
	features := fs.Int("features", featapi.DefaultSyntheticFeatures, "feature columns")
	informative := fs.Int("informative", featapi.DefaultSyntheticInformative, "columns that drive the label")
	noise := fs.Float64("noise", featapi.DefaultSyntheticNoise, "label noise standard deviation")
	seed := fs.Int64("seed", 1, "rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ds, err := regression.Synthesize(rand.New(rand.NewSource(*seed)), *rows, *features, *informative, *noise)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := regression.WriteCSV(file, ds); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	info, err := os.Stat(*out)
	if err != nil {
		return err
	}
	fmt.Printf("generated path=%s rows=%d features=%d size=%s\n", filepath.Clean(*out), ds.Rows(), ds.FeatureCount(), humanize.Bytes(uint64(info.Size())))
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: featselctl <init|reset|run|runs|metrics|show|export|generate> [flags]", msg)
}
