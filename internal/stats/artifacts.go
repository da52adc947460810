package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"featsel/internal/evo"
	"featsel/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	metricsFile     = "metrics.csv"
	solutionFile    = "solution.txt"
	fitnessPlotFile = "ga.png"
	entropyPlotFile = "entropy.png"
)

var metricsHeader = []string{"generation", "baseline", "best", "average", "entropy"}

// RunConfig is the parameter copy stored next to each run's results.
type RunConfig struct {
	RunID        string     `json:"run_id"`
	DataPath     string     `json:"data_path,omitempty"`
	TestFraction float64    `json:"test_fraction"`
	Engine       evo.Config `json:"engine"`
}

type RunArtifacts struct {
	Config   RunConfig
	Records  []model.GenerationRecord
	Solution string
	// SkipPlots leaves out the PNG charts.
	SkipPlots bool
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	DataPath         string  `json:"data_path,omitempty"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Solution         string  `json:"solution"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	BaselineFitness  float64 `json:"baseline_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts creates <baseDir>/<run id>/ with the parameter copy, the
// metrics table, the solution label and the metric plots.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteMetricsCSV(filepath.Join(runDir, metricsFile), artifacts.Records); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, solutionFile), []byte(artifacts.Solution), 0o644); err != nil {
		return "", err
	}
	if !artifacts.SkipPlots && len(artifacts.Records) > 0 {
		if err := PlotFitness(artifacts.Records, filepath.Join(runDir, fitnessPlotFile)); err != nil {
			return "", fmt.Errorf("plot fitness: %w", err)
		}
		if err := PlotEntropy(artifacts.Records, filepath.Join(runDir, entropyPlotFile)); err != nil {
			return "", fmt.Errorf("plot entropy: %w", err)
		}
	}
	return runDir, nil
}

func WriteMetricsCSV(path string, records []model.GenerationRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeMetrics(file, records); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeMetrics(w io.Writer, records []model.GenerationRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(metricsHeader); err != nil {
		return err
	}
	for _, record := range records {
		if err := writer.Write([]string{
			strconv.Itoa(record.Generation),
			formatFloat(record.Baseline),
			formatFloat(record.Best),
			formatFloat(record.Average),
			formatFloat(record.Entropy),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadMetricsCSV(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	path := filepath.Join(baseDir, runID, metricsFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(metricsHeader) {
		return nil, false, fmt.Errorf("metrics header must have %d columns", len(metricsHeader))
	}

	records := make([]model.GenerationRecord, 0, 64)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		record, err := parseMetricsRow(row)
		if err != nil {
			return nil, false, err
		}
		records = append(records, record)
	}
	return records, true, nil
}

func ReadSolution(baseDir, runID string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, solutionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}
	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if c := model.CompareTimestamps(indexed[i].entry.CreatedAtUTC, indexed[j].entry.CreatedAtUTC); c != 0 {
			return c > 0
		}
		// Later appends win on equal timestamps.
		return indexed[i].idx > indexed[j].idx
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, metricsFile, solutionFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{fitnessPlotFile, entropyPlotFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func parseMetricsRow(row []string) (model.GenerationRecord, error) {
	if len(row) != len(metricsHeader) {
		return model.GenerationRecord{}, fmt.Errorf("metrics row must have %d columns", len(metricsHeader))
	}
	generation, err := strconv.Atoi(row[0])
	if err != nil {
		return model.GenerationRecord{}, fmt.Errorf("parse generation: %w", err)
	}
	values := make([]float64, 4)
	for i := range values {
		values[i], err = strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return model.GenerationRecord{}, fmt.Errorf("parse %s: %w", metricsHeader[i+1], err)
		}
	}
	return model.GenerationRecord{
		Generation: generation,
		Baseline:   values[0],
		Best:       values[1],
		Average:    values[2],
		Entropy:    values[3],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
