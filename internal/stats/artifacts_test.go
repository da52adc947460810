package stats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"featsel/internal/evo"
	"featsel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []model.GenerationRecord {
	return []model.GenerationRecord{
		{Generation: 1, Baseline: -2.5, Best: -1.25, Average: -1.75, Entropy: 0.9},
		{Generation: 2, Baseline: -2.5, Best: -1, Average: -1.5, Entropy: 0.6},
		{Generation: 3, Baseline: -2.5, Best: -0.75, Average: -1.125, Entropy: 0.3},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:        "run-123",
			DataPath:     "data.csv",
			TestFraction: 0.2,
			Engine: evo.Config{
				ChromosomeLength: 4,
				PopulationSize:   6,
				EliteSize:        1,
				TournamentSize:   2,
				CrossoverRate:    0.9,
				MutationRate:     0.05,
				Generations:      3,
				Seed:             1,
			},
		},
		Records:  sampleRecords(),
		Solution: "1010",
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)

	for _, file := range []string{"config.json", "metrics.csv", "solution.txt", "ga.png", "entropy.png"} {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoError(t, err, file)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	solution, ok, err := ReadSolution(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1010", solution)

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	require.NoError(t, err)
	for _, file := range []string{"config.json", "metrics.csv", "solution.txt", "ga.png", "entropy.png"} {
		_, err := os.Stat(filepath.Join(exportedDir, file))
		require.NoError(t, err, file)
	}
}

func TestWriteRunArtifactsWithoutPlots(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config:    RunConfig{RunID: "quiet"},
		Records:   sampleRecords(),
		Solution:  "01",
		SkipPlots: true,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(runDir, "ga.png"))
	assert.True(t, os.IsNotExist(err))

	exportedDir, err := ExportRunArtifacts(baseDir, "quiet", t.TempDir())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(exportedDir, "metrics.csv"))
	require.NoError(t, err)
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.Error(t, err)
}

func TestMetricsCSVRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	_, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config:    RunConfig{RunID: "csv"},
		Records:   sampleRecords(),
		SkipPlots: true,
	})
	require.NoError(t, err)

	records, ok, err := ReadMetricsCSV(baseDir, "csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRecords(), records)

	_, ok, err = ReadMetricsCSV(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadMetricsCSVRejectsMalformedRows(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "bad")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "metrics.csv"),
		[]byte("generation,baseline,best,average,entropy\n1,x,0,0,0\n"), 0o644))

	_, _, err := ReadMetricsCSV(baseDir, "bad")
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteMetricsReportsWriterErrors(t *testing.T) {
	err := writeMetrics(failingWriter{}, sampleRecords())
	require.EqualError(t, err, "disk full")

	require.Error(t, WriteMetricsCSV(t.TempDir(), sampleRecords()))
}

func TestCopyFileWritesContentAndReportsErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("0101"), 0o644))

	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, copyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "0101", string(data))

	require.Error(t, copyFile(src, filepath.Join(dir, "missing", "dst.txt")))
	require.Error(t, copyFile(filepath.Join(dir, "absent.txt"), dst))
}

func TestRunIndexNewestFirst(t *testing.T) {
	baseDir := t.TempDir()

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-01-03T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "d", CreatedAtUTC: "2026-01-02T00:00:00Z"}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.RunID)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids)
}

func TestRunIndexOrdersFractionalSecondsChronologically(t *testing.T) {
	baseDir := t.TempDir()

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "later", CreatedAtUTC: "2026-01-01T12:00:00.5Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "whole", CreatedAtUTC: "2026-01-01T12:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "latest", CreatedAtUTC: "2026-01-01T12:00:00.75Z"}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.RunID)
	}
	assert.Equal(t, []string{"latest", "later", "whole"}, ids)
}

func TestAppendRunIndexReplacesExistingRun(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Solution: "00", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Solution: "11", CreatedAtUTC: "2026-01-01T00:00:00Z"}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "11", entries[0].Solution)

	require.Error(t, AppendRunIndex(baseDir, RunIndexEntry{}))
}

func TestListRunIndexEmpty(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
