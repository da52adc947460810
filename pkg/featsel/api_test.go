package featsel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		ResultsDir: filepath.Join(base, "results"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallRequest() RunRequest {
	return RunRequest{
		SyntheticRows:        60,
		SyntheticFeatures:    6,
		SyntheticInformative: 2,
		SyntheticNoise:       0.1,
		PopulationSize:       10,
		Generations:          3,
		TournamentSize:       2,
		Seed:                 7,
		SkipPlots:            true,
	}
}

func TestClientRunRunsMetricsAndExport(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	client := newTestClient(t, base)

	summary, err := client.Run(ctx, smallRequest())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Solution, 6)
	assert.Len(t, summary.Records, 3)
	assert.GreaterOrEqual(t, summary.SolutionRMSE, 0.0)
	assert.Positive(t, summary.Evaluations)
	for i, record := range summary.Records {
		assert.Equal(t, i+1, record.Generation)
		assert.Equal(t, -summary.BaselineRMSE, record.Baseline)
	}
	assert.Equal(t, -summary.SolutionRMSE, summary.Records[2].Best)

	for _, file := range []string{"config.json", "metrics.csv", "solution.txt"} {
		_, err := os.Stat(filepath.Join(summary.ArtifactsDir, file))
		require.NoError(t, err, file)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, summary.Solution, runs[0].Solution)
	assert.Len(t, summary.SelectedFeatures, runs[0].SelectedFeatures)

	records, err := client.Metrics(ctx, MetricsRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.Records, records)

	limited, err := client.Metrics(ctx, MetricsRequest{RunID: summary.RunID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	_, err = os.Stat(filepath.Join(exported.Directory, "metrics.csv"))
	require.NoError(t, err)
}

func TestClientRunIsReproducible(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	first, err := client.Run(ctx, smallRequest())
	require.NoError(t, err)
	second, err := client.Run(ctx, smallRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Solution, second.Solution)
	assert.Equal(t, first.Records, second.Records)
}

func TestClientRunFromCSV(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "data.csv")
	content := "a,b,c,y\n" +
		"1,0,3,2\n2,1,1,4\n3,0,4,6\n4,1,1,8\n5,0,5,10\n6,1,9,12\n7,0,2,14\n8,1,6,16\n9,0,5,18\n10,1,3,20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	client := newTestClient(t, base)
	req := RunRequest{
		RunID:          "csv-run",
		DataPath:       path,
		PopulationSize: 16,
		Generations:    4,
		TournamentSize: 2,
		Seed:           3,
		SkipPlots:      true,
	}
	summary, err := client.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "csv-run", summary.RunID)
	assert.Len(t, summary.Solution, 3)
	assert.Contains(t, summary.SelectedFeatures, "a")
	assert.InDelta(t, 0, summary.SolutionRMSE, 1e-6)
}

func TestClientRunAcceptsExplicitZeroRates(t *testing.T) {
	zeroRate := 0.0
	zeroElite := 0
	req := smallRequest()
	req.SyntheticFeatures = 2
	req.SyntheticInformative = 1
	req.CrossoverRate = &zeroRate
	req.MutationRate = &zeroRate
	req.EliteSize = &zeroElite

	summary, err := newTestClient(t, t.TempDir()).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, summary.Solution, 2)
}

func TestClientRunRejectsInvalidConfiguration(t *testing.T) {
	cases := map[string]func(*RunRequest){
		"tournament larger than population": func(req *RunRequest) { req.TournamentSize = req.PopulationSize + 1 },
		"negative population":               func(req *RunRequest) { req.PopulationSize = -5 },
		"negative generations":              func(req *RunRequest) { req.Generations = -1 },
		"negative tournament":               func(req *RunRequest) { req.TournamentSize = -1 },
		"negative synthetic rows":           func(req *RunRequest) { req.SyntheticRows = -10 },
		"negative synthetic features":       func(req *RunRequest) { req.SyntheticFeatures = -3 },
		"negative synthetic informative":    func(req *RunRequest) { req.SyntheticInformative = -1 },
		"negative synthetic noise":          func(req *RunRequest) { req.SyntheticNoise = -0.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := smallRequest()
			mutate(&req)

			client := newTestClient(t, t.TempDir())
			_, err := client.Run(context.Background(), req)
			require.Error(t, err)

			runs, err := client.Runs(context.Background(), RunsRequest{})
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestClientShowReturnsStoredRun(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	req := smallRequest()
	req.RunID = "shown"
	req.TestFraction = 0.25
	summary, err := client.Run(ctx, req)
	require.NoError(t, err)

	detail, err := client.Show(ctx, ShowRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, "shown", detail.RunID)
	assert.Equal(t, summary.Solution, detail.Solution)
	assert.Equal(t, 0.25, detail.TestFraction)
	assert.Equal(t, 6, detail.ChromosomeLength)
	assert.Equal(t, req.PopulationSize, detail.PopulationSize)
	assert.Equal(t, req.Generations, detail.Generations)
	assert.Equal(t, DefaultEliteSize, detail.EliteSize)
	assert.Equal(t, req.Seed, detail.Seed)

	_, err = client.Show(ctx, ShowRequest{RunID: "missing"})
	require.Error(t, err)
}

func TestClientRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, t.TempDir())
	_, err := client.Run(ctx, smallRequest())
	require.True(t, errors.Is(err, context.Canceled))

	runs, err := client.Runs(context.Background(), RunsRequest{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestClientMetricsFallsBackToResultsDir(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	summary, err := newTestClient(t, base).Run(ctx, smallRequest())
	require.NoError(t, err)

	fresh := newTestClient(t, base)
	records, err := fresh.Metrics(ctx, MetricsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Equal(t, summary.Records, records)

	_, err = fresh.Metrics(ctx, MetricsRequest{RunID: "missing"})
	require.Error(t, err)
}

func TestClientReset(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	_, err := client.Run(ctx, smallRequest())
	require.NoError(t, err)

	require.NoError(t, client.Reset(ctx))
	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestClientRunSelectionValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	_, err := client.Metrics(ctx, MetricsRequest{})
	require.Error(t, err)
	_, err = client.Metrics(ctx, MetricsRequest{RunID: "a", Latest: true})
	require.Error(t, err)
	_, err = client.Metrics(ctx, MetricsRequest{Latest: true})
	require.Error(t, err)
	_, err = client.Metrics(ctx, MetricsRequest{RunID: "a", Limit: -1})
	require.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{})
	require.Error(t, err)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	_, err := New(Options{StoreKind: "unknown"})
	require.Error(t, err)
}
