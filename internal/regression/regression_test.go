package regression

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"featsel/internal/chromosome"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *Dataset {
	return &Dataset{
		Features: [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}},
		Labels:   []float64{6, 15, 24},
	}
}

func TestFilter(t *testing.T) {
	selected := Filter(fixture().Features, chromosome.Chromosome{true, false, true})
	assert.Equal(t, [][]float64{{1, 3}, {4, 6}, {7, 9}}, selected)
}

func TestFitRecoversLinearRelation(t *testing.T) {
	ds := fixture()
	model, err := Fit(ds.Features, ds.Labels)
	require.NoError(t, err)
	assert.InDelta(t, 0, model.Intercept, 1e-9)
	require.Len(t, model.Coefficients, 3)
	for _, coef := range model.Coefficients {
		assert.InDelta(t, 1, coef, 1e-9)
	}
}

func TestFitWithoutFeaturesPredictsMean(t *testing.T) {
	model, err := Fit([][]float64{{}, {}, {}}, []float64{1, 2, 6})
	require.NoError(t, err)
	predicted, err := model.Predict([][]float64{{}})
	require.NoError(t, err)
	assert.InDelta(t, 3, predicted[0], 1e-12)
}

func TestFitSingleSample(t *testing.T) {
	model, err := Fit([][]float64{{2, 3}}, []float64{5})
	require.NoError(t, err)
	predicted, err := model.Predict([][]float64{{10, 10}})
	require.NoError(t, err)
	assert.InDelta(t, 5, predicted[0], 1e-12)
}

func TestRMSE(t *testing.T) {
	value, err := RMSE([]float64{1, 2, 3, 4}, []float64{2, 3, 4, 5})
	require.NoError(t, err)
	assert.InDelta(t, 1, value, 1e-12)

	_, err = RMSE([]float64{1}, []float64{1, 2})
	require.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	train, test, err := TrainTestSplit(rng, 10, 0.2)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)

	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	_, _, err = TrainTestSplit(rng, 1, 0.2)
	require.Error(t, err)
	_, _, err = TrainTestSplit(rng, 10, 1)
	require.Error(t, err)
}

func TestNegativeRMSEOnExactRelation(t *testing.T) {
	fitness, err := NewFitness(fixture(), FitnessOptions{Seed: 1})
	require.NoError(t, err)
	value, err := fitness(chromosome.Full(3))
	require.NoError(t, err)
	assert.InDelta(t, 0, value, 1e-9)
}

func TestFitnessIsDeterministicPerChromosome(t *testing.T) {
	ds, err := Synthesize(rand.New(rand.NewSource(2)), 60, 6, 3, 0.5)
	require.NoError(t, err)
	fitness, err := NewFitness(ds, FitnessOptions{Seed: 9})
	require.NoError(t, err)

	c := chromosome.Chromosome{true, false, true, true, false, false}
	first, err := fitness(c)
	require.NoError(t, err)
	second, err := fitness(c.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Less(t, first, 0.0)
}

func TestFitnessHandlesDegenerateMasks(t *testing.T) {
	ds, err := Synthesize(rand.New(rand.NewSource(3)), 40, 5, 2, 0.1)
	require.NoError(t, err)
	fitness, err := NewFitness(ds, FitnessOptions{Seed: 1})
	require.NoError(t, err)

	empty, err := fitness(make(chromosome.Chromosome, 5))
	require.NoError(t, err)
	full, err := fitness(chromosome.Full(5))
	require.NoError(t, err)
	informative, err := fitness(chromosome.Chromosome{true, true, false, false, false})
	require.NoError(t, err)

	assert.Greater(t, full, empty)
	assert.Greater(t, informative, empty)

	_, err = fitness(chromosome.Full(4))
	require.Error(t, err)
}

func TestReadCSVWithHeader(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("a,b,y\n1,2,3\n\n4,5,9\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "y"}, ds.Header)
	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, 2, ds.FeatureCount())
	assert.Equal(t, []float64{3, 9}, ds.Labels)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
	_, err = ReadCSV(strings.NewReader("1,2\n3,x\n"))
	require.Error(t, err)
	_, err = ReadCSV(strings.NewReader("1\n2\n"))
	require.Error(t, err)
}

func TestWriteAndLoadCSV(t *testing.T) {
	ds, err := Synthesize(rand.New(rand.NewSource(4)), 10, 3, 1, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Header, loaded.Header)
	assert.Equal(t, ds.Labels, loaded.Labels)
	assert.Equal(t, ds.Features, loaded.Features)
}

func TestSynthesizeValidatesArguments(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	_, err := Synthesize(rng, 1, 3, 1, 0)
	require.Error(t, err)
	_, err = Synthesize(rng, 10, 3, 4, 0)
	require.Error(t, err)
	_, err = Synthesize(rng, 10, 3, 1, -0.5)
	require.Error(t, err)
	_, err = Synthesize(rng, 10, 3, 1, math.NaN())
	require.Error(t, err)
}
