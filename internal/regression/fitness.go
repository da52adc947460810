package regression

import (
	"fmt"
	"math"
	"math/rand"

	"featsel/internal/chromosome"

	"github.com/cespare/xxhash/v2"
)

const DefaultTestFraction = 0.2

type FitnessOptions struct {
	TestFraction float64
	Seed         int64
}

// TrainTestSplit shuffles the row indexes and holds out ceil(n*testFraction)
// of them for testing.
func TrainTestSplit(rng *rand.Rand, n int, testFraction float64) ([]int, []int, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1): got %v", testFraction)
	}
	testSize := int(math.Ceil(float64(n) * testFraction))
	if testSize < 1 {
		testSize = 1
	}
	if testSize >= n {
		return nil, nil, fmt.Errorf("dataset with %d rows is too small to split at %v", n, testFraction)
	}
	perm := rng.Perm(n)
	return perm[testSize:], perm[:testSize], nil
}

// SplitSeed derives the split seed for a chromosome, so repeated evaluations
// of one bit pattern always train and test on the same rows.
func SplitSeed(seed int64, c chromosome.Chromosome) int64 {
	return seed ^ int64(xxhash.Sum64String(c.Key()))
}

// NewFitness returns a fitness function scoring a feature mask by the negative
// test RMSE of a linear model trained on the selected columns.
func NewFitness(ds *Dataset, opts FitnessOptions) (func(chromosome.Chromosome) (float64, error), error) {
	if ds == nil || ds.Rows() == 0 {
		return nil, fmt.Errorf("dataset is required")
	}
	if opts.TestFraction == 0 {
		opts.TestFraction = DefaultTestFraction
	}
	if _, _, err := TrainTestSplit(rand.New(rand.NewSource(opts.Seed)), ds.Rows(), opts.TestFraction); err != nil {
		return nil, err
	}

	return func(c chromosome.Chromosome) (float64, error) {
		if len(c) != ds.FeatureCount() {
			return 0, fmt.Errorf("chromosome has %d genes, dataset has %d features", len(c), ds.FeatureCount())
		}
		rmse, err := scoreMask(ds, c, rand.New(rand.NewSource(SplitSeed(opts.Seed, c))), opts.TestFraction)
		if err != nil {
			return 0, err
		}
		return -rmse, nil
	}, nil
}

func scoreMask(ds *Dataset, mask chromosome.Chromosome, rng *rand.Rand, testFraction float64) (float64, error) {
	selected := Filter(ds.Features, mask)
	trainIdx, testIdx, err := TrainTestSplit(rng, ds.Rows(), testFraction)
	if err != nil {
		return 0, err
	}

	trainX, trainY := gather(selected, ds.Labels, trainIdx)
	testX, testY := gather(selected, ds.Labels, testIdx)

	model, err := Fit(trainX, trainY)
	if err != nil {
		return 0, fmt.Errorf("fit %s: %w", mask, err)
	}
	predicted, err := model.Predict(testX)
	if err != nil {
		return 0, err
	}
	return RMSE(testY, predicted)
}

func gather(features [][]float64, labels []float64, idx []int) ([][]float64, []float64) {
	x := make([][]float64, 0, len(idx))
	y := make([]float64, 0, len(idx))
	for _, i := range idx {
		x = append(x, features[i])
		y = append(y, labels[i])
	}
	return x, y
}
