package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const rankTolerance = 1e-10

// Model is an ordinary least squares fit with intercept.
type Model struct {
	Intercept    float64
	Coefficients []float64
}

// Fit solves least squares on centered data with an SVD, so rank-deficient
// designs get the minimum-norm coefficients. With no feature columns the model
// predicts the mean label.
func Fit(features [][]float64, labels []float64) (*Model, error) {
	n := len(labels)
	if n == 0 {
		return nil, fmt.Errorf("cannot fit on zero samples")
	}
	if len(features) != n {
		return nil, fmt.Errorf("features/labels mismatch: %d != %d", len(features), n)
	}
	k := len(features[0])
	for i, row := range features {
		if len(row) != k {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), k)
		}
	}

	labelMean := stat.Mean(labels, nil)
	if k == 0 {
		return &Model{Intercept: labelMean}, nil
	}

	means := make([]float64, k)
	for _, row := range features {
		floats.Add(means, row)
	}
	floats.Scale(1/float64(n), means)

	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, v-means[j])
		}
		y.SetVec(i, labels[i]-labelMean)
	}

	coefficients := make([]float64, k)
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed")
	}
	if rank := svd.Rank(rankTolerance); rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, y, rank)
		for j := range coefficients {
			coefficients[j] = beta.AtVec(j)
		}
	}

	return &Model{
		Intercept:    labelMean - floats.Dot(means, coefficients),
		Coefficients: coefficients,
	}, nil
}

func (m *Model) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), len(m.Coefficients))
		}
		out[i] = m.Intercept
		if len(row) > 0 {
			out[i] += floats.Dot(row, m.Coefficients)
		}
	}
	return out, nil
}

// RMSE is the root-mean-squared error between truth and predicted.
func RMSE(truth, predicted []float64) (float64, error) {
	if len(truth) != len(predicted) {
		return 0, fmt.Errorf("length mismatch: %d != %d", len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return 0, fmt.Errorf("cannot score zero samples")
	}
	return floats.Distance(truth, predicted, 2) / math.Sqrt(float64(len(truth))), nil
}
