package stats

import (
	"image/color"

	"featsel/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	averageColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	entropyColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	black        = color.RGBA{A: 255}
)

// PlotFitness draws average, baseline and best fitness per generation.
func PlotFitness(records []model.GenerationRecord, outPath string) error {
	p := plot.New()
	p.Title.Text = "Genetic Algorithm"
	p.X.Label.Text = "generation"
	p.Y.Label.Text = "fitness / -RMSE"

	average := make(plotter.XYs, len(records))
	baseline := make(plotter.XYs, len(records))
	best := make(plotter.XYs, len(records))
	for i, record := range records {
		x := float64(record.Generation)
		average[i] = plotter.XY{X: x, Y: record.Average}
		baseline[i] = plotter.XY{X: x, Y: record.Baseline}
		best[i] = plotter.XY{X: x, Y: record.Best}
	}

	averageLine, err := plotter.NewLine(average)
	if err != nil {
		return err
	}
	averageLine.Color = averageColor

	baselineLine, err := plotter.NewLine(baseline)
	if err != nil {
		return err
	}
	baselineLine.Color = black

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	bestLine.Color = black
	bestLine.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(averageLine, baselineLine, bestLine)
	p.Legend.Add("Average", averageLine)
	p.Legend.Add("Baseline", baselineLine)
	p.Legend.Add("Best", bestLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, outPath)
}

// PlotEntropy draws the allele-frequency entropy per generation.
func PlotEntropy(records []model.GenerationRecord, outPath string) error {
	p := plot.New()
	p.Title.Text = "Population diversity"
	p.X.Label.Text = "generation"
	p.Y.Label.Text = "entropy"

	points := make(plotter.XYs, len(records))
	for i, record := range records {
		points[i] = plotter.XY{X: float64(record.Generation), Y: record.Entropy}
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return err
	}
	line.Color = entropyColor
	p.Add(line)
	p.Legend.Add("Entropy", line)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, outPath)
}
