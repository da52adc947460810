package regression

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"featsel/internal/chromosome"
)

// Dataset is a numeric table: one feature row per sample and one label.
type Dataset struct {
	Header   []string
	Features [][]float64
	Labels   []float64
}

func (d *Dataset) Rows() int {
	return len(d.Labels)
}

func (d *Dataset) FeatureCount() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a numeric CSV whose last column is the label. A first row
// that does not parse as numbers is kept as the header.
func ReadCSV(in io.Reader) (*Dataset, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true

	ds := &Dataset{}
	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", rowIndex+1, err)
		}
		rowIndex++
		if blankRecord(record) {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("dataset row %d: need at least one feature and a label", rowIndex)
		}

		values, err := parseRecord(record)
		if err != nil {
			if rowIndex == 1 {
				ds.Header = append([]string(nil), record...)
				continue
			}
			return nil, fmt.Errorf("dataset row %d: %w", rowIndex, err)
		}
		ds.Features = append(ds.Features, values[:len(values)-1])
		ds.Labels = append(ds.Labels, values[len(values)-1])
	}
	if ds.Rows() == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	return ds, nil
}

func WriteCSV(out io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(out)
	if len(ds.Header) > 0 {
		if err := writer.Write(ds.Header); err != nil {
			return err
		}
	}
	for i, row := range ds.Features {
		record := make([]string, 0, len(row)+1)
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		record = append(record, strconv.FormatFloat(ds.Labels[i], 'f', -1, 64))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Filter keeps the columns selected by mask.
func Filter(features [][]float64, mask chromosome.Chromosome) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		selected := make([]float64, 0, mask.SelectedCount())
		for j, keep := range mask {
			if keep && j < len(row) {
				selected = append(selected, row[j])
			}
		}
		out[i] = selected
	}
	return out
}

// Synthesize builds a dataset of standard-normal features where only the
// first informative columns drive the label.
func Synthesize(rng *rand.Rand, rows, features, informative int, noise float64) (*Dataset, error) {
	if rows < 2 {
		return nil, fmt.Errorf("rows must be >= 2")
	}
	if features <= 0 {
		return nil, fmt.Errorf("features must be > 0")
	}
	if informative < 0 || informative > features {
		return nil, fmt.Errorf("informative must be in [0, %d]", features)
	}
	if noise < 0 || math.IsNaN(noise) {
		return nil, fmt.Errorf("noise must be >= 0: got %v", noise)
	}

	weights := make([]float64, informative)
	for j := range weights {
		weights[j] = 1 + rng.Float64()*4
		if rng.Intn(2) == 0 {
			weights[j] = -weights[j]
		}
	}

	ds := &Dataset{Header: make([]string, 0, features+1)}
	for j := 0; j < features; j++ {
		ds.Header = append(ds.Header, "x"+strconv.Itoa(j))
	}
	ds.Header = append(ds.Header, "y")

	for i := 0; i < rows; i++ {
		row := make([]float64, features)
		label := 0.0
		for j := range row {
			row[j] = rng.NormFloat64()
			if j < informative {
				label += weights[j] * row[j]
			}
		}
		label += noise * rng.NormFloat64()
		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, label)
	}
	return ds, nil
}

func parseRecord(record []string) ([]float64, error) {
	values := make([]float64, 0, len(record))
	for i, raw := range record {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parse column %d: %w", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
