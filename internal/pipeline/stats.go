package pipeline

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vgsales-dashboard/internal/models"
)

// SalesStatistics describes each sales column present in ds. NaN cells are
// skipped; the standard deviation is the sample (n-1) estimate.
func SalesStatistics(ds *models.CleanDataset) []models.ColumnStats {
	columns := ds.PresentSales()
	result := make([]models.ColumnStats, 0, len(columns))
	for _, col := range columns {
		values := make([]float64, 0, len(ds.Records))
		for _, g := range ds.Records {
			if v := g.Sales(col); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		result = append(result, Describe(col, values))
	}
	return result
}

// Describe computes count, mean, std, min, quartiles and max of values.
func Describe(column string, values []float64) models.ColumnStats {
	s := models.ColumnStats{
		Column: column,
		Count:  len(values),
		Mean:   math.NaN(),
		Std:    math.NaN(),
		Min:    math.NaN(),
		Q25:    math.NaN(),
		Q50:    math.NaN(),
		Q75:    math.NaN(),
		Max:    math.NaN(),
	}
	if len(values) == 0 {
		return s
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	s.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.Q25 = quantile(sorted, 0.25)
	s.Q50 = quantile(sorted, 0.50)
	s.Q75 = quantile(sorted, 0.75)
	return s
}

// quantile interpolates linearly between closest ranks at position p*(n-1).
// stat.Quantile's LinInterp interpolates the empirical CDF instead, which
// gives different quartiles for small samples.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// SalesCorrelation returns the Pearson correlation between every pair of
// sales columns present in ds. Rows with a NaN in any of those columns are
// left out; a column without variance correlates as NaN.
func SalesCorrelation(ds *models.CleanDataset) ([]string, [][]float64) {
	columns := ds.PresentSales()
	series := make([][]float64, len(columns))
	for _, g := range ds.Records {
		complete := true
		for _, col := range columns {
			if math.IsNaN(g.Sales(col)) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for i, col := range columns {
			series[i] = append(series[i], g.Sales(col))
		}
	}

	matrix := make([][]float64, len(columns))
	for i := range columns {
		matrix[i] = make([]float64, len(columns))
		for j := range columns {
			matrix[i][j] = correlation(series[i], series[j])
		}
	}
	return columns, matrix
}

func correlation(x, y []float64) float64 {
	if len(x) < 2 || stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
