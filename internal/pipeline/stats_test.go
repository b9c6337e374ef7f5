package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vgsales-dashboard/internal/models"
)

func TestDescribe(t *testing.T) {
	s := Describe("Global_Sales", []float64{4, 1, 3, 2})

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.Q25, 1e-12)
	assert.InDelta(t, 2.5, s.Q50, 1e-12)
	assert.InDelta(t, 3.25, s.Q75, 1e-12)
	assert.Equal(t, 4.0, s.Max)
}

func TestDescribe_SmallSamples(t *testing.T) {
	empty := Describe("NA_Sales", nil)
	assert.Equal(t, 0, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.Max))

	single := Describe("NA_Sales", []float64{7})
	assert.Equal(t, 1, single.Count)
	assert.Equal(t, 7.0, single.Mean)
	assert.True(t, math.IsNaN(single.Std))
	assert.Equal(t, 7.0, single.Q25)
	assert.Equal(t, 7.0, single.Q75)
}

func TestSalesStatistics_SkipsNaNAndAbsentColumns(t *testing.T) {
	ds := &models.CleanDataset{
		Columns: []string{"Name", "Platform", "Genre", "JP_Sales", "Global_Sales"},
		Records: []models.Game{
			{Name: "A", JPSales: 1, GlobalSales: 2},
			{Name: "B", JPSales: math.NaN(), GlobalSales: 4},
		},
	}

	stats := SalesStatistics(ds)
	require.Len(t, stats, 2)
	assert.Equal(t, "JP_Sales", stats[0].Column)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, "Global_Sales", stats[1].Column)
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, 3.0, stats[1].Mean)
}

func TestStatisticsTable(t *testing.T) {
	table := StatisticsTable([]models.ColumnStats{Describe("Global_Sales", []float64{1, 2})})

	assert.Equal(t, []string{"", "Global_Sales"}, table.Header)
	require.Len(t, table.Rows, 8)
	assert.Equal(t, []string{"count", "2"}, table.Rows[0])
	assert.Equal(t, []string{"mean", "1.5"}, table.Rows[1])
	assert.Equal(t, []string{"max", "2"}, table.Rows[7])
}

func TestSalesCorrelation(t *testing.T) {
	ds := &models.CleanDataset{
		Columns: []string{"Name", "NA_Sales", "EU_Sales", "JP_Sales"},
		Records: []models.Game{
			{Name: "a", NASales: 1, EUSales: 2, JPSales: 3},
			{Name: "b", NASales: 2, EUSales: 4, JPSales: 2},
			{Name: "c", NASales: 3, EUSales: 6, JPSales: 1},
			{Name: "d", NASales: math.NaN(), EUSales: 100, JPSales: 100},
		},
	}

	columns, matrix := SalesCorrelation(ds)
	require.Equal(t, []string{"NA_Sales", "EU_Sales", "JP_Sales"}, columns)
	require.Len(t, matrix, 3)

	assert.InDelta(t, 1.0, matrix[0][0], 1e-12)
	assert.InDelta(t, 1.0, matrix[0][1], 1e-12)
	assert.InDelta(t, -1.0, matrix[0][2], 1e-12)
	assert.Equal(t, matrix[1][2], matrix[2][1])
}

func TestSalesCorrelation_ConstantColumn(t *testing.T) {
	ds := &models.CleanDataset{
		Columns: []string{"NA_Sales", "EU_Sales"},
		Records: []models.Game{
			{NASales: 1, EUSales: 5},
			{NASales: 2, EUSales: 5},
		},
	}

	_, matrix := SalesCorrelation(ds)
	assert.True(t, math.IsNaN(matrix[0][1]))
	assert.True(t, math.IsNaN(matrix[1][1]))
}
