package dataset

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vgsales-dashboard/internal/models"
)

func TestEncodeWorkbook(t *testing.T) {
	ds := &models.CleanDataset{
		Columns: []string{"Name", "Platform", "Year", "Decade", "Global_Sales"},
		Records: []models.Game{
			{Name: "Wii Sports", Platform: "WII", Year: models.IntOf(2006), Decade: models.IntOf(2000), GlobalSales: 82.74},
			{Name: "Pong", Platform: "2600", GlobalSales: math.NaN()},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeWorkbook(&buf, ds))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(WorkbookSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ds.Columns, rows[0])
	assert.Equal(t, []string{"Wii Sports", "WII", "2006", "2000", "82.74"}, rows[1])
	assert.Equal(t, []string{"Pong", "2600"}, rows[2])
}
