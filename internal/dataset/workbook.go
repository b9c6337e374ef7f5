package dataset

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"vgsales-dashboard/internal/models"
)

// WorkbookSheet names the single sheet EncodeWorkbook writes.
const WorkbookSheet = "Sales"

// EncodeWorkbook writes ds as an xlsx workbook. Numeric columns become
// numeric cells and absent values stay empty.
func EncodeWorkbook(w io.Writer, ds *models.CleanDataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), WorkbookSheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(WorkbookSheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]interface{}, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, g := range ds.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, workbookRow(ds.Columns, g)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func workbookRow(columns []string, g models.Game) []interface{} {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		switch c {
		case models.ColRank:
			if g.Rank.Valid {
				row[i] = g.Rank.Value
			} else if g.RankText != "" {
				row[i] = g.RankText
			}
		case models.ColYear:
			row[i] = nullIntCell(g.Year)
		case models.ColDecade:
			row[i] = nullIntCell(g.Decade)
		case models.ColNASales, models.ColEUSales, models.ColJPSales, models.ColOtherSales, models.ColGlobalSales:
			if v := g.Sales(c); !math.IsNaN(v) {
				row[i] = v
			}
		default:
			row[i] = GameCell(g, c)
		}
	}
	return row
}

func nullIntCell(n models.NullInt) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Value
}
