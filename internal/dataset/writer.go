package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"vgsales-dashboard/internal/models"
)

// WriteTable writes table to path. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial file.
func WriteTable(path string, table *Table) error {
	slog.Debug("writing CSV file",
		slog.String("path", path),
		slog.Int("record_count", len(table.Rows)))

	return writeAtomic(path, func(w io.Writer) error {
		return EncodeTable(w, table)
	})
}

// EncodeTable writes table as CSV to w.
func EncodeTable(w io.Writer, table *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteClean persists a cleaned dataset in its column order.
func WriteClean(path string, ds *models.CleanDataset) error {
	return WriteTable(path, CleanTable(ds))
}

// EncodeClean writes a cleaned dataset as CSV to w.
func EncodeClean(w io.Writer, ds *models.CleanDataset) error {
	return EncodeTable(w, CleanTable(ds))
}

// CleanTable converts a cleaned dataset to string rows.
func CleanTable(ds *models.CleanDataset) *Table {
	table := &Table{
		Header: ds.Columns,
		Rows:   make([][]string, 0, len(ds.Records)),
	}
	for _, g := range ds.Records {
		table.Rows = append(table.Rows, GameRow(ds.Columns, g))
	}
	return table
}

// GameRow renders g as cells in the given column order.
func GameRow(columns []string, g models.Game) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = GameCell(g, c)
	}
	return row
}

// GameCell renders a single field of g.
func GameCell(g models.Game, column string) string {
	switch column {
	case models.ColRank:
		return g.RankCell()
	case models.ColName:
		return g.Name
	case models.ColPlatform:
		return g.Platform
	case models.ColYear:
		return g.Year.String()
	case models.ColDecade:
		return g.Decade.String()
	case models.ColGenre:
		return g.Genre
	case models.ColPublisher:
		return g.Publisher
	case models.ColNASales, models.ColEUSales, models.ColJPSales, models.ColOtherSales, models.ColGlobalSales:
		return FormatFloat(g.Sales(column))
	default:
		return g.Extra[column]
	}
}

// FormatFloat renders v in its shortest form; NaN is an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
