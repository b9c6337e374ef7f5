// Package dataset reads and writes the delimited files that connect the
// pipeline stages: the raw input, the cleaned dataset and the aggregate tables.
package dataset

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/models"
)

const utf8BOM = "\ufeff"

const (
	RemedyRaw   = "download vgsales.csv and save it at this path"
	RemedyClean = "run `vgsales clean` first"
)

// Table is a header plus string rows, every row padded to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Load reads the raw record set at path in full.
func Load(ctx context.Context, path string) (*models.RawDataset, error) {
	table, err := readTable(ctx, path, "raw dataset", RemedyRaw)
	if err != nil {
		return nil, err
	}

	idx := indexOf(table.Header)
	ds := &models.RawDataset{
		Columns: table.Header,
		Records: make([]models.RawRecord, 0, len(table.Rows)),
	}

	for _, row := range table.Rows {
		rec := models.RawRecord{
			Rank:        cell(row, idx, models.ColRank),
			Name:        cell(row, idx, models.ColName),
			Platform:    cell(row, idx, models.ColPlatform),
			Year:        cell(row, idx, models.ColYear),
			Genre:       cell(row, idx, models.ColGenre),
			Publisher:   cell(row, idx, models.ColPublisher),
			NASales:     cell(row, idx, models.ColNASales),
			EUSales:     cell(row, idx, models.ColEUSales),
			JPSales:     cell(row, idx, models.ColJPSales),
			OtherSales:  cell(row, idx, models.ColOtherSales),
			GlobalSales: cell(row, idx, models.ColGlobalSales),
			Extra:       extraCells(table.Header, row, isCleanKnown),
		}
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

// LoadClean reads a dataset previously written by WriteClean.
func LoadClean(ctx context.Context, path string) (*models.CleanDataset, error) {
	table, err := readTable(ctx, path, "cleaned dataset", RemedyClean)
	if err != nil {
		return nil, err
	}

	idx := indexOf(table.Header)
	ds := &models.CleanDataset{
		Columns: table.Header,
		Records: make([]models.Game, 0, len(table.Rows)),
	}

	for _, row := range table.Rows {
		rank, rankText := ParseRank(cell(row, idx, models.ColRank))
		g := models.Game{
			Rank:        rank,
			RankText:    rankText,
			Name:        cell(row, idx, models.ColName),
			Platform:    cell(row, idx, models.ColPlatform),
			Year:        ParseNullInt(cell(row, idx, models.ColYear)),
			Decade:      ParseNullInt(cell(row, idx, models.ColDecade)),
			Genre:       cell(row, idx, models.ColGenre),
			Publisher:   cell(row, idx, models.ColPublisher),
			NASales:     ParseSales(cell(row, idx, models.ColNASales)),
			EUSales:     ParseSales(cell(row, idx, models.ColEUSales)),
			JPSales:     ParseSales(cell(row, idx, models.ColJPSales)),
			OtherSales:  ParseSales(cell(row, idx, models.ColOtherSales)),
			GlobalSales: ParseSales(cell(row, idx, models.ColGlobalSales)),
			Extra:       extraCells(table.Header, row, isCleanKnown),
		}
		ds.Records = append(ds.Records, g)
	}

	return ds, nil
}

// ReadTable reads any delimited file with a header row.
func ReadTable(ctx context.Context, path, artifact, remedy string) (*Table, error) {
	return readTable(ctx, path, artifact, remedy)
}

func readTable(ctx context.Context, path, artifact, remedy string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, &errors.MissingInputError{Artifact: artifact, Path: path, Remedy: remedy, Cause: err}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return decodeTable(ctx, file)
}

func decodeTable(ctx context.Context, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	disambiguate(header)

	table := &Table{Header: header}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		row := make([]string, len(header))
		copy(row, record)
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// disambiguate renames repeated header names in place: the second "Notes"
// becomes "Notes.1", the third "Notes.2", skipping names already taken.
func disambiguate(header []string) {
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}

	seen := make(map[string]int, len(header))
	for i, h := range header {
		n, dup := seen[h]
		if !dup {
			seen[h] = 0
			continue
		}
		name := h
		for taken[name] {
			n++
			name = h + "." + strconv.Itoa(n)
		}
		seen[h] = n
		taken[name] = true
		header[i] = name
	}
}

// ParseNullInt parses an integer cell. Values written as floats ("1986.0")
// are accepted when integral.
func ParseNullInt(s string) models.NullInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NullInt{}
	}
	if v, err := strconv.Atoi(s); err == nil {
		return models.IntOf(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return models.NullInt{}
	}
	return models.IntOf(int(f))
}

// ParseRank parses a Rank cell. A cell that is not an integer is kept as
// trimmed text so it round-trips unchanged.
func ParseRank(s string) (models.NullInt, string) {
	n := ParseNullInt(s)
	if n.Valid {
		return n, ""
	}
	return n, strings.TrimSpace(s)
}

// ParseSales parses a sales cell; anything unparseable is NaN.
func ParseSales(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func indexOf(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func extraCells(header, row []string, known func(string) bool) map[string]string {
	var extra map[string]string
	for i, h := range header {
		if known(h) {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		if i < len(row) {
			extra[h] = row[i]
		} else {
			extra[h] = ""
		}
	}
	return extra
}

func isCleanKnown(column string) bool {
	for _, c := range models.CleanColumnOrder {
		if c == column {
			return true
		}
	}
	return false
}
