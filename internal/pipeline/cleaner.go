// Package pipeline holds the cleaning and aggregation transforms. Every
// function here is a pure transform over in-memory datasets; reading and
// persisting files is left to the dataset package and the runner.
package pipeline

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/models"
)

// UnknownPublisher replaces absent or malformed publishers.
const UnknownPublisher = "Unknown"

// maxYear bounds accepted years so rounding never overflows int.
const maxYear = 1_000_000

var missingMarkers = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"<na>": {},
}

// CleanSummary reports row counts for a cleaning pass.
type CleanSummary struct {
	RowsIn            int `json:"rows_in" yaml:"rows_in"`
	RowsInvalid       int `json:"rows_invalid" yaml:"rows_invalid"`
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
	RowsOut           int `json:"rows_out" yaml:"rows_out"`
	MissingYear       int `json:"missing_year" yaml:"missing_year"`
	Columns           int `json:"columns" yaml:"columns"`
}

// Clean turns a raw dataset into its canonical cleaned form. The only error
// it returns is a *errors.SchemaError; malformed cells are coerced or the
// row is dropped.
func Clean(raw *models.RawDataset) (*models.CleanDataset, CleanSummary, error) {
	summary := CleanSummary{RowsIn: len(raw.Records)}

	for _, col := range models.RequiredColumns {
		if !raw.Has(col) {
			return nil, summary, &errors.SchemaError{Column: col}
		}
	}

	title := cases.Title(language.Und)

	games := make([]models.Game, 0, len(raw.Records))
	for _, rec := range raw.Records {
		name, okName := normalizeText(rec.Name)
		platform, okPlatform := normalizeText(rec.Platform)
		genre, okGenre := normalizeText(rec.Genre)
		publisher, okPublisher := normalizeText(rec.Publisher)

		if !okName || !okPlatform || !okGenre {
			summary.RowsInvalid++
			continue
		}

		if okPublisher {
			publisher = title.String(publisher)
		} else {
			publisher = UnknownPublisher
		}

		rank, rankText := dataset.ParseRank(rec.Rank)
		if _, ok := normalizeText(rankText); !ok {
			rankText = ""
		}

		games = append(games, models.Game{
			Rank:        rank,
			RankText:    rankText,
			Name:        name,
			Platform:    strings.ToUpper(platform),
			Year:        coerceYear(rec.Year),
			Genre:       title.String(genre),
			Publisher:   publisher,
			NASales:     dataset.ParseSales(rec.NASales),
			EUSales:     dataset.ParseSales(rec.EUSales),
			JPSales:     dataset.ParseSales(rec.JPSales),
			OtherSales:  dataset.ParseSales(rec.OtherSales),
			GlobalSales: dataset.ParseSales(rec.GlobalSales),
			Extra:       rec.Extra,
		})
	}

	games = dedupe(games)
	summary.DuplicatesRemoved = summary.RowsIn - summary.RowsInvalid - len(games)

	for i := range games {
		games[i].Decade = DecadeOf(games[i].Year)
		if !games[i].Year.Valid {
			summary.MissingYear++
		}
	}

	columns := orderColumns(raw.Columns)
	summary.RowsOut = len(games)
	summary.Columns = len(columns)

	return &models.CleanDataset{Columns: columns, Records: games}, summary, nil
}

// DecadeOf returns floor(year/10)*10, absent when year is absent.
func DecadeOf(year models.NullInt) models.NullInt {
	if !year.Valid {
		return models.NullInt{}
	}
	d := year.Value / 10
	if year.Value%10 != 0 && year.Value < 0 {
		d--
	}
	return models.IntOf(d * 10)
}

func normalizeText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, missing := missingMarkers[strings.ToLower(s)]; missing {
		return "", false
	}
	return s, true
}

func coerceYear(s string) models.NullInt {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > maxYear {
		return models.NullInt{}
	}
	return models.IntOf(int(math.RoundToEven(f)))
}

// dedupe keeps the highest Global_Sales row per (Name, Platform). Names
// match case-insensitively; the survivor keeps its own spelling. The result
// stays in descending Global_Sales order.
func dedupe(games []models.Game) []models.Game {
	SortBySalesDesc(games)

	fold := cases.Fold()
	type key struct{ name, platform string }
	seen := make(map[key]struct{}, len(games))
	out := games[:0]
	for _, g := range games {
		k := key{fold.String(g.Name), g.Platform}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g)
	}
	return out
}

// SortBySalesDesc stably sorts games by Global_Sales descending with NaN last.
func SortBySalesDesc(games []models.Game) {
	slices.SortStableFunc(games, func(a, b models.Game) int {
		return compareDesc(a.GlobalSales, b.GlobalSales)
	})
}

func compareDesc(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return cmp.Compare(b, a)
}

func orderColumns(raw []string) []string {
	present := make(map[string]bool, len(raw))
	for _, c := range raw {
		present[c] = true
	}
	present[models.ColYear] = true
	present[models.ColDecade] = true

	known := make(map[string]bool, len(models.CleanColumnOrder))
	columns := make([]string, 0, len(raw)+2)
	for _, c := range models.CleanColumnOrder {
		known[c] = true
		if present[c] {
			columns = append(columns, c)
		}
	}

	for _, c := range raw {
		if known[c] {
			continue
		}
		known[c] = true
		columns = append(columns, c)
	}
	return columns
}
