package pipeline

import (
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/models"
)

var fullColumns = []string{
	"Rank", "Name", "Platform", "Year", "Genre", "Publisher",
	"NA_Sales", "EU_Sales", "JP_Sales", "Other_Sales", "Global_Sales",
}

func rawGame(rank, name, platform, year, genre, publisher, na, eu, jp, other, global string) models.RawRecord {
	return models.RawRecord{
		Rank:        rank,
		Name:        name,
		Platform:    platform,
		Year:        year,
		Genre:       genre,
		Publisher:   publisher,
		NASales:     na,
		EUSales:     eu,
		JPSales:     jp,
		OtherSales:  other,
		GlobalSales: global,
	}
}

func rawDataset(records ...models.RawRecord) *models.RawDataset {
	return &models.RawDataset{Columns: fullColumns, Records: records}
}

func TestClean_DuplicatePairKeepsHighestSales(t *testing.T) {
	raw := rawDataset(
		rawGame("1", "zelda ", "nes", "1986.4", "Action", "nintendo", "1", "1", "0", "0", "2"),
		rawGame("2", "Zelda", "NES", "1986", "Action", "Nintendo", "1", "1", "0", "0", "1.5"),
	)

	ds, summary, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, 1, summary.DuplicatesRemoved)

	// Name is trimmed, never re-cased.
	top := ds.Records[0]
	assert.Equal(t, "zelda", top.Name)
	assert.Equal(t, "NES", top.Platform)
	assert.Equal(t, models.IntOf(1986), top.Year)
	assert.Equal(t, models.IntOf(1980), top.Decade)
	assert.Equal(t, 2.0, top.GlobalSales)
	assert.Equal(t, "Nintendo", top.Publisher)
}

func TestClean_SameNameAndPlatformCollapse(t *testing.T) {
	raw := rawDataset(
		rawGame("2", "Zelda", "nes", "1986", "Action", "Nintendo", "1", "1", "0", "0", "1.5"),
		rawGame("1", "Zelda ", "NES", "1986.4", "action", "nintendo", "1", "1", "0", "0", "2"),
	)

	ds, summary, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, 1, summary.DuplicatesRemoved)

	g := ds.Records[0]
	assert.Equal(t, "Zelda", g.Name)
	assert.Equal(t, "NES", g.Platform)
	assert.Equal(t, models.IntOf(1986), g.Year)
	assert.Equal(t, models.IntOf(1980), g.Decade)
	assert.Equal(t, 2.0, g.GlobalSales)
	assert.Equal(t, models.IntOf(1), g.Rank)
}

func TestClean_TiesKeepFirstInInputOrder(t *testing.T) {
	raw := rawDataset(
		rawGame("7", "Tetris", "GB", "1989", "Puzzle", "Nintendo", "", "", "", "", "3"),
		rawGame("8", "Tetris", "GB", "1989", "Puzzle", "Nintendo", "", "", "", "", "3"),
		rawGame("9", "Tetris", "GB", "1989", "Puzzle", "Nintendo", "", "", "", "", "1"),
	)

	ds, _, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, models.IntOf(7), ds.Records[0].Rank)
}

func TestClean_MissingYearIsKept(t *testing.T) {
	raw := rawDataset(
		rawGame("1", "Madden", "PS2", "N/A", "Sports", "EA", "1", "0", "0", "0", "1"),
		rawGame("2", "Fifa", "PS2", "", "Sports", "EA", "1", "0", "0", "0", "1"),
	)

	ds, summary, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, 2, summary.MissingYear)

	for _, g := range ds.Records {
		assert.False(t, g.Year.Valid)
		assert.False(t, g.Decade.Valid)
	}
}

func TestClean_RowsMissingCriticalTextAreDropped(t *testing.T) {
	raw := rawDataset(
		rawGame("1", "No Genre", "PS2", "2001", "", "EA", "1", "0", "0", "0", "1"),
		rawGame("2", "", "PS2", "2001", "Sports", "EA", "1", "0", "0", "0", "1"),
		rawGame("3", "No Platform", "nan", "2001", "Sports", "EA", "1", "0", "0", "0", "1"),
		rawGame("4", "Kept", "PS2", "2001", "Sports", "EA", "1", "0", "0", "0", "1"),
	)

	ds, summary, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "Kept", ds.Records[0].Name)
	assert.Equal(t, 3, summary.RowsInvalid)
	assert.Equal(t, 4, summary.RowsIn)
	assert.Equal(t, 1, summary.RowsOut)
}

func TestClean_MissingRequiredColumn(t *testing.T) {
	for _, missing := range models.RequiredColumns {
		t.Run(missing, func(t *testing.T) {
			var columns []string
			for _, c := range fullColumns {
				if c != missing {
					columns = append(columns, c)
				}
			}
			raw := &models.RawDataset{Columns: columns}

			_, _, err := Clean(raw)
			require.Error(t, err)

			var schemaErr *errors.SchemaError
			require.True(t, stderrors.As(err, &schemaErr))
			assert.Equal(t, missing, schemaErr.Column)
		})
	}
}

func TestClean_CategoryNormalization(t *testing.T) {
	tests := []struct {
		name          string
		platform      string
		genre         string
		publisher     string
		wantPlatform  string
		wantGenre     string
		wantPublisher string
	}{
		{"upper platform", "ps4", "action", "ubisoft", "PS4", "Action", "Ubisoft"},
		{"title genre", "X360", "SPORTS", "electronic arts", "X360", "Sports", "Electronic Arts"},
		{"blank publisher", "wii", "Misc", "   ", "WII", "Misc", UnknownPublisher},
		{"nan publisher", "wii", "Misc", "nan", "WII", "Misc", UnknownPublisher},
		{"n/a publisher", "wii", "Misc", "N/A", "WII", "Misc", UnknownPublisher},
		{"padded text", "  ds ", " puzzle ", " nintendo ", "DS", "Puzzle", "Nintendo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawDataset(rawGame("1", "Game", tt.platform, "2000", tt.genre, tt.publisher, "", "", "", "", "1"))

			ds, _, err := Clean(raw)
			require.NoError(t, err)
			require.Len(t, ds.Records, 1)

			g := ds.Records[0]
			assert.Equal(t, tt.wantPlatform, g.Platform)
			assert.Equal(t, tt.wantGenre, g.Genre)
			assert.Equal(t, tt.wantPublisher, g.Publisher)
		})
	}
}

func TestClean_YearCoercion(t *testing.T) {
	tests := []struct {
		in   string
		want models.NullInt
	}{
		{"1986", models.IntOf(1986)},
		{"1986.4", models.IntOf(1986)},
		{"1986.5", models.IntOf(1986)},
		{"1987.5", models.IntOf(1988)},
		{" 2001 ", models.IntOf(2001)},
		{"N/A", models.NullInt{}},
		{"", models.NullInt{}},
		{"soon", models.NullInt{}},
		{"nan", models.NullInt{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceYear(tt.in))
		})
	}
}

func TestDecadeOf(t *testing.T) {
	assert.Equal(t, models.IntOf(1980), DecadeOf(models.IntOf(1980)))
	assert.Equal(t, models.IntOf(1980), DecadeOf(models.IntOf(1989)))
	assert.Equal(t, models.IntOf(2010), DecadeOf(models.IntOf(2016)))
	assert.Equal(t, models.IntOf(-10), DecadeOf(models.IntOf(-5)))
	assert.Equal(t, models.NullInt{}, DecadeOf(models.NullInt{}))
}

func TestClean_NegativeSalesPassThrough(t *testing.T) {
	raw := rawDataset(rawGame("1", "Refund", "PC", "2010", "Misc", "Valve", "-0.5", "0", "0", "0", "-0.5"))

	ds, _, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, -0.5, ds.Records[0].GlobalSales)
	assert.Equal(t, -0.5, ds.Records[0].NASales)
}

func TestClean_ColumnOrder(t *testing.T) {
	raw := &models.RawDataset{
		Columns: []string{"Critic_Score", "Global_Sales", "Name", "Genre", "Platform", "Notes"},
		Records: []models.RawRecord{{
			Name:        "Halo",
			Platform:    "xb",
			Genre:       "shooter",
			GlobalSales: "5",
			Extra:       map[string]string{"Critic_Score": "97", "Notes": "launch title"},
		}},
	}

	ds, _, err := Clean(raw)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"Name", "Platform", "Year", "Decade", "Genre", "Global_Sales", "Critic_Score", "Notes"},
		ds.Columns)

	row := dataset.GameRow(ds.Columns, ds.Records[0])
	assert.Equal(t, []string{"Halo", "XB", "", "", "Shooter", "5", "97", "launch title"}, row)
}

func TestClean_Invariants(t *testing.T) {
	raw := rawDataset(
		rawGame("1", "Wii Sports", "wii", "2006", "sports", "nintendo", "41.49", "29.02", "3.77", "8.46", "82.74"),
		rawGame("2", "Super Mario Bros.", "nes", "1985", "platform", "nintendo", "29.08", "3.58", "6.81", "0.77", "40.24"),
		rawGame("3", "Wii Sports", "Wii", "2006", "Sports", "Nintendo", "1", "1", "1", "1", "4"),
		rawGame("4", "Mario Kart Wii", "wii", "2008.2", "racing", "nintendo", "15.85", "12.88", "3.79", "3.31", "35.82"),
		rawGame("5", "Pong", "2600", "", "sports", "", "", "", "", "", "0.5"),
		rawGame("6", "Mario Kart Wii", "WII", "2008", "Racing", "Nintendo", "", "", "", "", ""),
	)

	ds, _, err := Clean(raw)
	require.NoError(t, err)

	groups := map[[2]string][]float64{}
	for _, r := range raw.Records {
		key := [2]string{strings.ToLower(trimmed(r.Name)), strings.ToUpper(trimmed(r.Platform))}
		groups[key] = append(groups[key], dataset.ParseSales(r.GlobalSales))
	}

	seen := map[[2]string]bool{}
	for _, g := range ds.Records {
		assert.Equal(t, strings.ToUpper(g.Platform), g.Platform, "platform must be upper case")

		key := [2]string{strings.ToLower(g.Name), g.Platform}
		assert.False(t, seen[key], "duplicate pair %v", key)
		seen[key] = true

		assert.Equal(t, maxSales(groups[key]), g.GlobalSales, "survivor of %v", key)
		assert.Equal(t, g.Year.Valid, g.Decade.Valid)
		if g.Year.Valid {
			assert.Equal(t, DecadeOf(g.Year), g.Decade)
		}
	}
}

func trimmed(s string) string {
	v, _ := normalizeText(s)
	return v
}

func maxSales(values []float64) float64 {
	best := math.NaN()
	for _, v := range values {
		if math.IsNaN(best) || (!math.IsNaN(v) && v > best) {
			best = v
		}
	}
	return best
}

func TestClean_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.csv")
	raw := "Rank,Name,Platform,Year,Genre,Publisher,NA_Sales,EU_Sales,JP_Sales,Other_Sales,Global_Sales,Critic_Score\n" +
		"1,Wii Sports,wii,2006,sports,nintendo,41.49,29.02,3.77,8.46,82.74,76\n" +
		"2, zelda ,nes,1986.4,Action,nintendo,1,1,0,0,2,\n" +
		"3,Zelda,NES,1986,Action,Nintendo,1,1,0,0,1.5,\n" +
		"4,Madden,PS2,N/A,sports,,1,0,0,0,1,\n" +
		"5,No Genre,PS2,2001,,EA,1,0,0,0,1,\n" +
		"6,Pong,2600,1972,sports,atari,,,,,,50\n"
	require.NoError(t, os.WriteFile(rawPath, []byte(raw), 0644))

	first := cleanFile(t, rawPath)
	firstPath := filepath.Join(dir, "clean1.csv")
	require.NoError(t, dataset.WriteClean(firstPath, first))

	second := cleanFile(t, firstPath)

	assert.Equal(t, dataset.CleanTable(first), dataset.CleanTable(second))
	assert.Equal(t,
		[]string{"Rank", "Name", "Platform", "Year", "Decade", "Genre", "Publisher",
			"NA_Sales", "EU_Sales", "JP_Sales", "Other_Sales", "Global_Sales", "Critic_Score"},
		second.Columns)
	assert.Len(t, second.Records, 4)
}

func cleanFile(t *testing.T, path string) *models.CleanDataset {
	t.Helper()
	raw, err := dataset.Load(context.Background(), path)
	require.NoError(t, err)
	ds, _, err := Clean(raw)
	require.NoError(t, err)
	return ds
}

func TestClean_NonIntegerRankKeepsText(t *testing.T) {
	raw := rawDataset(
		rawGame("abc", "Tetris", "GB", "1989", "Puzzle", "Nintendo", "", "", "", "", "3"),
		rawGame("1.5", "Zelda", "NES", "1986", "Action", "Nintendo", "", "", "", "", "2"),
		rawGame("N/A", "Pong", "2600", "1972", "Sports", "Atari", "", "", "", "", "1"),
	)

	ds, _, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)

	for i, want := range []string{"abc", "1.5", ""} {
		assert.False(t, ds.Records[i].Rank.Valid)
		assert.Equal(t, want, dataset.GameCell(ds.Records[i], models.ColRank))
	}
}

func TestClean_DuplicateExtraHeadersSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	raw := "Rank,Name,Platform,Year,Genre,Publisher,Notes,Global_Sales,Notes\n" +
		"1,Tetris,GB,1989,Puzzle,Nintendo,a,30.26,b\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	ds := cleanFile(t, path)
	assert.Equal(t, []string{"Rank", "Name", "Platform", "Year", "Decade", "Genre", "Publisher",
		"Global_Sales", "Notes", "Notes.1"}, ds.Columns)

	table := dataset.CleanTable(ds)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"a", "b"}, table.Rows[0][8:])
}
