package pipeline

import (
	"cmp"
	"math"
	"slices"

	"vgsales-dashboard/internal/models"
)

const (
	TopGamesLimit      = 10
	TopPublishersLimit = 20
)

// Aggregates is the full battery of tables computed over one dataset.
type Aggregates struct {
	TopGames         []models.Game
	GenreSales       []models.GenreSales
	AnnualSales      []models.YearSales
	PlatformByDecade []models.PlatformDecadeSales
	TopPublishers    []models.PublisherSales
	Statistics       []models.ColumnStats
}

// Aggregate computes every persisted aggregate over ds. Each table is
// computed independently from the records.
func Aggregate(ds *models.CleanDataset) *Aggregates {
	return &Aggregates{
		TopGames:         TopGames(ds, TopGamesLimit),
		GenreSales:       SalesByGenre(ds),
		AnnualSales:      AnnualSales(ds),
		PlatformByDecade: PlatformByDecade(ds),
		TopPublishers:    TopPublishers(ds, TopPublishersLimit),
		Statistics:       SalesStatistics(ds),
	}
}

// TopGames returns the n records with the highest Global_Sales.
func TopGames(ds *models.CleanDataset, n int) []models.Game {
	games := slices.Clone(ds.Records)
	SortBySalesDesc(games)
	if n >= 0 && len(games) > n {
		games = games[:n]
	}
	return games
}

// SalesByGenre sums every sales column per genre, highest Global_Sales first.
func SalesByGenre(ds *models.CleanDataset) []models.GenreSales {
	groups := make(map[string]*models.GenreSales)
	for _, g := range ds.Records {
		row := groups[g.Genre]
		if row == nil {
			row = &models.GenreSales{Genre: g.Genre}
			groups[g.Genre] = row
		}
		row.NASales += skipNaN(g.NASales)
		row.EUSales += skipNaN(g.EUSales)
		row.JPSales += skipNaN(g.JPSales)
		row.OtherSales += skipNaN(g.OtherSales)
		row.GlobalSales += skipNaN(g.GlobalSales)
	}

	result := make([]models.GenreSales, 0, len(groups))
	for _, row := range groups {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b models.GenreSales) int {
		if c := cmp.Compare(b.GlobalSales, a.GlobalSales); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})
	return result
}

// AnnualSales sums Global_Sales per year for records with a year, oldest first.
func AnnualSales(ds *models.CleanDataset) []models.YearSales {
	groups := make(map[int]float64)
	for _, g := range ds.Records {
		if !g.Year.Valid {
			continue
		}
		groups[g.Year.Value] += skipNaN(g.GlobalSales)
	}

	result := make([]models.YearSales, 0, len(groups))
	for year, sales := range groups {
		result = append(result, models.YearSales{Year: year, GlobalSales: sales})
	}
	slices.SortFunc(result, func(a, b models.YearSales) int {
		return cmp.Compare(a.Year, b.Year)
	})
	return result
}

// PlatformByDecade sums Global_Sales per (decade, platform), ordered by
// decade ascending then sales descending.
func PlatformByDecade(ds *models.CleanDataset) []models.PlatformDecadeSales {
	type key struct {
		decade   int
		platform string
	}
	groups := make(map[key]float64)
	for _, g := range ds.Records {
		if !g.Decade.Valid {
			continue
		}
		groups[key{g.Decade.Value, g.Platform}] += skipNaN(g.GlobalSales)
	}

	result := make([]models.PlatformDecadeSales, 0, len(groups))
	for k, sales := range groups {
		result = append(result, models.PlatformDecadeSales{Decade: k.decade, Platform: k.platform, GlobalSales: sales})
	}
	slices.SortFunc(result, func(a, b models.PlatformDecadeSales) int {
		if c := cmp.Compare(a.Decade, b.Decade); c != 0 {
			return c
		}
		if c := cmp.Compare(b.GlobalSales, a.GlobalSales); c != 0 {
			return c
		}
		return cmp.Compare(a.Platform, b.Platform)
	})
	return result
}

// TopPublishers returns the n publishers with the highest total Global_Sales.
func TopPublishers(ds *models.CleanDataset, n int) []models.PublisherSales {
	groups := make(map[string]float64)
	for _, g := range ds.Records {
		groups[g.Publisher] += skipNaN(g.GlobalSales)
	}

	result := make([]models.PublisherSales, 0, len(groups))
	for publisher, sales := range groups {
		result = append(result, models.PublisherSales{Publisher: publisher, TotalGlobalSales: sales})
	}
	slices.SortFunc(result, func(a, b models.PublisherSales) int {
		if c := cmp.Compare(b.TotalGlobalSales, a.TotalGlobalSales); c != 0 {
			return c
		}
		return cmp.Compare(a.Publisher, b.Publisher)
	})
	if n >= 0 && len(result) > n {
		result = result[:n]
	}
	return result
}

// PlatformTotals sums Global_Sales per platform, highest first.
func PlatformTotals(ds *models.CleanDataset) []models.PlatformSales {
	groups := make(map[string]float64)
	for _, g := range ds.Records {
		groups[g.Platform] += skipNaN(g.GlobalSales)
	}

	result := make([]models.PlatformSales, 0, len(groups))
	for platform, sales := range groups {
		result = append(result, models.PlatformSales{Platform: platform, GlobalSales: sales})
	}
	slices.SortFunc(result, func(a, b models.PlatformSales) int {
		if c := cmp.Compare(b.GlobalSales, a.GlobalSales); c != 0 {
			return c
		}
		return cmp.Compare(a.Platform, b.Platform)
	})
	return result
}

// GenreCounts counts records per genre, most frequent first.
func GenreCounts(ds *models.CleanDataset) []models.GenreCount {
	groups := make(map[string]int)
	for _, g := range ds.Records {
		groups[g.Genre]++
	}

	result := make([]models.GenreCount, 0, len(groups))
	for genre, count := range groups {
		result = append(result, models.GenreCount{Genre: genre, Count: count})
	}
	slices.SortFunc(result, func(a, b models.GenreCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})
	return result
}

// RegionTotals sums each regional sales column present in ds, excluding
// Global_Sales.
func RegionTotals(ds *models.CleanDataset) []models.RegionTotal {
	var result []models.RegionTotal
	for _, col := range ds.PresentSales() {
		if col == models.ColGlobalSales {
			continue
		}
		total := 0.0
		for _, g := range ds.Records {
			total += skipNaN(g.Sales(col))
		}
		result = append(result, models.RegionTotal{Region: col, Sales: total})
	}
	return result
}

// Total sums one sales column over ds.
func Total(ds *models.CleanDataset, column string) float64 {
	total := 0.0
	for _, g := range ds.Records {
		total += skipNaN(g.Sales(column))
	}
	return total
}

func skipNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
