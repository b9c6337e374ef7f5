package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"

	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/models"
)

// Output file names of the persisted aggregate tables.
const (
	FileTopGames         = "top10_games_global.csv"
	FileGenreSales       = "genre_sales_by_region.csv"
	FileAnnualSales      = "annual_global_sales.csv"
	FilePlatformByDecade = "platform_sales_by_decade.csv"
	FileTopPublishers    = "top_publishers_global.csv"
	FileStatistics       = "sales_describe.csv"
)

// AggregateFiles lists the persisted tables in write order.
var AggregateFiles = []string{
	FileTopGames,
	FileGenreSales,
	FileAnnualSales,
	FilePlatformByDecade,
	FileTopPublishers,
	FileStatistics,
}

// WriteAggregates persists every table of agg under dir and returns the
// written paths.
func WriteAggregates(dir string, ds *models.CleanDataset, agg *Aggregates) ([]string, error) {
	tables := map[string]*dataset.Table{
		FileTopGames:         dataset.CleanTable(ds.WithRecords(agg.TopGames)),
		FileGenreSales:       GenreSalesTable(ds, agg.GenreSales),
		FileAnnualSales:      AnnualSalesTable(agg.AnnualSales),
		FilePlatformByDecade: PlatformByDecadeTable(agg.PlatformByDecade),
		FileTopPublishers:    TopPublishersTable(agg.TopPublishers),
		FileStatistics:       StatisticsTable(agg.Statistics),
	}

	paths := make([]string, 0, len(AggregateFiles))
	for _, name := range AggregateFiles {
		path := filepath.Join(dir, name)
		if err := dataset.WriteTable(path, tables[name]); err != nil {
			return paths, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func GenreSalesTable(ds *models.CleanDataset, rows []models.GenreSales) *dataset.Table {
	sales := ds.PresentSales()
	table := &dataset.Table{Header: append([]string{models.ColGenre}, sales...)}
	for _, r := range rows {
		row := []string{r.Genre}
		for _, col := range sales {
			row = append(row, dataset.FormatFloat(r.Sales(col)))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func AnnualSalesTable(rows []models.YearSales) *dataset.Table {
	table := &dataset.Table{Header: []string{models.ColYear, models.ColGlobalSales}}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{strconv.Itoa(r.Year), dataset.FormatFloat(r.GlobalSales)})
	}
	return table
}

func PlatformByDecadeTable(rows []models.PlatformDecadeSales) *dataset.Table {
	table := &dataset.Table{Header: []string{models.ColDecade, models.ColPlatform, models.ColGlobalSales}}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{strconv.Itoa(r.Decade), r.Platform, dataset.FormatFloat(r.GlobalSales)})
	}
	return table
}

func TopPublishersTable(rows []models.PublisherSales) *dataset.Table {
	table := &dataset.Table{Header: []string{models.ColPublisher, "Total_Global_Sales"}}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{r.Publisher, dataset.FormatFloat(r.TotalGlobalSales)})
	}
	return table
}

// StatisticsTable lays statistics out with one row per statistic and one
// column per sales column.
func StatisticsTable(stats []models.ColumnStats) *dataset.Table {
	header := []string{""}
	for _, s := range stats {
		header = append(header, s.Column)
	}

	labels := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	table := &dataset.Table{Header: header}
	for _, label := range labels {
		row := []string{label}
		for _, s := range stats {
			row = append(row, statCell(s, label))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func statCell(s models.ColumnStats, label string) string {
	switch label {
	case "count":
		return strconv.Itoa(s.Count)
	case "mean":
		return dataset.FormatFloat(s.Mean)
	case "std":
		return dataset.FormatFloat(s.Std)
	case "min":
		return dataset.FormatFloat(s.Min)
	case "25%":
		return dataset.FormatFloat(s.Q25)
	case "50%":
		return dataset.FormatFloat(s.Q50)
	case "75%":
		return dataset.FormatFloat(s.Q75)
	default:
		return dataset.FormatFloat(s.Max)
	}
}
