package models

type GenreSales struct {
	Genre       string  `json:"genre"`
	NASales     float64 `json:"na_sales"`
	EUSales     float64 `json:"eu_sales"`
	JPSales     float64 `json:"jp_sales"`
	OtherSales  float64 `json:"other_sales"`
	GlobalSales float64 `json:"global_sales"`
}

func (g GenreSales) Sales(column string) float64 {
	switch column {
	case ColNASales:
		return g.NASales
	case ColEUSales:
		return g.EUSales
	case ColJPSales:
		return g.JPSales
	case ColOtherSales:
		return g.OtherSales
	default:
		return g.GlobalSales
	}
}

type YearSales struct {
	Year        int     `json:"year"`
	GlobalSales float64 `json:"global_sales"`
}

type PlatformDecadeSales struct {
	Decade      int     `json:"decade"`
	Platform    string  `json:"platform"`
	GlobalSales float64 `json:"global_sales"`
}

type PublisherSales struct {
	Publisher        string  `json:"publisher"`
	TotalGlobalSales float64 `json:"total_global_sales"`
}

type PlatformSales struct {
	Platform    string  `json:"platform"`
	GlobalSales float64 `json:"global_sales"`
}

type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

type RegionTotal struct {
	Region string  `json:"region"`
	Sales  float64 `json:"sales"`
}

// ColumnStats holds descriptive statistics for one numeric column.
// Fields other than Count are NaN when Count is too small to define them.
type ColumnStats struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Q50    float64
	Q75    float64
	Max    float64
}
