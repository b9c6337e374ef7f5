package models

import (
	"encoding/json"
	"math"
	"strconv"
)

const (
	ColRank        = "Rank"
	ColName        = "Name"
	ColPlatform    = "Platform"
	ColYear        = "Year"
	ColDecade      = "Decade"
	ColGenre       = "Genre"
	ColPublisher   = "Publisher"
	ColNASales     = "NA_Sales"
	ColEUSales     = "EU_Sales"
	ColJPSales     = "JP_Sales"
	ColOtherSales  = "Other_Sales"
	ColGlobalSales = "Global_Sales"
)

// SalesColumns lists the five sales figures in output order.
var SalesColumns = []string{ColNASales, ColEUSales, ColJPSales, ColOtherSales, ColGlobalSales}

// CleanColumnOrder is the leading field order of a cleaned dataset.
var CleanColumnOrder = []string{
	ColRank, ColName, ColPlatform, ColYear, ColDecade, ColGenre, ColPublisher,
	ColNASales, ColEUSales, ColJPSales, ColOtherSales, ColGlobalSales,
}

// RequiredColumns must be present in the raw schema for cleaning to run.
var RequiredColumns = []string{ColName, ColPlatform, ColGenre, ColGlobalSales}

// NullInt is an integer that may be absent. The zero value is absent.
type NullInt struct {
	Value int
	Valid bool
}

func IntOf(v int) NullInt {
	return NullInt{Value: v, Valid: true}
}

func (n NullInt) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.Itoa(n.Value)
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// RawRecord is one unvalidated input row. Every cell is kept as read.
type RawRecord struct {
	Rank        string
	Name        string
	Platform    string
	Year        string
	Genre       string
	Publisher   string
	NASales     string
	EUSales     string
	JPSales     string
	OtherSales  string
	GlobalSales string
	Extra       map[string]string
}

// RawDataset is the eagerly loaded raw input with its header as read.
type RawDataset struct {
	Columns []string
	Records []RawRecord
}

func (d *RawDataset) Has(column string) bool {
	return hasColumn(d.Columns, column)
}

// Game is a cleaned record. Missing sales figures are NaN.
type Game struct {
	Rank        NullInt
	RankText    string // the original Rank cell when it is not an integer
	Name        string
	Platform    string
	Year        NullInt
	Decade      NullInt
	Genre       string
	Publisher   string
	NASales     float64
	EUSales     float64
	JPSales     float64
	OtherSales  float64
	GlobalSales float64
	Extra       map[string]string
}

// RankCell renders Rank, falling back to the text it was read from.
func (g Game) RankCell() string {
	if g.Rank.Valid {
		return g.Rank.String()
	}
	return g.RankText
}

// Sales returns the value of one of the five sales columns.
func (g Game) Sales(column string) float64 {
	switch column {
	case ColNASales:
		return g.NASales
	case ColEUSales:
		return g.EUSales
	case ColJPSales:
		return g.JPSales
	case ColOtherSales:
		return g.OtherSales
	case ColGlobalSales:
		return g.GlobalSales
	default:
		return math.NaN()
	}
}

func (g Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rank        NullInt           `json:"rank"`
		RankText    string            `json:"rank_text,omitempty"`
		Name        string            `json:"name"`
		Platform    string            `json:"platform"`
		Year        NullInt           `json:"year"`
		Decade      NullInt           `json:"decade"`
		Genre       string            `json:"genre"`
		Publisher   string            `json:"publisher"`
		NASales     *float64          `json:"na_sales"`
		EUSales     *float64          `json:"eu_sales"`
		JPSales     *float64          `json:"jp_sales"`
		OtherSales  *float64          `json:"other_sales"`
		GlobalSales *float64          `json:"global_sales"`
		Extra       map[string]string `json:"extra,omitempty"`
	}{
		Rank:        g.Rank,
		RankText:    g.RankText,
		Name:        g.Name,
		Platform:    g.Platform,
		Year:        g.Year,
		Decade:      g.Decade,
		Genre:       g.Genre,
		Publisher:   g.Publisher,
		NASales:     finite(g.NASales),
		EUSales:     finite(g.EUSales),
		JPSales:     finite(g.JPSales),
		OtherSales:  finite(g.OtherSales),
		GlobalSales: finite(g.GlobalSales),
		Extra:       g.Extra,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// CleanDataset is an immutable snapshot of cleaned records with their field order.
type CleanDataset struct {
	Columns []string
	Records []Game
}

func (d *CleanDataset) Has(column string) bool {
	return hasColumn(d.Columns, column)
}

// PresentSales returns the sales columns that exist in the dataset, in canonical order.
func (d *CleanDataset) PresentSales() []string {
	cols := make([]string, 0, len(SalesColumns))
	for _, c := range SalesColumns {
		if d.Has(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// WithRecords returns a dataset sharing this schema but holding records.
func (d *CleanDataset) WithRecords(records []Game) *CleanDataset {
	return &CleanDataset{Columns: d.Columns, Records: records}
}

func hasColumn(columns []string, column string) bool {
	for _, c := range columns {
		if c == column {
			return true
		}
	}
	return false
}
