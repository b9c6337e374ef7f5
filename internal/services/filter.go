package services

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"vgsales-dashboard/internal/models"
)

// Filter restricts the dashboard view. Each non-empty dimension must match;
// an empty dimension places no restriction. Values are compared exactly, so
// callers pass the spellings found in FilterOptions.
type Filter struct {
	Decades   []int    `json:"decades"`
	Platforms []string `json:"platforms"`
	Genres    []string `json:"genres"`
}

func (f Filter) IsEmpty() bool {
	return len(f.Decades) == 0 && len(f.Platforms) == 0 && len(f.Genres) == 0
}

// Matches reports whether g passes every active dimension. A record with no
// decade never matches a decade restriction.
func (f Filter) Matches(g models.Game) bool {
	if len(f.Decades) > 0 && (!g.Decade.Valid || !slices.Contains(f.Decades, g.Decade.Value)) {
		return false
	}
	if len(f.Platforms) > 0 && !slices.Contains(f.Platforms, g.Platform) {
		return false
	}
	if len(f.Genres) > 0 && !slices.Contains(f.Genres, g.Genre) {
		return false
	}
	return true
}

// Apply returns the subset of ds that f admits. ds is never modified.
func (f Filter) Apply(ds *models.CleanDataset) *models.CleanDataset {
	if f.IsEmpty() {
		return ds
	}
	records := make([]models.Game, 0, len(ds.Records))
	for _, g := range ds.Records {
		if f.Matches(g) {
			records = append(records, g)
		}
	}
	return ds.WithRecords(records)
}

// Query encodes f as repeated query parameters.
func (f Filter) Query() url.Values {
	v := url.Values{}
	for _, d := range f.Decades {
		v.Add("decade", strconv.Itoa(d))
	}
	for _, p := range f.Platforms {
		v.Add("platform", p)
	}
	for _, g := range f.Genres {
		v.Add("genre", g)
	}
	return v
}

// FilterFromQuery reads repeated decade, platform and genre parameters.
// Comma separated values are accepted too. Blank values are ignored.
func FilterFromQuery(q url.Values) (Filter, error) {
	var f Filter
	for _, raw := range splitValues(q["decade"]) {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid decade %q", raw)
		}
		f.Decades = append(f.Decades, d)
	}
	f.Platforms = splitValues(q["platform"])
	f.Genres = splitValues(q["genre"])
	return f, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// FilterOptions lists the distinct values available to each filter control.
type FilterOptions struct {
	Decades   []int    `json:"decades"`
	Platforms []string `json:"platforms"`
	Genres    []string `json:"genres"`
}

func OptionsOf(ds *models.CleanDataset) FilterOptions {
	decades := map[int]struct{}{}
	platforms := map[string]struct{}{}
	genres := map[string]struct{}{}
	for _, g := range ds.Records {
		if g.Decade.Valid {
			decades[g.Decade.Value] = struct{}{}
		}
		platforms[g.Platform] = struct{}{}
		genres[g.Genre] = struct{}{}
	}
	return FilterOptions{
		Decades:   sortedKeys(decades),
		Platforms: sortedKeys(platforms),
		Genres:    sortedKeys(genres),
	}
}

func sortedKeys[K int | string](m map[K]struct{}) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
