// Package templates renders the dashboard page and the fragments that the
// SSE endpoint patches into it.
package templates

import (
	"context"
	"html/template"
	"io"
	"math"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"vgsales-dashboard/internal/charts"
	"vgsales-dashboard/internal/models"
	"vgsales-dashboard/internal/pipeline"
	"vgsales-dashboard/internal/services"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"

var funcs = template.FuncMap{
	"sales": func(v float64) string {
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	},
	"inc": func(i int) int { return i + 1 },
}

var fragments = template.Must(template.New("fragments").Funcs(funcs).Parse(`
{{define "metrics"}}<div id="metrics" class="metrics">
<div class="card"><span>Games</span><strong>{{.Games}}</strong></div>
<div class="card"><span>Global sales (M)</span><strong>{{sales .GlobalSales}}</strong></div>
<div class="card"><span>NA sales (M)</span><strong>{{sales .NASales}}</strong></div>
<div class="card"><span>EU sales (M)</span><strong>{{sales .EUSales}}</strong></div>
</div>{{end}}

{{define "genreSales"}}<div id="genre-sales">
<table class="modern-table">
<thead><tr><th>Genre</th><th>NA</th><th>EU</th><th>JP</th><th>Other</th><th>Global</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Genre}}</td><td>{{sales .NASales}}</td><td>{{sales .EUSales}}</td><td>{{sales .JPSales}}</td><td>{{sales .OtherSales}}</td><td><strong>{{sales .GlobalSales}}</strong></td></tr>
{{else}}<tr><td colspan="6">No games match the current filters</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "topGames"}}<div id="top-games">
<h3>Top {{.N}} games by global sales</h3>
<table class="modern-table">
<thead><tr><th>#</th><th>Name</th><th>Platform</th><th>Year</th><th>Genre</th><th>Publisher</th><th>Global</th></tr></thead>
<tbody>
{{range $i, $g := .Games}}<tr><td>{{inc $i}}</td><td>{{$g.Name}}</td><td>{{$g.Platform}}</td><td>{{$g.Year}}</td><td>{{$g.Genre}}</td><td>{{$g.Publisher}}</td><td><strong>{{sales $g.GlobalSales}}</strong></td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "platformSales"}}<div id="platform-sales">
<table class="modern-table">
<thead><tr><th>Platform</th><th>Global</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Platform}}</td><td>{{sales .GlobalSales}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "records"}}<div id="records">
<p>Showing {{len .Games}} of {{.Total}} matching records</p>
<table class="modern-table">
<thead><tr><th>Rank</th><th>Name</th><th>Platform</th><th>Year</th><th>Genre</th><th>Publisher</th><th>NA</th><th>EU</th><th>JP</th><th>Other</th><th>Global</th></tr></thead>
<tbody>
{{range .Games}}<tr><td>{{.RankCell}}</td><td>{{.Name}}</td><td>{{.Platform}}</td><td>{{.Year}}</td><td>{{.Genre}}</td><td>{{.Publisher}}</td><td>{{sales .NASales}}</td><td>{{sales .EUSales}}</td><td>{{sales .JPSales}}</td><td>{{sales .OtherSales}}</td><td>{{sales .GlobalSales}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "charts"}}<div id="charts" class="charts">
{{range .Charts}}<figure><img src="/charts/{{.Name}}.png{{if $.Query}}?{{$.Query}}{{end}}" alt="{{.Title}}" loading="lazy"><figcaption>{{.Title}}</figcaption></figure>
{{end}}</div>{{end}}

{{define "downloads"}}<div id="downloads" class="downloads">
<a href="/api/export.csv{{if .}}?{{.}}{{end}}" download>Download filtered data (CSV)</a>
<a href="/api/export.xlsx{{if .}}?{{.}}{{end}}" download>Download filtered data (Excel)</a>
</div>{{end}}
`))

var page = template.Must(template.Must(fragments.Clone()).Parse(`{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Video Game Sales</title>
<script type="module" src="` + datastarScript + `"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;display:flex;background:#f6f7f9;color:#1d2330}
aside{width:260px;padding:1rem;background:#fff;border-right:1px solid #dde1e7;min-height:100vh}
main{flex:1;padding:1rem 2rem}
select{width:100%;min-height:8rem}
.metrics{display:flex;gap:1rem}
.card{background:#fff;border:1px solid #dde1e7;border-radius:6px;padding:.75rem 1rem;flex:1}
.card span{display:block;font-size:.85rem;color:#5b6474}
.card strong{font-size:1.5rem}
.modern-table{border-collapse:collapse;width:100%;background:#fff}
.modern-table th,.modern-table td{padding:.35rem .6rem;border-bottom:1px solid #eceff3;text-align:left}
.charts{display:grid;grid-template-columns:repeat(auto-fill,minmax(480px,1fr));gap:1rem}
.charts img{width:100%}
.downloads a{margin-right:1rem}
</style>
</head>
<body data-signals='{"decades":[],"platforms":[],"genres":[],"topN":{{.View.TopN}}}'>
<aside data-on-change="@get('/sse/refresh')">
<h2>Filters</h2>
<p>Nothing selected means everything.</p>
<label>Decades
<select multiple data-bind-decades>
{{range .View.Options.Decades}}<option value="{{.}}">{{.}}s</option>
{{end}}</select></label>
<label>Platforms
<select multiple data-bind-platforms>
{{range .View.Options.Platforms}}<option value="{{.}}">{{.}}</option>
{{end}}</select></label>
<label>Genres
<select multiple data-bind-genres>
{{range .View.Options.Genres}}<option value="{{.}}">{{.}}</option>
{{end}}</select></label>
<label>Top games: <span data-text="$topN"></span>
<input type="range" min="{{.MinTopN}}" max="{{.MaxTopN}}" data-bind-top-n></label>
<h3>Precomputed analyses</h3>
<ul>
{{range .Tables}}<li><a href="/api/precomputed/{{.}}" target="_blank">{{.}}</a></li>
{{end}}</ul>
<h3>Pre-rendered charts</h3>
<ul>
{{range .Charts}}<li><a href="/static-charts/{{.File}}" target="_blank">{{.File}}</a></li>
{{end}}</ul>
</aside>
<main>
<h1>Video Game Sales</h1>
{{template "metrics" .View.Summary}}
<h2>Global sales by genre</h2>
{{template "genreSales" .View.GenreSales}}
{{template "topGames" .Top}}
<h2>Sales by platform</h2>
{{template "platformSales" .View.PlatformSales}}
<h2>Charts</h2>
{{template "charts" .ChartData}}
{{template "downloads" .NoQuery}}
<h2>Filtered records</h2>
{{template "records" .Records}}
</main>
</body>
</html>
{{end}}`))

type topGamesData struct {
	N     int
	Games []models.Game
}

type chartData struct {
	Charts []charts.Chart
	Query  template.URL
}

type recordsData struct {
	Games []models.Game
	Total int
}

type pageData struct {
	View      *services.View
	Top       topGamesData
	Records   recordsData
	ChartData chartData
	Charts    []charts.Chart
	Tables    []string
	MinTopN   int
	MaxTopN   int
	NoQuery   template.URL
}

func execute(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return fragments.ExecuteTemplate(w, name, data)
	})
}

// Dashboard renders the full page for the unfiltered view.
func Dashboard(view *services.View) templ.Component {
	data := pageData{
		View:      view,
		Top:       topGamesData{N: view.TopN, Games: view.TopGames},
		Records:   recordsData{Games: view.Records, Total: view.Summary.Games},
		ChartData: chartData{Charts: charts.Charts()},
		Charts:    charts.Charts(),
		Tables:    pipeline.AggregateFiles,
		MinTopN:   services.MinTopN,
		MaxTopN:   services.MaxTopN,
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page.ExecuteTemplate(w, "page", data)
	})
}

func Metrics(s services.Summary) templ.Component {
	return execute("metrics", s)
}

func GenreSales(rows []models.GenreSales) templ.Component {
	return execute("genreSales", rows)
}

func TopGames(n int, games []models.Game) templ.Component {
	return execute("topGames", topGamesData{N: n, Games: games})
}

func PlatformSales(rows []models.PlatformSales) templ.Component {
	return execute("platformSales", rows)
}

// Records renders the first rows of the filtered subset; total is the size
// of the whole subset.
func Records(games []models.Game, total int) templ.Component {
	return execute("records", recordsData{Games: games, Total: total})
}

// Charts renders the live chart images for the filter encoded in query.
func Charts(query url.Values) templ.Component {
	return execute("charts", chartData{Charts: charts.Charts(), Query: template.URL(query.Encode())})
}

func Downloads(query url.Values) templ.Component {
	return execute("downloads", template.URL(query.Encode()))
}
