package api

import (
	"html/template"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rewired-gh/powerprices/internal/models"
	"github.com/rewired-gh/powerprices/internal/pipeline"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>European spot power prices</title>
</head>
<body>
<h1>European day-ahead spot power prices</h1>
<p class="params">Granularity: <span id="granularity">{{.Granularity}}</span>, {{.Records}} daily records</p>
{{range .Tables}}
<section>
<h2>{{.View.Title}}</h2>
<p class="view">{{.View}}</p>
<table id="{{.View}}">
<thead><tr><th>Date</th><th>Country</th><th>ISO3 Code</th><th>Price</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{date .Date}}</td><td>{{.Country}}</td><td>{{.ISO3}}</td><td>{{price .Price}}</td></tr>
{{end}}</tbody>
</table>
<p><a href="{{.CSV}}">Download CSV</a></p>
</section>
{{end}}
</body>
</html>
`

type pageData struct {
	Granularity models.Granularity
	Records     int
	Tables      []pageTable
}

type pageTable struct {
	*models.Table
	CSV template.URL
}

// csvLink points at the export of view with the parameters the page was rendered with.
func csvLink(view models.View, p pipeline.Params) template.URL {
	q := url.Values{}
	q.Set("granularity", string(p.Granularity))
	q.Set("alignment", string(p.Alignment))
	if len(p.Countries) > 0 {
		q.Set("countries", strings.Join(p.Countries, ","))
	}
	return template.URL("/api/v1/views/" + string(view) + "/csv?" + q.Encode())
}

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	tmpl, err := template.New("page").Funcs(template.FuncMap{
		"date":  func(t time.Time) string { return t.Format(models.DateLayout) },
		"price": formatPrice,
	}).Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	return &pageRenderer{tmpl: tmpl}, nil
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

func formatPrice(p float64) string {
	if math.IsNaN(p) {
		return "n/a"
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// page renders every view of the requested selection as a table.
func (s *Server) page(c echo.Context) error {
	var req viewsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	views, err := s.service.Views(c.Request().Context(), req.query())
	if err != nil {
		return coded(err)
	}

	data := pageData{
		Granularity: views.Params.Granularity,
		Records:     s.service.RecordCount(),
	}
	for _, v := range models.Views {
		data.Tables = append(data.Tables, pageTable{
			Table: views.Table(v),
			CSV:   csvLink(v, views.Params),
		})
	}
	return c.Render(http.StatusOK, "page", data)
}
