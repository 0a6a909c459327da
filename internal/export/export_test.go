package export

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/powerprices/internal/dataset"
	"github.com/rewired-gh/powerprices/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWriteCSV_Series(t *testing.T) {
	table := models.Table{
		View:        models.ViewSeries,
		Granularity: models.Monthly,
		Rows: []models.Row{
			{Date: day(2015, 1, 1), Country: "Germany", Price: 160},
			{Date: day(2015, 2, 1), Country: "Germany", Price: 31.125},
		},
	}

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, table))
	assert.Equal(t,
		"Date,Country,Price (EUR/MWhe)\n"+
			"2015-01-01,Germany,160\n"+
			"2015-02-01,Germany,31.125\n",
		sb.String())
}

func TestWriteCSV_GeoCarriesCodes(t *testing.T) {
	table := models.Table{
		View:     models.ViewChangeGeo,
		HasCodes: true,
		Rows: []models.Row{
			{Date: day(2016, 1, 1), Country: "Bosnia, and Herzegovina", ISO3: "BIH", Price: math.Inf(1)},
		},
	}

	out, err := Encode(table)
	require.NoError(t, err)
	assert.Equal(t,
		"Date,Country,Price (EUR/MWhe),ISO3 Code\n"+
			"2016-01-01,\"Bosnia, and Herzegovina\",+Inf,BIH\n",
		string(out))
}

func TestEncode_Empty(t *testing.T) {
	out, err := Encode(models.Table{View: models.ViewChange})
	require.NoError(t, err)
	assert.Equal(t, "Date,Country,Price (EUR/MWhe)\n", string(out))
}

func TestEncode_RoundTrip(t *testing.T) {
	table := models.Table{
		View:     models.ViewSeriesGeo,
		HasCodes: true,
		Rows: []models.Row{
			{Date: day(2020, 4, 1), Country: "Spain", ISO3: "ESP", Price: 1.0 / 3.0},
			{Date: day(2020, 4, 1), Country: "France", ISO3: "FRA", Price: -12.5},
			{Date: day(2020, 4, 1), Country: "Italy", ISO3: "ITA", Price: 1e-7},
			{Date: day(2020, 4, 1), Country: "Poland", ISO3: "POL", Price: math.NaN()},
		},
	}

	out, err := Encode(table)
	require.NoError(t, err)

	records, err := dataset.Parse(strings.NewReader(string(out)))
	require.NoError(t, err)
	require.Len(t, records, len(table.Rows))

	for i, r := range table.Rows {
		got := records[i]
		assert.True(t, got.Date.Equal(r.Date))
		assert.Equal(t, r.Country, got.Country)
		assert.Equal(t, r.ISO3, got.ISO3)
		if math.IsNaN(r.Price) {
			assert.True(t, math.IsNaN(got.Price))
			continue
		}
		assert.InDelta(t, r.Price, got.Price, 1e-6)
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "exports/2024-05-06/change-geo-abc.csv", ObjectKey("abc", models.ViewChangeGeo, at))
}

func TestNewS3Publisher(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Options{})
	assert.Error(t, err)

	p, err := NewS3Publisher(context.Background(), S3Options{
		Endpoint:  "http://localhost:9000",
		Bucket:    "prices",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://prices/exports/x.csv", p.url("exports/x.csv"))

	p.baseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/exports/x.csv", p.url("exports/x.csv"))
}
