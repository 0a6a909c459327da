package pipeline

import (
	"math"
	"sort"

	"github.com/rewired-gh/powerprices/internal/models"
)

// LatestSnapshot keeps the most recent row of every country, enriched with its ISO3 code and
// sorted ascending by price.
//
// Rows whose country is missing from the index are dropped; tables without codes take theirs
// from the index. NaN prices are kept, so every row carries its country's latest date. Among
// equal dates of one country the last row in input order wins.
func LatestSnapshot(table models.Table, index models.CountryIndex) models.Table {
	var rows []models.Row
	if table.HasCodes {
		rows = restrictToIndex(table, index).Rows
	} else {
		rows = make([]models.Row, 0, len(table.Rows))
		for _, r := range table.Rows {
			code, ok := index.Lookup(r.Country)
			if !ok {
				continue
			}
			r.ISO3 = code
			rows = append(rows, r)
		}
	}

	sorted := models.Table{Rows: rows}
	sorted.SortByDate()

	latest := make(map[string]models.Row)
	for _, r := range sorted.Rows {
		latest[r.Country] = r
	}

	out := make([]models.Row, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessPrice(out[i], out[j])
	})

	return models.Table{
		View:        geoView(table.View),
		Granularity: table.Granularity,
		HasCodes:    true,
		Rows:        out,
	}
}

// lessPrice orders by price with NaN last; equal prices fall back to country name.
func lessPrice(a, b models.Row) bool {
	aNaN, bNaN := math.IsNaN(a.Price), math.IsNaN(b.Price)
	switch {
	case aNaN && bNaN:
		return a.Country < b.Country
	case aNaN:
		return false
	case bNaN:
		return true
	case a.Price != b.Price:
		return a.Price < b.Price
	default:
		return a.Country < b.Country
	}
}

func geoView(v models.View) models.View {
	if v == models.ViewChange || v == models.ViewChangeGeo {
		return models.ViewChangeGeo
	}
	return models.ViewSeriesGeo
}

// restrictToIndex drops rows whose country has no ISO3 code.
func restrictToIndex(table models.Table, index models.CountryIndex) models.Table {
	rows := make([]models.Row, 0, len(table.Rows))
	for _, r := range table.Rows {
		if _, ok := index.Lookup(r.Country); ok {
			rows = append(rows, r)
		}
	}
	table.Rows = rows
	return table
}
