// Package pipeline derives the dashboard views from the raw price table: aggregated series,
// latest-per-country snapshots and year-over-year changes.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/models"
)

var ErrUnknownCountry = errors.New("unknown country")

// Params are the user-selected view parameters.
type Params struct {
	Granularity models.Granularity
	Countries   []string
	Alignment   models.Alignment
}

// Normalize validates granularity and alignment and returns params in canonical form.
// Countries are plain set members: a country absent from the data selects no rows.
func (p Params) Normalize() (Params, error) {
	g, err := models.ParseGranularity(string(p.Granularity))
	if err != nil {
		return p, err
	}
	a, err := models.ParseAlignment(string(p.Alignment))
	if err != nil {
		return p, err
	}
	p.Granularity = g
	p.Alignment = a
	return p, nil
}

// CheckCountries reports the first selected country missing from the index.
func (p Params) CheckCountries(index models.CountryIndex) error {
	for _, c := range p.Countries {
		if _, ok := index.Lookup(c); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCountry, c)
		}
	}
	return nil
}

// Views holds the four tables handed to the presentation layer for one set of params.
type Views struct {
	Params    Params
	Index     models.CountryIndex
	Series    models.Table
	SeriesGeo models.Table
	Change    models.Table
	ChangeGeo models.Table
}

// Table returns the table for view v.
func (v *Views) Table(view models.View) *models.Table {
	switch view {
	case models.ViewSeriesGeo:
		return &v.SeriesGeo
	case models.ViewChange:
		return &v.Change
	case models.ViewChangeGeo:
		return &v.ChangeGeo
	default:
		return &v.Series
	}
}

// Run derives every view from the raw records. records is never modified.
func Run(records []models.PriceRecord, params Params) (*Views, error) {
	start := time.Now()

	params, err := params.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	index := BuildCountryIndex(records)

	series := Aggregate(records, params.Granularity, params.Countries)
	seriesGeo := LatestSnapshot(series, index)
	change, changeGeo := PercentChange(series, index, params.Granularity, params.Alignment)

	logger.Debug("Pipeline run (%s, %d countries selected): %d series rows, %d change rows in %v",
		params.Granularity, len(params.Countries), series.Len(), change.Len(), time.Since(start))

	return &Views{
		Params:    params,
		Index:     index,
		Series:    series,
		SeriesGeo: seriesGeo,
		Change:    change,
		ChangeGeo: changeGeo,
	}, nil
}
