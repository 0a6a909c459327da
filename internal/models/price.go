// Package models defines the core domain entities: price records, derived tables and the
// country index.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Column headers shared by the source file and CSV exports.
const (
	ColumnDate    = "Date"
	ColumnCountry = "Country"
	ColumnISO3    = "ISO3 Code"
	ColumnPrice   = "Price (EUR/MWhe)"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// PriceRecord is one row of the source file: the day-ahead price of one country on one day.
type PriceRecord struct {
	Date    time.Time
	Country string
	ISO3    string
	Price   float64
}

// Validate checks record field constraints.
func (r *PriceRecord) Validate() error {
	if r.Date.IsZero() {
		return errors.New("date must not be empty")
	}
	if strings.TrimSpace(r.Country) == "" {
		return errors.New("country must not be empty")
	}
	if len(r.ISO3) != 3 {
		return fmt.Errorf("ISO3 code %q must be 3 letters", r.ISO3)
	}
	if math.IsNaN(r.Price) || math.IsInf(r.Price, 0) {
		return errors.New("price must be a finite number")
	}
	return nil
}

// Row is one row of a derived table. ISO3 is empty for tables that carry no codes.
type Row struct {
	Date    time.Time `json:"date"`
	Country string    `json:"country"`
	ISO3    string    `json:"iso3,omitempty"`
	Price   float64   `json:"price"`
}

// View identifies one of the four tables handed to the presentation layer.
type View string

const (
	ViewSeries    View = "series"
	ViewSeriesGeo View = "series-geo"
	ViewChange    View = "change"
	ViewChangeGeo View = "change-geo"
)

var ErrInvalidView = errors.New("invalid view")

// Views lists every view in render order.
var Views = []View{ViewSeries, ViewSeriesGeo, ViewChange, ViewChangeGeo}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// IsGeo reports whether the view is a latest-per-country snapshot.
func (v View) IsGeo() bool {
	return v == ViewSeriesGeo || v == ViewChangeGeo
}

// Title is the chart or map caption for the view.
func (v View) Title() string {
	if v == ViewChange || v == ViewChangeGeo {
		return "Spot power prices (YoY % Change)"
	}
	return "Spot power prices (EUR/MWh)"
}

// Table is an immutable derived table. HasCodes is true when every row carries an ISO3 code.
type Table struct {
	View        View
	Granularity Granularity
	HasCodes    bool
	Rows        []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Countries returns the distinct countries of the table in ascending order.
func (t *Table) Countries() []string {
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		seen[r.Country] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SortByDate orders rows chronologically. Rows with equal dates keep their relative order.
func (t *Table) SortByDate() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Date.Before(t.Rows[j].Date)
	})
}
