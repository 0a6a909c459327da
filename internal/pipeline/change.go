package pipeline

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/rewired-gh/powerprices/internal/models"
)

// PercentChange computes the year-over-year percentage change of a time series and its
// latest-per-country snapshot.
//
// The lag is g.Lag() periods. The first lag periods of the table-wide date axis are dropped, as
// is every row without a base value. With AlignCalendar the base of a row dated d is the same
// country's value at g.Shift(d, -lag); with AlignPosition it is the value lag positions earlier
// on the sorted axis of all dates in the table. A zero base yields ±Inf or NaN.
func PercentChange(
	table models.Table,
	index models.CountryIndex,
	g models.Granularity,
	align models.Alignment,
) (models.Table, models.Table) {
	lag := g.Lag()

	prices := make(map[string]map[time.Time]float64)
	dates := make(map[time.Time]struct{})
	for _, r := range table.Rows {
		byDate, ok := prices[r.Country]
		if !ok {
			byDate = make(map[time.Time]float64)
			prices[r.Country] = byDate
		}
		byDate[r.Date] = r.Price
		dates[r.Date] = struct{}{}
	}

	axis := lo.Keys(dates)
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })

	change := models.Table{View: models.ViewChange, Granularity: g}
	if len(axis) > lag {
		countries := lo.Keys(prices)
		sort.Strings(countries)

		for _, country := range countries {
			byDate := prices[country]
			for i := lag; i < len(axis); i++ {
				current, ok := byDate[axis[i]]
				if !ok {
					continue
				}
				var baseDate time.Time
				if align == models.AlignPosition {
					baseDate = axis[i-lag]
				} else {
					baseDate = g.Shift(axis[i], -lag)
				}
				base, ok := byDate[baseDate]
				if !ok {
					continue
				}
				change.Rows = append(change.Rows, models.Row{
					Date:    axis[i],
					Country: country,
					Price:   (current - base) / base * 100,
				})
			}
		}
	}

	geo := restrictToIndex(LatestSnapshot(change, index), index)
	return change, geo
}
