package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/powerprices/internal/models"
)

type periodAcc struct {
	sum     decimal.Decimal
	count   int
	// non-finite inputs cannot be represented as decimals; they poison the mean instead.
	special float64
}

func (a *periodAcc) add(price float64) {
	a.count++
	if math.IsNaN(price) || math.IsInf(price, 0) {
		a.special += price
		return
	}
	a.sum = a.sum.Add(decimal.NewFromFloat(price))
}

func (a *periodAcc) mean() float64 {
	return a.sum.InexactFloat64()/float64(a.count) + a.special
}

// Aggregate reshapes raw records into a time series at granularity g.
//
// A non-empty countries filter restricts the input to those countries. Daily series keep the
// input rows and order. Monthly and yearly series hold one row per (country, period) with the
// mean price, dated on the first day of the period; rows are grouped per country in ascending
// name order, periods ascending within a country. Callers needing chronological order across
// countries must sort by date.
func Aggregate(records []models.PriceRecord, g models.Granularity, countries []string) models.Table {
	filter := lo.SliceToMap(countries, func(c string) (string, struct{}) { return c, struct{}{} })
	keep := func(country string) bool {
		if len(filter) == 0 {
			return true
		}
		_, ok := filter[country]
		return ok
	}

	if g == models.Daily {
		rows := make([]models.Row, 0, len(records))
		for _, r := range records {
			if !keep(r.Country) {
				continue
			}
			rows = append(rows, models.Row{Date: r.Date, Country: r.Country, ISO3: r.ISO3, Price: r.Price})
		}
		return models.Table{View: models.ViewSeries, Granularity: g, HasCodes: true, Rows: rows}
	}

	groups := make(map[string]map[time.Time]*periodAcc)
	for _, r := range records {
		if !keep(r.Country) {
			continue
		}
		periods, ok := groups[r.Country]
		if !ok {
			periods = make(map[time.Time]*periodAcc)
			groups[r.Country] = periods
		}
		start := g.PeriodStart(r.Date)
		acc, ok := periods[start]
		if !ok {
			acc = &periodAcc{}
			periods[start] = acc
		}
		acc.add(r.Price)
	}

	names := lo.Keys(groups)
	sort.Strings(names)

	var rows []models.Row
	for _, country := range names {
		periods := groups[country]
		starts := lo.Keys(periods)
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
		for _, start := range starts {
			acc := periods[start]
			rows = append(rows, models.Row{
				Date:    start,
				Country: country,
				Price:   acc.mean(),
			})
		}
	}

	return models.Table{View: models.ViewSeries, Granularity: g, Rows: rows}
}
