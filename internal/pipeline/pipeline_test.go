package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/powerprices/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailyRecords returns n consecutive days of prices for one country.
func dailyRecords(country, iso3 string, start time.Time, n int, price func(i int) float64) []models.PriceRecord {
	out := make([]models.PriceRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.PriceRecord{
			Date:    start.AddDate(0, 0, i),
			Country: country,
			ISO3:    iso3,
			Price:   price(i),
		})
	}
	return out
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func recordsOf(t models.Table) []models.PriceRecord {
	out := make([]models.PriceRecord, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, models.PriceRecord{Date: r.Date, Country: r.Country, ISO3: r.ISO3, Price: r.Price})
	}
	return out
}

func sampleRecords() []models.PriceRecord {
	var records []models.PriceRecord
	records = append(records, dailyRecords("Germany", "DEU", day(2015, 1, 1), 800, func(i int) float64 { return 20 + float64(i%40) })...)
	records = append(records, dailyRecords("France", "FRA", day(2015, 1, 1), 800, func(i int) float64 { return 30 + float64(i%7) })...)
	records = append(records, dailyRecords("Italy", "ITA", day(2015, 3, 1), 700, func(i int) float64 { return 45 + float64(i%3) })...)
	return records
}

func TestBuildCountryIndex(t *testing.T) {
	index := BuildCountryIndex(sampleRecords())
	assert.Equal(t, models.CountryIndex{"Germany": "DEU", "France": "FRA", "Italy": "ITA"}, index)
	assert.Empty(t, BuildCountryIndex(nil))
}

func TestAggregate_MonthlyMean(t *testing.T) {
	records := dailyRecords("Germany", "DEU", day(2015, 1, 1), 31, func(i int) float64 { return float64(10 * (i + 1)) })

	table := Aggregate(records, models.Monthly, nil)

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.True(t, row.Date.Equal(day(2015, 1, 1)))
	assert.Equal(t, "Germany", row.Country)
	assert.InDelta(t, 160.0, row.Price, 1e-9)
	assert.False(t, table.HasCodes)
}

func TestAggregate_YearlyGroupsPerCountry(t *testing.T) {
	table := Aggregate(sampleRecords(), models.Yearly, nil)

	// Countries are contiguous, ascending; years ascending within a country.
	var got []string
	for _, r := range table.Rows {
		got = append(got, r.Country+"/"+r.Date.Format("2006"))
	}
	assert.Equal(t, []string{
		"France/2015", "France/2016", "France/2017",
		"Germany/2015", "Germany/2016", "Germany/2017",
		"Italy/2015", "Italy/2016", "Italy/2017",
	}, got)
}

func TestAggregate_DailyPassesThrough(t *testing.T) {
	records := sampleRecords()
	table := Aggregate(records, models.Daily, nil)

	require.Len(t, table.Rows, len(records))
	assert.True(t, table.HasCodes)
	for i, r := range records {
		assert.Equal(t, r.Country, table.Rows[i].Country)
		assert.Equal(t, r.ISO3, table.Rows[i].ISO3)
		assert.Equal(t, r.Price, table.Rows[i].Price)
	}
}

func TestAggregate_CountryFilter(t *testing.T) {
	for _, g := range []models.Granularity{models.Daily, models.Monthly, models.Yearly} {
		t.Run(string(g), func(t *testing.T) {
			table := Aggregate(sampleRecords(), g, []string{"Italy"})
			require.NotEmpty(t, table.Rows)
			for _, r := range table.Rows {
				assert.Equal(t, "Italy", r.Country)
			}
		})
	}
}

func TestAggregate_FullFilterEqualsNoFilter(t *testing.T) {
	records := sampleRecords()
	all := []string{"France", "Germany", "Italy"}
	for _, g := range []models.Granularity{models.Daily, models.Monthly, models.Yearly} {
		t.Run(string(g), func(t *testing.T) {
			assert.Equal(t, Aggregate(records, g, nil), Aggregate(records, g, all))
		})
	}
}

func TestAggregate_UnknownCountrySelectsNothing(t *testing.T) {
	table := Aggregate(sampleRecords(), models.Monthly, []string{"Atlantis"})
	assert.Empty(t, table.Rows)
}

func TestAggregate_Idempotent(t *testing.T) {
	for _, g := range []models.Granularity{models.Monthly, models.Yearly} {
		t.Run(string(g), func(t *testing.T) {
			once := Aggregate(sampleRecords(), g, nil)
			twice := Aggregate(recordsOf(once), g, nil)
			require.Len(t, twice.Rows, len(once.Rows))
			for i := range once.Rows {
				assert.Equal(t, once.Rows[i].Country, twice.Rows[i].Country)
				assert.True(t, once.Rows[i].Date.Equal(twice.Rows[i].Date))
				assert.InDelta(t, once.Rows[i].Price, twice.Rows[i].Price, 1e-9)
			}
		})
	}
}

func TestAggregate_NoRowForEmptyPeriod(t *testing.T) {
	records := []models.PriceRecord{
		{Date: day(2015, 1, 10), Country: "Spain", ISO3: "ESP", Price: 40},
		{Date: day(2015, 3, 10), Country: "Spain", ISO3: "ESP", Price: 50},
	}
	table := Aggregate(records, models.Monthly, nil)
	require.Len(t, table.Rows, 2)
	assert.True(t, table.Rows[0].Date.Equal(day(2015, 1, 1)))
	assert.True(t, table.Rows[1].Date.Equal(day(2015, 3, 1)))
}

func TestLatestSnapshot_OneRowPerCountryAtMaxDate(t *testing.T) {
	index := BuildCountryIndex(sampleRecords())
	for _, g := range []models.Granularity{models.Daily, models.Monthly, models.Yearly} {
		t.Run(string(g), func(t *testing.T) {
			series := Aggregate(sampleRecords(), g, nil)
			geo := LatestSnapshot(series, index)

			maxDate := make(map[string]time.Time)
			for _, r := range series.Rows {
				if r.Date.After(maxDate[r.Country]) {
					maxDate[r.Country] = r.Date
				}
			}

			assert.LessOrEqual(t, len(geo.Rows), len(maxDate))
			seen := make(map[string]bool)
			for i, r := range geo.Rows {
				assert.False(t, seen[r.Country], "duplicate country %s", r.Country)
				seen[r.Country] = true
				assert.True(t, r.Date.Equal(maxDate[r.Country]), "%s: got %v want %v", r.Country, r.Date, maxDate[r.Country])
				assert.Equal(t, index[r.Country], r.ISO3)
				if i > 0 {
					assert.LessOrEqual(t, geo.Rows[i-1].Price, r.Price)
				}
			}
			assert.Equal(t, models.ViewSeriesGeo, geo.View)
		})
	}
}

func TestLatestSnapshot_DropsCountryMissingFromIndex(t *testing.T) {
	records := sampleRecords()
	index := BuildCountryIndex(records)
	delete(index, "France")

	series := Aggregate(records, models.Monthly, nil)
	geo := LatestSnapshot(series, index)

	assert.Contains(t, series.Countries(), "France")
	assert.NotContains(t, geo.Countries(), "France")
	assert.Len(t, geo.Rows, 2)
}

func TestLatestSnapshot_SortsNaNLast(t *testing.T) {
	index := models.CountryIndex{"A": "AAA", "B": "BBB", "C": "CCC"}
	table := models.Table{
		View:     models.ViewChange,
		HasCodes: true,
		Rows: []models.Row{
			{Date: day(2016, 1, 1), Country: "A", ISO3: "AAA", Price: math.NaN()},
			{Date: day(2016, 1, 1), Country: "B", ISO3: "BBB", Price: math.Inf(1)},
			{Date: day(2016, 1, 1), Country: "C", ISO3: "CCC", Price: -3},
		},
	}
	geo := LatestSnapshot(table, index)
	require.Len(t, geo.Rows, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{geo.Rows[0].Country, geo.Rows[1].Country, geo.Rows[2].Country})
	assert.Equal(t, models.ViewChangeGeo, geo.View)
}

func TestLatestSnapshot_KeepsNaNAtMaxDate(t *testing.T) {
	index := models.CountryIndex{"France": "FRA", "Spain": "ESP"}
	table := models.Table{
		View: models.ViewChange,
		Rows: []models.Row{
			{Date: day(2015, 1, 1), Country: "France", Price: 5},
			{Date: day(2015, 2, 1), Country: "France", Price: math.NaN()},
			{Date: day(2015, 2, 1), Country: "Spain", Price: 7},
		},
	}
	geo := LatestSnapshot(table, index)
	require.Len(t, geo.Rows, 2)

	assert.Equal(t, "Spain", geo.Rows[0].Country)
	last := geo.Rows[1]
	assert.Equal(t, "France", last.Country)
	assert.Equal(t, "FRA", last.ISO3)
	assert.True(t, last.Date.Equal(day(2015, 2, 1)), "got %v", last.Date)
	assert.True(t, math.IsNaN(last.Price))
}

func TestPercentChange_ConstantDailyPrice(t *testing.T) {
	records := dailyRecords("France", "FRA", day(2015, 1, 1), 400, constant(50))
	index := BuildCountryIndex(records)
	series := Aggregate(records, models.Daily, nil)

	for _, align := range []models.Alignment{models.AlignCalendar, models.AlignPosition} {
		t.Run(string(align), func(t *testing.T) {
			change, geo := PercentChange(series, index, models.Daily, align)
			require.Len(t, change.Rows, 35)
			for _, r := range change.Rows {
				assert.Equal(t, 0.0, r.Price)
			}
			assert.True(t, change.Rows[0].Date.Equal(day(2016, 1, 1)))
			require.Len(t, geo.Rows, 1)
			assert.Equal(t, "FRA", geo.Rows[0].ISO3)
			assert.True(t, geo.Rows[0].Date.Equal(day(2016, 2, 4)))
		})
	}
}

func TestPercentChange_DropsLeadingPeriods(t *testing.T) {
	records := sampleRecords()
	index := BuildCountryIndex(records)

	tests := []struct {
		g    models.Granularity
		lag  int
		want int // distinct retained periods
	}{
		{models.Monthly, 12, 27 - 12},
		{models.Yearly, 1, 3 - 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			series := Aggregate(records, tt.g, []string{"Germany"})
			change, _ := PercentChange(series, index, tt.g, models.AlignCalendar)
			assert.Len(t, change.Rows, tt.want)
			assert.True(t, change.Rows[0].Date.Equal(tt.g.Shift(series.Rows[0].Date, tt.lag)))
		})
	}
}

func TestPercentChange_TooShortYieldsEmpty(t *testing.T) {
	records := dailyRecords("Spain", "ESP", day(2015, 1, 1), 200, constant(40))
	index := BuildCountryIndex(records)
	series := Aggregate(records, models.Monthly, nil)

	change, geo := PercentChange(series, index, models.Monthly, models.AlignCalendar)
	assert.Empty(t, change.Rows)
	assert.Empty(t, geo.Rows)
}

func TestPercentChange_YearlyValues(t *testing.T) {
	records := []models.PriceRecord{
		{Date: day(2015, 6, 1), Country: "Spain", ISO3: "ESP", Price: 40},
		{Date: day(2016, 6, 1), Country: "Spain", ISO3: "ESP", Price: 50},
		{Date: day(2017, 6, 1), Country: "Spain", ISO3: "ESP", Price: 25},
	}
	index := BuildCountryIndex(records)
	series := Aggregate(records, models.Yearly, nil)

	change, _ := PercentChange(series, index, models.Yearly, models.AlignCalendar)
	require.Len(t, change.Rows, 2)
	assert.InDelta(t, 25.0, change.Rows[0].Price, 1e-9)
	assert.InDelta(t, -50.0, change.Rows[1].Price, 1e-9)
}

func TestPercentChange_ZeroBaseDoesNotPanic(t *testing.T) {
	records := []models.PriceRecord{
		{Date: day(2015, 1, 1), Country: "A", ISO3: "AAA", Price: 0},
		{Date: day(2016, 1, 1), Country: "A", ISO3: "AAA", Price: 10},
		{Date: day(2015, 1, 1), Country: "B", ISO3: "BBB", Price: 0},
		{Date: day(2016, 1, 1), Country: "B", ISO3: "BBB", Price: 0},
	}
	index := BuildCountryIndex(records)
	series := Aggregate(records, models.Yearly, nil)

	change, geo := PercentChange(series, index, models.Yearly, models.AlignCalendar)
	require.Len(t, change.Rows, 2)
	assert.True(t, math.IsInf(change.Rows[0].Price, 1))
	assert.True(t, math.IsNaN(change.Rows[1].Price))

	// Both pass through the join; NaN sorts last.
	require.Len(t, geo.Rows, 2)
	assert.Equal(t, "A", geo.Rows[0].Country)
	assert.Equal(t, "B", geo.Rows[1].Country)
	assert.True(t, math.IsNaN(geo.Rows[1].Price))
}

func TestPercentChange_GapAlignment(t *testing.T) {
	// Monthly series with March 2015 missing.
	var records []models.PriceRecord
	for m := 0; m < 15; m++ {
		date := day(2015, time.January, 1).AddDate(0, m, 0)
		if date.Equal(day(2015, 3, 1)) {
			continue
		}
		records = append(records, models.PriceRecord{Date: date, Country: "Spain", ISO3: "ESP", Price: float64(10 + m)})
	}
	index := BuildCountryIndex(records)
	series := Aggregate(records, models.Monthly, nil)
	require.Len(t, series.Rows, 14)

	calendar, _ := PercentChange(series, index, models.Monthly, models.AlignCalendar)
	position, _ := PercentChange(series, index, models.Monthly, models.AlignPosition)

	// Calendar alignment compares against the same month a year earlier, so March 2016 has no base.
	require.Len(t, calendar.Rows, 1)
	assert.True(t, calendar.Rows[0].Date.Equal(day(2016, 2, 1)))
	assert.InDelta(t, (23.0-11.0)/11.0*100, calendar.Rows[0].Price, 1e-9)

	// Position alignment compares against whatever sits 12 dates earlier on the axis.
	require.Len(t, position.Rows, 2)
	assert.True(t, position.Rows[0].Date.Equal(day(2016, 2, 1)))
	assert.InDelta(t, (23.0-10.0)/10.0*100, position.Rows[0].Price, 1e-9)
	assert.True(t, position.Rows[1].Date.Equal(day(2016, 3, 1)))
	assert.InDelta(t, (24.0-11.0)/11.0*100, position.Rows[1].Price, 1e-9)
}

func TestRun(t *testing.T) {
	records := sampleRecords()
	views, err := Run(records, Params{Granularity: "Monthly", Countries: []string{"Germany", "Italy"}})
	require.NoError(t, err)

	assert.Equal(t, models.Monthly, views.Params.Granularity)
	assert.Equal(t, models.AlignCalendar, views.Params.Alignment)
	assert.Len(t, views.Index, 3)
	assert.ElementsMatch(t, []string{"Germany", "Italy"}, views.Series.Countries())
	assert.Len(t, views.SeriesGeo.Rows, 2)
	assert.NotEmpty(t, views.Change.Rows)
	assert.Len(t, views.ChangeGeo.Rows, 2)
	assert.Same(t, &views.ChangeGeo, views.Table(models.ViewChangeGeo))
	assert.Equal(t, sampleRecords(), records)
}

func TestRun_InvalidParams(t *testing.T) {
	_, err := Run(sampleRecords(), Params{Granularity: "weekly"})
	assert.Error(t, err)

	_, err = Run(sampleRecords(), Params{Granularity: models.Daily, Alignment: "nearest"})
	assert.Error(t, err)
}

func TestParams_CheckCountries(t *testing.T) {
	index := BuildCountryIndex(sampleRecords())
	assert.NoError(t, Params{Countries: []string{"Italy"}}.CheckCountries(index))
	assert.ErrorIs(t, Params{Countries: []string{"Atlantis"}}.CheckCountries(index), ErrUnknownCountry)
}
