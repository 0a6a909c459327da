// Package dataset loads the daily spot price file into memory.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/models"
)

var (
	ErrMissingColumn   = errors.New("missing column")
	ErrDuplicateRecord = errors.New("duplicate (date, country) record")
	ErrConflictingCode = errors.New("country maps to more than one ISO3 code")
)

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Load reads and validates the source file at path. Any malformed row fails the whole load.
func Load(path string) ([]models.PriceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()

	records, err := parse(f, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid record %d: %w", i+1, err)
		}
	}
	if err := CheckInvariants(records); err != nil {
		return nil, err
	}

	var size uint64
	if info, err := f.Stat(); err == nil {
		size = uint64(info.Size())
	}
	logger.Info("Loaded %s price records from %s (%s)", humanize.Comma(int64(len(records))), path, humanize.Bytes(size))
	return records, nil
}

// Parse reads records from a CSV stream with at least the Date, Country and price columns.
// The ISO3 column is optional, so exported tables can be read back.
func Parse(r io.Reader) ([]models.PriceRecord, error) {
	return parse(r, false)
}

func parse(r io.Reader, requireCodes bool) ([]models.PriceRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		cols[name] = i
	}

	required := []string{models.ColumnDate, models.ColumnCountry, models.ColumnPrice}
	if requireCodes {
		required = append(required, models.ColumnISO3)
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	isoCol, hasCodes := cols[models.ColumnISO3]

	var records []models.PriceRecord
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := parseDate(fields[cols[models.ColumnDate]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(fields[cols[models.ColumnPrice]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price: %w", line, err)
		}

		rec := models.PriceRecord{
			Date:    date,
			Country: strings.TrimSpace(fields[cols[models.ColumnCountry]]),
			Price:   price,
		}
		if hasCodes {
			rec.ISO3 = strings.TrimSpace(fields[isoCol])
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Daily.PeriodStart(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// CheckInvariants verifies that (Date, Country) pairs are unique and that each country
// maps to exactly one ISO3 code.
func CheckInvariants(records []models.PriceRecord) error {
	type key struct {
		date    time.Time
		country string
	}
	seen := make(map[key]struct{}, len(records))
	codes := make(map[string]string)

	for _, r := range records {
		k := key{r.Date, r.Country}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRecord, r.Date.Format(models.DateLayout), r.Country)
		}
		seen[k] = struct{}{}

		if code, ok := codes[r.Country]; ok && code != r.ISO3 {
			return fmt.Errorf("%w: %s (%s, %s)", ErrConflictingCode, r.Country, code, r.ISO3)
		}
		codes[r.Country] = r.ISO3
	}
	return nil
}
