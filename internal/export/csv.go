// Package export renders derived tables as CSV and publishes them to object storage.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rewired-gh/powerprices/internal/models"
)

const (
	// FileName is the download name of every export.
	FileName = "output_table.csv"
	// ContentType is the MIME type of an export.
	ContentType = "text/csv"
)

// Header returns the CSV header for t. Geo tables carry the ISO3 column.
func Header(t models.Table) []string {
	header := []string{models.ColumnDate, models.ColumnCountry, models.ColumnPrice}
	if t.HasCodes && t.View.IsGeo() {
		header = append(header, models.ColumnISO3)
	}
	return header
}

// WriteCSV writes t as UTF-8 comma-separated text with a header row.
// Prices use the shortest representation that parses back to the same float64.
func WriteCSV(w io.Writer, t models.Table) error {
	cw := csv.NewWriter(w)
	header := Header(t)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	withCodes := len(header) == 4

	for _, r := range t.Rows {
		fields := []string{
			r.Date.Format(models.DateLayout),
			r.Country,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
		}
		if withCodes {
			fields = append(fields, r.ISO3)
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Encode returns t rendered by WriteCSV.
func Encode(t models.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
