package models

import (
	"errors"
	"fmt"
	"time"
)

// Export is one CSV download recorded in the export ledger.
type Export struct {
	ID          string      `json:"id"`
	View        View        `json:"view"`
	Granularity Granularity `json:"granularity"`
	Countries   []string    `json:"countries"`
	RowCount    int         `json:"row_count"`
	CSV         []byte      `json:"-"`
	ObjectURL   string      `json:"object_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Validate checks export field constraints.
func (e *Export) Validate() error {
	if e.ID == "" {
		return errors.New("export ID must not be empty")
	}
	if _, err := ParseView(string(e.View)); err != nil {
		return err
	}
	if _, err := ParseGranularity(string(e.Granularity)); err != nil {
		return err
	}
	if e.RowCount < 0 {
		return fmt.Errorf("row count must be non-negative, got %d", e.RowCount)
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created time must be set")
	}
	return nil
}
