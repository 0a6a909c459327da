// Package dashboard serves the derived price views: it resolves request parameters, runs the
// pipeline over the in-memory records and records CSV exports in the ledger.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/powerprices/internal/export"
	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/metrics"
	"github.com/rewired-gh/powerprices/internal/models"
	"github.com/rewired-gh/powerprices/internal/pipeline"
)

// DefaultSelection selects the configured default countries in a Query.
const DefaultSelection = "default"

// Store is the export ledger.
type Store interface {
	SaveExport(e *models.Export) error
	SetObjectURL(id, url string) error
	GetExport(id string) (*models.Export, error)
	ListExports(limit int) ([]models.Export, error)
	CountExports() (int, error)
}

// Options are the view defaults applied when a query leaves a parameter empty.
type Options struct {
	Granularity      string
	Alignment        string
	DefaultCountries []string
}

// Query holds raw request parameters. Countries == ["default"] selects Options.DefaultCountries;
// an empty list selects every country.
type Query struct {
	Granularity string
	Alignment   string
	Countries   []string
}

// ParseCountries splits a comma-separated country list, dropping blanks.
func ParseCountries(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

type Service struct {
	records   []models.PriceRecord
	index     models.CountryIndex
	opts      Options
	store     Store
	publisher export.Publisher
	now       func() time.Time
}

// NewService wraps records, which must not be modified afterwards. publisher may be nil.
func NewService(records []models.PriceRecord, store Store, publisher export.Publisher, opts Options) *Service {
	metrics.RecordsLoaded.Set(float64(len(records)))
	return &Service{
		records:   records,
		index:     pipeline.BuildCountryIndex(records),
		opts:      opts,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// RecordCount returns the number of daily records held in memory.
func (s *Service) RecordCount() int {
	return len(s.records)
}

// Countries returns the country index sorted by name.
func (s *Service) Countries() []models.Country {
	return s.index.Entries()
}

func (s *Service) params(q Query) (pipeline.Params, error) {
	p := pipeline.Params{
		Granularity: models.Granularity(q.Granularity),
		Alignment:   models.Alignment(q.Alignment),
		Countries:   q.Countries,
	}
	if p.Granularity == "" {
		p.Granularity = models.Granularity(s.opts.Granularity)
	}
	if p.Alignment == "" {
		p.Alignment = models.Alignment(s.opts.Alignment)
	}
	if len(p.Countries) == 1 && strings.EqualFold(p.Countries[0], DefaultSelection) {
		p.Countries = s.opts.DefaultCountries
	}

	p, err := p.Normalize()
	if err != nil {
		return p, err
	}
	if err := p.CheckCountries(s.index); err != nil {
		return p, err
	}
	return p, nil
}

// Views runs the pipeline for q.
func (s *Service) Views(ctx context.Context, q Query) (*pipeline.Views, error) {
	p, err := s.params(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	views, err := pipeline.Run(s.records, p)
	metrics.RecordPipelineRun(string(p.Granularity), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return views, nil
}

// LatestSnapshot returns the monthly latest-price snapshot of every country.
func (s *Service) LatestSnapshot(ctx context.Context) (models.Table, error) {
	views, err := s.Views(ctx, Query{Granularity: string(models.Monthly)})
	if err != nil {
		return models.Table{}, err
	}
	return views.SeriesGeo, nil
}

// Export renders one view of q as CSV and records it in the ledger. When a publisher is
// configured the CSV is uploaded as well; an upload failure is logged and leaves ObjectURL
// empty.
func (s *Service) Export(ctx context.Context, view models.View, q Query) (*models.Export, error) {
	view, err := models.ParseView(string(view))
	if err != nil {
		return nil, err
	}
	views, err := s.Views(ctx, q)
	if err != nil {
		return nil, err
	}

	table := views.Table(view)
	data, err := export.Encode(*table)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", view, err)
	}

	e := &models.Export{
		ID:          uuid.NewString(),
		View:        view,
		Granularity: views.Params.Granularity,
		Countries:   views.Params.Countries,
		RowCount:    table.Len(),
		CSV:         data,
		CreatedAt:   s.now(),
	}
	if err := s.store.SaveExport(e); err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}

	if s.publisher != nil {
		key := export.ObjectKey(e.ID, view, e.CreatedAt)
		url, err := s.publisher.Publish(ctx, key, data)
		if err != nil {
			logger.Warn("Failed to publish export %s: %v", e.ID, err)
		} else if err := s.store.SetObjectURL(e.ID, url); err != nil {
			logger.Warn("Failed to record object URL of export %s: %v", e.ID, err)
		} else {
			e.ObjectURL = url
		}
	}

	metrics.RecordExport(string(view), e.ObjectURL != "")
	logger.Info("Exported %s (%s): %d rows", view, views.Params.Granularity, e.RowCount)
	return e, nil
}

// GetExport returns a recorded export with its CSV body.
func (s *Service) GetExport(id string) (*models.Export, error) {
	return s.store.GetExport(id)
}

// ListExports returns up to limit recorded exports, newest first.
func (s *Service) ListExports(limit int) ([]models.Export, error) {
	return s.store.ListExports(limit)
}

// ExportCount is the number of exports currently kept in the ledger.
func (s *Service) ExportCount() (int, error) {
	return s.store.CountExports()
}
