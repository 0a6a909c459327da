package api

import (
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rewired-gh/powerprices/internal/dashboard"
	"github.com/rewired-gh/powerprices/internal/export"
	"github.com/rewired-gh/powerprices/internal/models"
	"github.com/rewired-gh/powerprices/internal/storage"
)

const (
	headerExportID  = "X-Export-ID"
	headerExportURL = "X-Export-URL"

	defaultExportsLimit = 50
)

type viewsRequest struct {
	Granularity string `query:"granularity" validate:"omitempty,max=16"`
	Alignment   string `query:"alignment" validate:"omitempty,oneof=calendar position"`
	Countries   string `query:"countries" validate:"max=4096"`
}

func (r viewsRequest) query() dashboard.Query {
	return dashboard.Query{
		Granularity: r.Granularity,
		Alignment:   r.Alignment,
		Countries:   dashboard.ParseCountries(r.Countries),
	}
}

type exportsRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}

type rowResponse struct {
	Date    string   `json:"date"`
	Country string   `json:"country"`
	ISO3    string   `json:"iso3,omitempty"`
	Price   *float64 `json:"price"`
	Finite  bool     `json:"finite"`
}

type tableResponse struct {
	View     models.View   `json:"view"`
	Title    string        `json:"title"`
	HasCodes bool          `json:"has_codes"`
	Rows     []rowResponse `json:"rows"`
}

type viewsResponse struct {
	Granularity models.Granularity `json:"granularity"`
	Alignment   models.Alignment   `json:"alignment"`
	Countries   []string           `json:"countries"`
	Views       []tableResponse    `json:"views"`
}

// newTableResponse encodes non-finite prices as null since JSON has no Inf or NaN.
func newTableResponse(t *models.Table) tableResponse {
	rows := make([]rowResponse, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := rowResponse{
			Date:    r.Date.Format(models.DateLayout),
			Country: r.Country,
			ISO3:    r.ISO3,
		}
		if !math.IsNaN(r.Price) && !math.IsInf(r.Price, 0) {
			price := r.Price
			row.Price = &price
			row.Finite = true
		}
		rows = append(rows, row)
	}
	return tableResponse{View: t.View, Title: t.View.Title(), HasCodes: t.HasCodes, Rows: rows}
}

func (s *Server) health(c echo.Context) error {
	exports, err := s.service.ExportCount()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.service.RecordCount(),
		"exports": exports,
	})
}

func (s *Server) countries(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Countries())
}

func (s *Server) views(c echo.Context) error {
	var req viewsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	views, err := s.service.Views(c.Request().Context(), req.query())
	if err != nil {
		return coded(err)
	}

	resp := viewsResponse{
		Granularity: views.Params.Granularity,
		Alignment:   views.Params.Alignment,
		Countries:   views.Params.Countries,
	}
	for _, v := range models.Views {
		resp.Views = append(resp.Views, newTableResponse(views.Table(v)))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) exportView(c echo.Context) error {
	view, err := models.ParseView(c.Param("view"))
	if err != nil {
		return coded(err)
	}
	var req viewsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	e, err := s.service.Export(c.Request().Context(), view, req.query())
	if err != nil {
		return coded(err)
	}

	h := c.Response().Header()
	h.Set(headerExportID, e.ID)
	if e.ObjectURL != "" {
		h.Set(headerExportURL, e.ObjectURL)
	}
	return attachment(c, e.CSV)
}

func (s *Server) listExports(c echo.Context) error {
	var req exportsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = defaultExportsLimit
	}

	exports, err := s.service.ListExports(req.Limit)
	if err != nil {
		return err
	}
	if exports == nil {
		exports = []models.Export{}
	}
	return c.JSON(http.StatusOK, exports)
}

func (s *Server) getExport(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return NewCodedError(http.StatusNotFound, storage.ErrNotFound)
	}

	e, err := s.service.GetExport(id)
	if err != nil {
		return coded(err)
	}
	c.Response().Header().Set(headerExportID, e.ID)
	return attachment(c, e.CSV)
}

func attachment(c echo.Context, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName+`"`)
	return c.Blob(http.StatusOK, export.ContentType+"; charset=utf-8", body)
}
