// Package router binds the search endpoints to a connection.
package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mow-search/mow"
	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/internal/apperr"
	"github.com/mow-search/mow/pkg/pagination"
)

type SearchRouter struct {
	e    *echo.Echo
	conn *mow.Connection
}

func NewSearchRouter(e *echo.Echo, conn *mow.Connection) *SearchRouter {
	return &SearchRouter{
		e:    e,
		conn: conn,
	}
}

func (r *SearchRouter) Bind() {
	r.e.GET("/search", r.searchHandler)
	r.e.GET("/autocomplete", r.autocompleteHandler)
	r.e.GET("/similar/:id", r.similarHandler)
}

// hit is the wire form of one search record.
type hit struct {
	ID          string              `json:"id"`
	Model       string              `json:"model"`
	PK          string              `json:"pk"`
	Score       float64             `json:"score"`
	Fields      map[string]any      `json:"fields"`
	Highlighted map[string][]string `json:"highlighted,omitempty"`
}

type searchResponse struct {
	*pagination.OffsetResult[hit]
	Facets *backend.FacetCounts `json:"facets,omitempty"`
}

func (r *SearchRouter) searchHandler(c echo.Context) error {
	q := c.QueryParam("q")
	if strings.TrimSpace(q) == "" {
		return apperr.NewValidation("q parameter is required")
	}

	var req pagination.OffsetRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid pagination parameters", err)
	}
	if err := req.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid pagination parameters", err)
	}

	qs := r.conn.Query().AutoQuery(q).Load(req.Size)
	if models := c.QueryParam("models"); models != "" {
		qs = qs.Models(strings.Split(models, ",")...)
	}
	if c.QueryParam("highlight") == "true" {
		qs = qs.Highlight()
	}
	if facets, ok := c.QueryParams()["facet"]; ok {
		qs = qs.Facet(facets...)
	}
	if order := c.QueryParam("order_by"); order != "" {
		qs = qs.OrderBy(strings.Split(order, ",")...)
	}

	ctx := c.Request().Context()
	start := (req.Page - 1) * req.Size

	records, err := qs.Slice(ctx, start, start+req.Size)
	if err != nil {
		return translateSearchError(err)
	}
	total, err := qs.Count(ctx)
	if err != nil {
		return translateSearchError(err)
	}

	resp := searchResponse{
		OffsetResult: pagination.NewOffsetResult(toHits(records), total, req.Page, req.Size),
	}
	if _, ok := c.QueryParams()["facet"]; ok {
		facets, err := qs.Facets(ctx)
		if err != nil {
			return translateSearchError(err)
		}
		resp.Facets = facets
	}
	return c.JSON(http.StatusOK, resp)
}

func (r *SearchRouter) autocompleteHandler(c echo.Context) error {
	q := c.QueryParam("q")
	field := c.QueryParam("field")
	if strings.TrimSpace(q) == "" || field == "" {
		return apperr.NewValidation("q and field parameters are required")
	}

	var req pagination.OffsetRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid pagination parameters", err)
	}
	if err := req.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid pagination parameters", err)
	}

	records, err := r.conn.Query().
		Autocomplete(field, q).
		Load(req.Size).
		Slice(c.Request().Context(), 0, req.Size)
	if err != nil {
		return translateSearchError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": toHits(records)})
}

func (r *SearchRouter) similarHandler(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperr.NewValidation("id path parameter is required")
	}

	qs := r.conn.Query()
	if models := c.QueryParam("models"); models != "" {
		qs = qs.Models(strings.Split(models, ",")...)
	}

	records, err := qs.MoreLikeThis(c.Request().Context(), id)
	if err != nil {
		return translateSearchError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": toHits(records)})
}

func toHits(records []*backend.Record) []hit {
	out := make([]hit, 0, len(records))
	for _, rec := range records {
		out = append(out, hit{
			ID:          rec.ID,
			Model:       rec.Model,
			PK:          rec.PK,
			Score:       rec.Score,
			Fields:      rec.Fields,
			Highlighted: rec.Highlighted,
		})
	}
	return out
}

func translateSearchError(err error) error {
	var unsupported *backend.UnsupportedError
	if errors.As(err, &unsupported) {
		return echo.NewHTTPError(http.StatusNotImplemented, unsupported.Error())
	}
	return err
}
