package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/flat10/internal/domain"
	"go.ngs.io/flat10/internal/usecase"
)

// SeriesService reduces archived variables to time series.
type SeriesService interface {
	Series(ctx context.Context, req usecase.SeriesRequest) (*domain.Series, error)
}

// Defaults fills in query parameters the client leaves out.
type Defaults struct {
	Experiment string
	Stream     string
	Start      domain.YearMonth
	End        domain.YearMonth
	MultiFile  bool
}

// Handler handles HTTP requests for FLAT10 series.
type Handler struct {
	series   SeriesService
	retained domain.LandunitTypeSet
	defaults Defaults
}

// NewHandler creates a new HTTP handler.
func NewHandler(series SeriesService, retained domain.LandunitTypeSet, defaults Defaults) *Handler {
	return &Handler{
		series:   series,
		retained: retained,
		defaults: defaults,
	}
}

// PointResponse is one series value. Value is null where the reduction
// is undefined.
type PointResponse struct {
	Time  string   `json:"time"`
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Value *float64 `json:"value"`
}

// SeriesResponse is the response of GET /v1/series.
type SeriesResponse struct {
	Variable string          `json:"variable"`
	Case     string          `json:"case"`
	Domain   string          `json:"domain"`
	Units    string          `json:"units"`
	Reduce   string          `json:"reduce"`
	Points   []PointResponse `json:"points"`
}

// GetSeries handles GET /v1/series.
func (h *Handler) GetSeries(c *gin.Context) {
	req := usecase.SeriesRequest{
		LoadRequest: usecase.LoadRequest{
			Variable:   c.Query("variable"),
			Domain:     c.DefaultQuery("domain", "lnd"),
			Experiment: c.DefaultQuery("experiment", h.defaults.Experiment),
			CaseSuffix: c.Query("case"),
			Stream:     c.DefaultQuery("stream", h.defaults.Stream),
			Start:      h.defaults.Start,
			End:        h.defaults.End,
			MultiFile:  h.defaults.MultiFile,
		},
	}
	if req.Variable == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variable parameter is required"})
		return
	}

	var err error
	if s := c.Query("start"); s != "" {
		if req.Start, err = domain.ParseYearMonth(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start (expected YYYY-MM): %v", err)})
			return
		}
	}
	if s := c.Query("end"); s != "" {
		if req.End, err = domain.ParseYearMonth(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid end (expected YYYY-MM): %v", err)})
			return
		}
	}
	if req.Reduce, err = domain.ParseReduction(c.Query("reduce")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s := c.Query("multi_file"); s != "" {
		if req.MultiFile, err = strconv.ParseBool(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multi_file: %v", err)})
			return
		}
	}

	series, err := h.series.Series(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newSeriesResponse(series))
}

func newSeriesResponse(s *domain.Series) SeriesResponse {
	resp := SeriesResponse{
		Variable: s.Variable,
		Case:     s.Case,
		Domain:   s.Domain,
		Units:    s.Units,
		Reduce:   string(s.Reduce),
		Points:   make([]PointResponse, len(s.Points)),
	}
	for i, p := range s.Points {
		resp.Points[i] = PointResponse{Time: p.Time.Date(), Year: p.Time.Year, Month: p.Time.Month}
		if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
			v := p.Value
			resp.Points[i].Value = &v
		}
	}
	return resp
}

// statusFor maps use case errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// LandunitTypeResponse describes one landunit type.
type LandunitTypeResponse struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Retained bool   `json:"retained"`
}

// GetLandunitTypes handles GET /v1/landunit-types.
func (h *Handler) GetLandunitTypes(c *gin.Context) {
	names := domain.LandunitTypeNames()
	response := make([]LandunitTypeResponse, len(names))
	for i, name := range names {
		response[i] = LandunitTypeResponse{
			Index:    i,
			Name:     name,
			Retained: h.retained.Has(domain.LandunitType(i)),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"landunit_types": response,
		"count":          len(response),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
