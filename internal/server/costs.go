package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	costquerydomain "github.com/cielolabs/costwatch/internal/costquery/domain"
)

// Aggregate answers grouped cost sums over the resolved snapshot scope.
// With no date the scope is the latest complete snapshot per active source;
// with a date it is the per-subscription resolution for that day.
func (s *Server) Aggregate(c *gin.Context) {
	req, err := parseAggregateQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.costquerySvc.Aggregate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// summaryHandler serves the canned single-dimension summaries.
func (s *Server) summaryHandler(dimension string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseAggregateQuery(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.GroupBy = []string{dimension}

		resp, err := s.costquerySvc.Aggregate(c.Request.Context(), req)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) AvailableDates(c *gin.Context) {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		AbortWithError(c, newValidationError("month", "invalid_month", "expected YYYY-MM"))
		return
	}

	dates, err := s.costquerySvc.AvailableDates(c.Request.Context(), month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dates})
}

func parseAggregateQuery(c *gin.Context) (costquerydomain.AggregateRequest, error) {
	var req costquerydomain.AggregateRequest

	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, newValidationError("date", "invalid_date", "expected YYYY-MM-DD")
		}
		req.Date = &parsed
	}

	for _, dim := range strings.Split(c.Query("group_by"), ",") {
		if dim = strings.TrimSpace(dim); dim != "" {
			req.GroupBy = append(req.GroupBy, dim)
		}
	}

	if err := c.ShouldBindQuery(&req.Filters); err != nil {
		return req, newValidationError("filters", "invalid_filters", "invalid filter parameters")
	}
	if minCost, err := parseCostParam(c, "min_cost"); err != nil {
		return req, err
	} else if minCost != nil {
		req.Filters.MinCost = minCost
	}
	if maxCost, err := parseCostParam(c, "max_cost"); err != nil {
		return req, err
	} else if maxCost != nil {
		req.Filters.MaxCost = maxCost
	}

	return req, nil
}

func parseCostParam(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, newValidationError(name, "invalid_"+name, "expected a decimal number")
	}
	return &d, nil
}
