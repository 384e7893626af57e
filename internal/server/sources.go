package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	discoverydomain "github.com/cielolabs/costwatch/internal/discovery/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

func (s *Server) ListSources(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	sources, err := s.sourceSvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sources})
}

func (s *Server) CreateSource(c *gin.Context) {
	var req srcdomain.CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	source, err := s.sourceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": source})
}

func (s *Server) GetSource(c *gin.Context) {
	source, err := s.sourceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": source})
}

// DiscoverRuns lists a source's export runs without fetching payloads.
func (s *Server) DiscoverRuns(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))

	report, err := s.discoverySvc.DiscoverRuns(c.Request.Context(), c.Param("id"), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// FetchAndImport pulls and imports every new run for a source.
func (s *Server) FetchAndImport(c *gin.Context) {
	var req struct {
		Period    string `json:"period"`
		DryRun    bool   `json:"dry_run"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	report, err := s.discoverySvc.FetchAndImport(c.Request.Context(), c.Param("id"), discoverydomain.FetchOptions{
		Period:    req.Period,
		DryRun:    req.DryRun,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
