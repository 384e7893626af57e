package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListSnapshots(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "expected a non-negative integer"))
		return
	}

	snapshots, err := s.snapshotSvc.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshots})
}

func (s *Server) GetSnapshot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_snapshot_id", "expected an integer id"))
		return
	}

	snap, err := s.snapshotSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// ResolveLatest reports, per active source, the snapshot that latest-mode
// queries read from, plus sources with nothing complete yet.
func (s *Server) ResolveLatest(c *gin.Context) {
	resolution, err := s.resolverSvc.ResolveLatest(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resolution})
}

func (s *Server) SnapshotReportDates(c *gin.Context) {
	dates, err := s.snapshotSvc.ReportDates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dates})
}
