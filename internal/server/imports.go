package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cielolabs/costwatch/internal/importer/csvstream"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
)

type importRequest struct {
	Path       string `json:"path" binding:"required"`
	SourceID   string `json:"source_id"`
	RunID      string `json:"run_id"`
	ReportDate string `json:"report_date"`
	DryRun     bool   `json:"dry_run"`
	Overwrite  bool   `json:"overwrite"`
}

// ImportFile imports a local CSV or CSV.GZ export file.
func (s *Server) ImportFile(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("path", "invalid_request", "path is required"))
		return
	}

	var reportDate *time.Time
	if req.ReportDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReportDate)
		if err != nil {
			AbortWithError(c, newValidationError("report_date", "invalid_report_date", "expected YYYY-MM-DD"))
			return
		}
		reportDate = &parsed
	}

	rows, err := csvstream.OpenFile(req.Path)
	if err != nil {
		AbortWithError(c, newValidationError("path", "invalid_path", err.Error()))
		return
	}

	result, err := s.importerSvc.ImportRun(c.Request.Context(), importerdomain.ImportRunRequest{
		SourceID:   req.SourceID,
		RunID:      req.RunID,
		ReportDate: reportDate,
		FileName:   req.Path,
		Rows:       rows,
		DryRun:     req.DryRun,
		Overwrite:  req.Overwrite,
	})
	if err != nil {
		var fatal *importerdomain.FatalError
		if errors.As(err, &fatal) {
			c.JSON(http.StatusInternalServerError, gin.H{"data": result, "error": fatal.Error()})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
