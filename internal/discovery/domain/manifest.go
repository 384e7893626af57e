package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrManifestNoRunID = errors.New("manifest has no run id")
	ErrManifestNoBlobs = errors.New("manifest lists no blobs")
)

// Manifest is the export producer's per-run metadata file. The run id comes
// from the manifest itself, never from file naming.
type Manifest struct {
	RunInfo struct {
		RunID   string `json:"runId"`
		EndDate string `json:"endDate"`
	} `json:"runInfo"`
	Blobs []struct {
		BlobName string `json:"blobName"`
	} `json:"blobs"`
}

func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if m.RunInfo.RunID == "" {
		return m, ErrManifestNoRunID
	}
	if len(m.Blobs) == 0 || m.Blobs[0].BlobName == "" {
		return m, ErrManifestNoBlobs
	}
	return m, nil
}

// ReportDate extracts the date part of the manifest's end date, when present.
func (m Manifest) ReportDate() *time.Time {
	raw := m.RunInfo.EndDate
	if raw == "" {
		return nil
	}
	datePart, _, _ := strings.Cut(raw, "T")
	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return nil
	}
	return &t
}

// PayloadName is the first blob of the run, the compressed line-item export.
func (m Manifest) PayloadName() string {
	return m.Blobs[0].BlobName
}
