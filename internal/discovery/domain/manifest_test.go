package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"runInfo": {"runId": "run-1", "endDate": "2024-02-14T00:00:00"},
		"blobs": [{"blobName": "exports/part_0_0001.csv.gz"}, {"blobName": "exports/part_0_0002.csv.gz"}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "run-1", m.RunInfo.RunID)
	assert.Equal(t, "exports/part_0_0001.csv.gz", m.PayloadName())
	require.NotNil(t, m.ReportDate())
	assert.Equal(t, "2024-02-14", m.ReportDate().Format("2006-01-02"))
}

func TestParseManifestRejections(t *testing.T) {
	_, err := ParseManifest([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseManifest([]byte(`{"runInfo":{},"blobs":[{"blobName":"x.csv"}]}`))
	assert.ErrorIs(t, err, ErrManifestNoRunID)

	_, err = ParseManifest([]byte(`{"runInfo":{"runId":"run-1"},"blobs":[]}`))
	assert.ErrorIs(t, err, ErrManifestNoBlobs)

	_, err = ParseManifest([]byte(`{"runInfo":{"runId":"run-1"},"blobs":[{"blobName":""}]}`))
	assert.ErrorIs(t, err, ErrManifestNoBlobs)
}

func TestReportDateOptional(t *testing.T) {
	m, err := ParseManifest([]byte(`{"runInfo":{"runId":"run-1"},"blobs":[{"blobName":"x.csv"}]}`))
	require.NoError(t, err)
	assert.Nil(t, m.ReportDate())

	m.RunInfo.EndDate = "yesterday"
	assert.Nil(t, m.ReportDate())
}
