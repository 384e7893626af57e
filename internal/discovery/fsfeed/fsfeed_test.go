package fsfeed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeRun(t *testing.T, base, period, run, runID string) {
	t.Helper()
	dir := filepath.Join(base, period, run)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	manifest := `{"runInfo":{"runId":"` + runID + `","endDate":"2024-02-01T00:00:00"},` +
		`"blobs":[{"blobName":"part_0_0001.csv"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "part_0_0001.csv"),
		[]byte("SubscriptionId,costInUsd\nsub-1,1.50\n"), 0o644))
}

func TestListFindsRunsUnderPeriod(t *testing.T) {
	base := t.TempDir()
	writeRun(t, base, "20240201-20240229", "run-a", "run-a")
	writeRun(t, base, "20240201-20240229", "run-b", "run-b")

	f := New(zap.NewNop())
	candidates, discErrs, err := f.List(context.Background(), base, "20240201-20240229")
	require.NoError(t, err)
	assert.Empty(t, discErrs)
	require.Len(t, candidates, 2)

	ids := []string{candidates[0].RunID, candidates[1].RunID}
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, ids)
	require.NotNil(t, candidates[0].ReportDate)
	assert.Equal(t, "2024-02-01", candidates[0].ReportDate.Format("2006-01-02"))
	assert.Positive(t, candidates[0].Size)
}

func TestListFallsBackToBaseWhenPeriodEmpty(t *testing.T) {
	base := t.TempDir()
	writeRun(t, base, "20240101-20240131", "run-a", "run-a")

	f := New(zap.NewNop())
	candidates, _, err := f.List(context.Background(), base, "20240201-20240229")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "run-a", candidates[0].RunID)
}

func TestListIsolatesCorruptManifests(t *testing.T) {
	base := t.TempDir()
	writeRun(t, base, "p", "run-a", "run-a")

	// Manifest without a run id next to a healthy one.
	broken := filepath.Join(base, "p", "run-b")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "manifest.json"),
		[]byte(`{"runInfo":{},"blobs":[{"blobName":"x.csv"}]}`), 0o644))

	// Manifest whose payload is missing.
	gone := filepath.Join(base, "p", "run-c")
	require.NoError(t, os.MkdirAll(gone, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gone, "manifest.json"),
		[]byte(`{"runInfo":{"runId":"run-c"},"blobs":[{"blobName":"missing.csv"}]}`), 0o644))

	f := New(zap.NewNop())
	candidates, discErrs, err := f.List(context.Background(), base, "p")
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "run-a", candidates[0].RunID)
	assert.Len(t, discErrs, 2)
}

func TestListMissingBase(t *testing.T) {
	f := New(zap.NewNop())
	candidates, discErrs, err := f.List(context.Background(), filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, discErrs)
}

func TestOpenStreamsPayload(t *testing.T) {
	base := t.TempDir()
	writeRun(t, base, "p", "run-a", "run-a")

	f := New(zap.NewNop())
	candidates, _, err := f.List(context.Background(), base, "p")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	rows, err := f.Open(context.Background(), candidates[0])
	require.NoError(t, err)

	row, err := rows.Next()
	require.NoError(t, err)
	assert.Equal(t, "sub-1", row["SubscriptionId"])

	_, err = rows.Next()
	assert.Equal(t, io.EOF, err)
}
