// Package domain defines run discovery: turning a source's base locator into
// candidate export runs, deciding which are new, and driving them through
// the importer.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
)

// RunCandidate is one export run found in a feed, described entirely by its
// manifest. The payload behind PayloadLocator is untouched until Open.
type RunCandidate struct {
	RunID          string     `json:"run_id"`
	ReportDate     *time.Time `json:"report_date,omitempty"`
	PayloadLocator string     `json:"payload_locator"`
	ManifestName   string     `json:"manifest_name"`
	Size           int64      `json:"size,omitempty"`
	LastModified   time.Time  `json:"last_modified,omitempty"`
}

// DiscoveryError records one unreadable candidate. It never aborts discovery
// of the remaining candidates.
type DiscoveryError struct {
	ManifestName string `json:"manifest_name"`
	Reason       string `json:"reason"`
}

func (e DiscoveryError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.ManifestName, e.Reason)
}

// RunFeed lists and opens export runs under a base locator. List reads only
// manifests, never payloads; Open resolves and decompresses one payload.
type RunFeed interface {
	List(ctx context.Context, baseLocator, period string) ([]RunCandidate, []DiscoveryError, error)
	Open(ctx context.Context, candidate RunCandidate) (importerdomain.RowStream, error)
}

type DiscoveredRun struct {
	RunCandidate
	AlreadyImported bool `json:"already_imported"`
}

type DiscoveryReport struct {
	SourceID string           `json:"source_id"`
	Period   string           `json:"period"`
	Runs     []DiscoveredRun  `json:"runs"`
	Errors   []DiscoveryError `json:"errors,omitempty"`
}

type FetchOptions struct {
	Period    string
	DryRun    bool
	Overwrite bool
}

// RunOutcome is one candidate's fate during a fetch-and-import sweep.
type RunOutcome struct {
	RunID  string                      `json:"run_id"`
	Result importerdomain.ImportResult `json:"result"`
	Error  string                      `json:"error,omitempty"`
}

type FetchReport struct {
	SourceID       string           `json:"source_id"`
	Period         string           `json:"period"`
	ManifestsFound int              `json:"manifests_found"`
	Runs           []RunOutcome     `json:"runs"`
	Errors         []DiscoveryError `json:"errors,omitempty"`
}

var ErrUnsupportedLocator = errors.New("unsupported_base_locator")

type Service interface {
	// DiscoverRuns lists candidates for a source without fetching payloads,
	// annotating each with whether a complete snapshot already holds its run id.
	DiscoverRuns(ctx context.Context, sourceID, period string) (DiscoveryReport, error)

	// FetchAndImport imports every candidate that is not already imported,
	// or all of them when overwrite is set. Per-run failures are collected;
	// only a listing failure aborts the sweep.
	FetchAndImport(ctx context.Context, sourceID string, opts FetchOptions) (FetchReport, error)
}
