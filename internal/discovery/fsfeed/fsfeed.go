// Package fsfeed serves export runs from a local directory tree laid out as
// <base>/<period>/<run>/manifest.json with the payload blobs alongside.
package fsfeed

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cielolabs/costwatch/internal/discovery/domain"
	"github.com/cielolabs/costwatch/internal/importer/csvstream"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
)

const manifestName = "manifest.json"

type feed struct {
	log *zap.Logger
}

func New(log *zap.Logger) domain.RunFeed {
	return &feed{log: log.Named("discovery.fsfeed")}
}

// List walks the period subtree for manifests, falling back to the whole
// base tree when the period holds none. Only manifests are read; payloads
// stay closed.
func (f *feed) List(ctx context.Context, baseLocator, period string) ([]domain.RunCandidate, []domain.DiscoveryError, error) {
	root := baseLocator
	if period != "" {
		root = filepath.Join(baseLocator, period)
	}

	manifests, err := findManifests(root)
	if err != nil {
		return nil, nil, err
	}
	if len(manifests) == 0 && period != "" {
		f.log.Info("no manifests under period, falling back to base",
			zap.String("period", period),
			zap.String("base", baseLocator))
		if manifests, err = findManifests(baseLocator); err != nil {
			return nil, nil, err
		}
	}

	var (
		candidates []domain.RunCandidate
		discErrs   []domain.DiscoveryError
	)
	for _, path := range manifests {
		candidate, err := readManifest(path)
		if err != nil {
			discErrs = append(discErrs, domain.DiscoveryError{ManifestName: path, Reason: err.Error()})
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, discErrs, nil
}

func (f *feed) Open(ctx context.Context, candidate domain.RunCandidate) (importerdomain.RowStream, error) {
	return csvstream.OpenFile(candidate.PayloadLocator)
}

func findManifests(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var manifests []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == manifestName {
			manifests = append(manifests, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifests, nil
}

func readManifest(path string) (domain.RunCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RunCandidate{}, err
	}
	m, err := domain.ParseManifest(data)
	if err != nil {
		return domain.RunCandidate{}, err
	}

	payload := filepath.Join(filepath.Dir(path), filepath.Base(m.PayloadName()))
	info, err := os.Stat(payload)
	if err != nil {
		return domain.RunCandidate{}, fmt.Errorf("payload %s: %w", m.PayloadName(), err)
	}

	return domain.RunCandidate{
		RunID:          m.RunInfo.RunID,
		ReportDate:     m.ReportDate(),
		PayloadLocator: payload,
		ManifestName:   path,
		Size:           info.Size(),
		LastModified:   info.ModTime(),
	}, nil
}
