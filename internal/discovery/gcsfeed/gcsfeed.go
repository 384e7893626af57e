// Package gcsfeed serves export runs from a blob storage bucket. The base
// locator has the form gs://bucket/prefix; manifests are found by prefix
// listing and payloads are streamed and decompressed on Open.
package gcsfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/cielolabs/costwatch/internal/discovery/domain"
	"github.com/cielolabs/costwatch/internal/importer/csvstream"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
)

const (
	locatorScheme  = "gs://"
	manifestSuffix = "manifest.json"
)

var ErrBadLocator = errors.New("base locator is not a gs:// url")

type feed struct {
	client *storage.Client
	log    *zap.Logger
}

func New(client *storage.Client, log *zap.Logger) domain.RunFeed {
	return &feed{client: client, log: log.Named("discovery.gcsfeed")}
}

// parseLocator splits gs://bucket/prefix into bucket and prefix, the prefix
// normalized to end with a slash when present.
func parseLocator(baseLocator string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(baseLocator, locatorScheme) {
		return "", "", ErrBadLocator
	}
	rest := strings.TrimPrefix(baseLocator, locatorScheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", ErrBadLocator
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// List finds manifest objects under the period prefix, falling back to the
// base prefix when the period yields nothing. Only manifest objects are
// downloaded.
func (f *feed) List(ctx context.Context, baseLocator, period string) ([]domain.RunCandidate, []domain.DiscoveryError, error) {
	bucket, prefix, err := parseLocator(baseLocator)
	if err != nil {
		return nil, nil, err
	}

	listingPrefix := prefix
	if period != "" {
		listingPrefix = prefix + period + "/"
	}

	manifests, err := f.listManifests(ctx, bucket, listingPrefix)
	if err != nil {
		return nil, nil, err
	}
	if len(manifests) == 0 && listingPrefix != prefix {
		f.log.Info("no manifests under period prefix, falling back to base",
			zap.String("period_prefix", listingPrefix),
			zap.String("base_prefix", prefix))
		if manifests, err = f.listManifests(ctx, bucket, prefix); err != nil {
			return nil, nil, err
		}
	}

	var (
		candidates []domain.RunCandidate
		discErrs   []domain.DiscoveryError
	)
	for _, attrs := range manifests {
		candidate, err := f.readManifest(ctx, bucket, attrs)
		if err != nil {
			discErrs = append(discErrs, domain.DiscoveryError{ManifestName: attrs.Name, Reason: err.Error()})
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, discErrs, nil
}

func (f *feed) Open(ctx context.Context, candidate domain.RunCandidate) (importerdomain.RowStream, error) {
	bucket, object, err := splitObjectLocator(candidate.PayloadLocator)
	if err != nil {
		return nil, err
	}

	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open payload %s: %w", candidate.PayloadLocator, err)
	}
	if strings.HasSuffix(strings.ToLower(object), ".gz") {
		return csvstream.NewGzip(r)
	}
	return csvstream.New(r)
}

func (f *feed) listManifests(ctx context.Context, bucket, prefix string) ([]*storage.ObjectAttrs, error) {
	var manifests []*storage.ObjectAttrs
	it := f.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, manifestSuffix) {
			manifests = append(manifests, attrs)
		}
	}
	return manifests, nil
}

func (f *feed) readManifest(ctx context.Context, bucket string, attrs *storage.ObjectAttrs) (domain.RunCandidate, error) {
	r, err := f.client.Bucket(bucket).Object(attrs.Name).NewReader(ctx)
	if err != nil {
		return domain.RunCandidate{}, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return domain.RunCandidate{}, err
	}
	m, err := domain.ParseManifest(data)
	if err != nil {
		return domain.RunCandidate{}, err
	}

	return domain.RunCandidate{
		RunID:          m.RunInfo.RunID,
		ReportDate:     m.ReportDate(),
		PayloadLocator: locatorScheme + bucket + "/" + m.PayloadName(),
		ManifestName:   attrs.Name,
		Size:           attrs.Size,
		LastModified:   attrs.Updated,
	}, nil
}

func splitObjectLocator(locator string) (bucket, object string, err error) {
	if !strings.HasPrefix(locator, locatorScheme) {
		return "", "", ErrBadLocator
	}
	bucket, object, _ = strings.Cut(strings.TrimPrefix(locator, locatorScheme), "/")
	if bucket == "" || object == "" {
		return "", "", ErrBadLocator
	}
	return bucket, object, nil
}
