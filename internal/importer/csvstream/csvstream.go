// Package csvstream adapts CSV payloads, plain or gzip-compressed, to the
// import pipeline's row stream contract.
package csvstream

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/cielolabs/costwatch/internal/importer/domain"
)

var ErrEmptyHeader = errors.New("csv stream has no header row")

type stream struct {
	reader  *csv.Reader
	headers []string
	closers []io.Closer
}

// New reads the header row eagerly so a headerless payload fails at open
// time, not mid-run. When r is also an io.Closer, Close releases it.
func New(r io.Reader) (domain.RowStream, error) {
	return newStream(r, closerOf(r))
}

// NewGzip wraps a gzip-compressed CSV payload.
func NewGzip(r io.Reader) (domain.RowStream, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	return newStream(gz, append([]io.Closer{gz}, closerOf(r)...))
}

// OpenFile opens a local .csv or .csv.gz file by extension.
func OpenFile(path string) (domain.RowStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return NewGzip(f)
	}
	return New(f)
}

func newStream(r io.Reader, closers []io.Closer) (domain.RowStream, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err == io.EOF {
		closeAll(closers)
		return nil, ErrEmptyHeader
	}
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &stream{reader: cr, headers: headers, closers: closers}, nil
}

func (s *stream) Next() (domain.RawRow, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		s.Close()
		return nil, io.EOF
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	row := make(domain.RawRow, len(s.headers))
	for i, h := range s.headers {
		if i < len(record) {
			row[h] = record[i]
		}
	}
	return row, nil
}

// Close releases the underlying readers. Safe to call repeatedly; Next
// already closes when it hits end of stream or a read error.
func (s *stream) Close() error {
	err := closeAll(s.closers)
	s.closers = nil
	return err
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func closerOf(r io.Reader) []io.Closer {
	if c, ok := r.(io.Closer); ok {
		return []io.Closer{c}
	}
	return nil
}
