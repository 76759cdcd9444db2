package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/pkg/logger"
	"FinScan/pkg/util"
)

// Loader reads delimited price files into typed tables.
type Loader struct {
	delimiter rune
	log       *logger.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithDelimiter forces a field delimiter instead of picking one by extension.
func WithDelimiter(r rune) Option {
	return func(l *Loader) { l.delimiter = r }
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{log: logger.Nop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the whole file at path. Any failure wraps models.ErrLoad.
func (l *Loader) Load(ctx context.Context, path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrLoad, err)
	}
	defer f.Close()

	start := time.Now()
	t, err := l.Read(ctx, f, filepath.Base(path), l.delimiterFor(path))
	if err != nil {
		return nil, err
	}
	l.log.Debug("table loaded",
		logger.String("path", path),
		logger.Int("rows", t.Len()),
		logger.Strings("columns", t.ColumnNames()),
		logger.Duration("took", time.Since(start)),
	)
	return t, nil
}

func (l *Loader) delimiterFor(path string) rune {
	if l.delimiter != 0 {
		return l.delimiter
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// Read parses delimited data from r. source names the resulting table.
func (l *Loader) Read(ctx context.Context, r io.Reader, source string, delim rune) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrLoad, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", models.ErrLoad, err)
	}

	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", models.ErrLoad, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", models.ErrLoad, name)
		}
		seen[name] = struct{}{}
		names[i] = name
	}

	cells := make([][]string, len(names))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrLoad, err)
		}
		for i, v := range rec {
			cells[i] = append(cells[i], v)
		}
	}

	rows := 0
	if len(cells) > 0 {
		rows = len(cells[0])
	}
	t := models.NewTable(source, rows)
	for i, name := range names {
		if err := t.AddColumn(buildColumn(name, cells[i], rows)); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrLoad, err)
		}
	}
	return t, nil
}

func buildColumn(name string, raw []string, rows int) *models.Column {
	if raw == nil {
		raw = make([]string, rows)
	}
	if name == models.ColumnDate {
		return timeColumn(name, raw)
	}
	if c, ok := numericColumn(name, raw); ok {
		return c
	}
	return models.NewStringColumn(name, raw)
}

// timeColumn never fails: unparseable cells become invalid entries.
func timeColumn(name string, raw []string) *models.Column {
	c := &models.Column{
		Name:  name,
		Kind:  models.KindTime,
		Raw:   raw,
		Time:  make([]time.Time, len(raw)),
		Valid: make([]bool, len(raw)),
	}
	for i, v := range raw {
		if ts, ok := util.ParseTime(v); ok {
			c.Time[i] = ts
			c.Valid[i] = true
		}
	}
	return c
}

// numericColumn types a column as numeric when every non-blank cell parses
// as a float. Non-finite cells count as missing. An all-blank column stays a
// string column.
func numericColumn(name string, raw []string) (*models.Column, bool) {
	num := make([]float64, len(raw))
	valid := make([]bool, len(raw))
	seen := false
	for i, v := range raw {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		num[i] = f
		valid[i] = !math.IsNaN(f) && !math.IsInf(f, 0)
		seen = true
	}
	if !seen {
		return nil, false
	}
	return &models.Column{
		Name:  name,
		Kind:  models.KindNumeric,
		Raw:   raw,
		Num:   num,
		Valid: valid,
	}, true
}
