package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"FinScan/internal/domain/models"
)

// File name conventions inside the reports directory.
const (
	AnomalyReportPrefix = "anomaly_report_"
	LabeledPrefix       = "labeled_"
	MetricsFile         = "metrics.txt"
)

// Writer persists run artifacts under a reports directory.
type Writer struct {
	dir string
}

func NewWriter(reportsDir string) *Writer {
	return &Writer{dir: reportsDir}
}

// Dir returns the reports directory.
func (w *Writer) Dir() string { return w.dir }

// WriteAnomalyReport writes the rows labeled anomalous, every column, to
// anomaly_report_<source>. The header is written even when no row matches.
func (w *Writer) WriteAnomalyReport(t *models.Table, source string) (string, error) {
	labels, ok := t.Labels()
	if !ok {
		return "", fmt.Errorf("table %s has no %s column", t.Source, models.ColumnAnomaly)
	}
	flagged := t.Filter(func(i int) bool { return labels[i] == models.Anomalous })
	return w.writeTable(flagged, AnomalyReportPrefix+filepath.Base(source))
}

// WriteLabeled writes the full labeled table to labeled_<source>.
func (w *Writer) WriteLabeled(t *models.Table, source string) (string, error) {
	return w.writeTable(t, LabeledPrefix+filepath.Base(source))
}

// WriteMetrics overwrites metrics.txt with text.
func (w *Writer) WriteMetrics(text string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(w.dir, MetricsFile)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write metrics: %w", err)
	}
	return path, nil
}

func (w *Writer) writeTable(t *models.Table, name string) (path string, err error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path = filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			rec[j] = c.Raw[i]
		}
		if err := cw.Write(rec); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", name, err)
	}
	return path, nil
}
