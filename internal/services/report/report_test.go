package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/internal/services/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeledTable(t *testing.T, labels []models.Label, extra ...*models.Column) *models.Table {
	t.Helper()
	n := len(labels)
	dates := make([]string, n)
	closes := make([]float64, n)
	for i := range dates {
		dates[i] = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		closes[i] = 100 + float64(i)
	}
	tbl := models.NewTable("prices.csv", n)
	require.NoError(t, tbl.AddColumn(dateColumn(dates)))
	require.NoError(t, tbl.AddColumn(models.NewNumericColumn(models.ColumnClose, closes)))
	for _, c := range extra {
		require.NoError(t, tbl.AddColumn(c))
	}
	require.NoError(t, tbl.SetColumn(models.NewLabelColumn(labels)))
	return tbl
}

func dateColumn(raw []string) *models.Column {
	c := &models.Column{
		Name:  models.ColumnDate,
		Kind:  models.KindTime,
		Raw:   raw,
		Time:  make([]time.Time, len(raw)),
		Valid: make([]bool, len(raw)),
	}
	for i, v := range raw {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			c.Time[i], c.Valid[i] = ts, true
		}
	}
	return c
}

func TestSummarizeWithoutGroundTruth(t *testing.T) {
	tbl := labeledTable(t, []models.Label{0, 1, 0, 0})
	s := Summarize(tbl, 0.05)

	assert.Equal(t, 4, s.TotalRows)
	assert.Equal(t, 1, s.Anomalies)
	assert.Equal(t, 0.25, s.Fraction)
	assert.Nil(t, s.Evaluation)

	text := FormatSummary(s)
	assert.Equal(t, "Total rows: 4\n"+
		"Number of anomalies detected: 1\n"+
		"Anomaly fraction: 25.00%\n"+
		"Contamination rate: 0.05\n"+
		SkippedEvaluation+"\n", text)
	assert.NotContains(t, text, "Precision:")
	assert.NotContains(t, text, "Recall:")
	assert.NotContains(t, text, "F1 score:")
}

func TestSummarizeEmptyTable(t *testing.T) {
	tbl := models.NewTable("empty.csv", 0)
	require.NoError(t, tbl.AddColumn(models.NewLabelColumn(nil)))
	s := Summarize(tbl, 0.05)
	assert.Equal(t, 0, s.TotalRows)
	assert.Equal(t, 0.0, s.Fraction)
}

func TestSummarizePerfectGroundTruth(t *testing.T) {
	labels := []models.Label{0, 1, 0, 1}
	truth := models.NewNumericColumn(models.ColumnGroundTruth, []float64{0, 1, 0, 1})
	s := Summarize(labeledTable(t, labels, truth), 0.5)

	require.NotNil(t, s.Evaluation)
	assert.Equal(t, 1.0, s.Evaluation.Precision)
	assert.Equal(t, 1.0, s.Evaluation.Recall)
	assert.Equal(t, 1.0, s.Evaluation.F1)
	assert.Contains(t, FormatSummary(s), "Precision: 1.0000\nRecall: 1.0000\nF1 score: 1.0000\n")
}

func TestSummarizeNoPositivePredictions(t *testing.T) {
	truth := models.NewNumericColumn(models.ColumnGroundTruth, []float64{1, 0, 0})
	s := Summarize(labeledTable(t, []models.Label{0, 0, 0}, truth), 0.05)

	require.NotNil(t, s.Evaluation)
	assert.Equal(t, 0.0, s.Evaluation.Precision)
	assert.Equal(t, 0.0, s.Evaluation.Recall)
	assert.Equal(t, 0.0, s.Evaluation.F1)
	assert.Equal(t, 1, s.Evaluation.FalseNegatives)
}

func TestSummarizePartialGroundTruth(t *testing.T) {
	truth := models.NewStringColumn(models.ColumnGroundTruth, []string{"true", "false", "True", "false"})
	s := Summarize(labeledTable(t, []models.Label{1, 1, 0, 0}, truth), 0.05)

	require.NotNil(t, s.Evaluation)
	assert.Equal(t, 0.5, s.Evaluation.Precision)
	assert.Equal(t, 0.5, s.Evaluation.Recall)
	assert.Equal(t, 0.5, s.Evaluation.F1)
}

func TestAnomalyReportRoundTrip(t *testing.T) {
	volume := models.NewStringColumn("Note", []string{"a", "b, quoted", "c", "d"})
	tbl := labeledTable(t, []models.Label{0, 1, 0, 1}, volume)

	w := NewWriter(filepath.Join(t.TempDir(), "reports"))
	path, err := w.WriteAnomalyReport(tbl, "uploads/prices.csv")
	require.NoError(t, err)
	assert.Equal(t, "anomaly_report_prices.csv", filepath.Base(path))

	back, err := ingest.NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, tbl.ColumnNames(), back.ColumnNames())
	require.Equal(t, 2, back.Len())
	for j, want := range []int{1, 3} {
		assert.Equal(t, tbl.Record(want), back.Record(j))
	}
	labels, ok := back.Labels()
	require.True(t, ok)
	assert.Equal(t, []models.Label{1, 1}, labels)
}

func TestAnomalyReportNoAnomalies(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.WriteAnomalyReport(labeledTable(t, []models.Label{0, 0}), "prices.csv")
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Close,Anomaly\n", string(b))
}

func TestAnomalyReportNeedsLabels(t *testing.T) {
	tbl := models.NewTable("x.csv", 1)
	require.NoError(t, tbl.AddColumn(models.NewNumericColumn("Close", []float64{1})))
	_, err := NewWriter(t.TempDir()).WriteAnomalyReport(tbl, "x.csv")
	assert.Error(t, err)
}

func TestWriteMetricsOverwrites(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "nested"))
	_, err := w.WriteMetrics("first run\n")
	require.NoError(t, err)
	path, err := w.WriteMetrics("second\n")
	require.NoError(t, err)

	assert.Equal(t, MetricsFile, filepath.Base(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))
}

func TestWriteLabeled(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.WriteLabeled(labeledTable(t, []models.Label{0, 1}), "prices.csv")
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
	assert.Equal(t, "labeled_prices.csv", filepath.Base(path))
}

func TestRenderSkipsWithoutColumns(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	tbl := models.NewTable("x.csv", 2)
	require.NoError(t, tbl.AddColumn(models.NewNumericColumn(models.ColumnClose, []float64{1, 2})))

	path, rendered, err := NewRenderer(dir).Render(tbl, "x.csv")
	require.NoError(t, err)
	assert.False(t, rendered)
	assert.Empty(t, path)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRenderWithAndWithoutAnomalies(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir)

	for _, labels := range [][]models.Label{{0, 0, 0, 0}, {0, 1, 0, 1}} {
		path, rendered, err := r.Render(labeledTable(t, labels), "data/prices.csv")
		require.NoError(t, err)
		assert.True(t, rendered)
		assert.Equal(t, filepath.Join(dir, "prices_plot.png"), path)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRenderEmptySeries(t *testing.T) {
	tbl := labeledTable(t, nil)
	_, rendered, err := NewRenderer(t.TempDir()).Render(tbl, "empty.csv")
	require.NoError(t, err)
	assert.True(t, rendered)
}

func TestChartName(t *testing.T) {
	assert.Equal(t, "prices_plot.png", ChartName("/tmp/prices.csv"))
	assert.Equal(t, "noext_plot.png", ChartName("noext"))
}
