package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"FinScan/internal/domain/models"
	domsvc "FinScan/internal/domain/service"
	"FinScan/internal/services/analytics"
	"FinScan/internal/services/ingest"
	"FinScan/internal/services/report"
	"FinScan/pkg/config"
	"FinScan/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir     string
	reports string
	plots   string
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	return fixture{dir: dir, reports: filepath.Join(dir, "reports"), plots: filepath.Join(dir, "plots")}
}

func (f fixture) write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func (f fixture) pipeline(cfg PipelineConfig, scorer domsvc.Scorer, opts ...PipelineOption) *Pipeline {
	return NewPipeline(cfg, ingest.NewLoader(), scorer, report.NewWriter(f.reports), report.NewRenderer(f.plots), opts...)
}

// priceSeries builds n quiet days plus one spike at row spike.
func priceSeries(n, spike int) string {
	var b strings.Builder
	b.WriteString("Date,Close,Volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c, v := 100+float64(i%3), 1000+float64(i%4)*5
		if i == spike {
			c, v = 400, 9000
		}
		fmt.Fprintf(&b, "%s,%g,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), c, v)
	}
	return b.String()
}

func TestRunThreeRowExample(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "example.csv", "Close,Volume\n10,100\n1000,100\n11,105\n")
	p := f.pipeline(PipelineConfig{Contamination: 0.33, Seed: 42}, analytics.NewZScore())

	for i := 0; i < 2; i++ {
		res, err := p.Run(context.Background(), path)
		require.NoError(t, err)

		labels, ok := res.Table.Labels()
		require.True(t, ok)
		assert.Equal(t, []models.Label{0, 1, 0}, labels)
		assert.True(t, res.HasAnomalies)
		assert.Equal(t, []string{"Close", "Volume"}, res.Features)
		assert.Empty(t, res.Artifacts.Chart, "no Date column")
	}
}

func TestRunThreeRowExampleDefaultScorer(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	scorer, err := analytics.New(cfg, logger.Nop())
	require.NoError(t, err)
	require.Equal(t, "iforest", scorer.Name())

	f := newFixture(t)
	path := f.write(t, "example.csv", "Close,Volume\n10,100\n1000,100\n11,105\n")
	p := f.pipeline(PipelineConfig{Contamination: 0.33, Seed: cfg.Pipeline.Seed}, scorer)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	labels, ok := res.Table.Labels()
	require.True(t, ok)
	assert.Equal(t, []models.Label{0, 1, 0}, labels)
}

func TestRunWritesArtifacts(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "prices.csv", priceSeries(60, 30))
	p := f.pipeline(PipelineConfig{Contamination: 0.05, Seed: 42, WriteLabeled: true}, analytics.NewIsolationForest())

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "prices.csv", res.Source)
	assert.Equal(t, "iforest", res.Algorithm)
	assert.Equal(t, 60, res.Summary.TotalRows)

	labels, _ := res.Table.Labels()
	assert.Equal(t, models.Anomalous, labels[30])
	assert.InDelta(t, float64(res.Summary.Anomalies)/60, res.Summary.Fraction, 1e-12)

	assert.Equal(t, filepath.Join(f.reports, "anomaly_report_prices.csv"), res.Artifacts.AnomalyReport)
	assert.Equal(t, filepath.Join(f.reports, "metrics.txt"), res.Artifacts.Metrics)
	assert.Equal(t, filepath.Join(f.reports, "labeled_prices.csv"), res.Artifacts.Labeled)
	assert.Equal(t, filepath.Join(f.plots, "prices_plot.png"), res.Artifacts.Chart)
	for _, p := range []string{res.Artifacts.AnomalyReport, res.Artifacts.Metrics, res.Artifacts.Labeled, res.Artifacts.Chart} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	text, err := os.ReadFile(res.Artifacts.Metrics)
	require.NoError(t, err)
	assert.Equal(t, res.MetricsText, string(text))
	assert.Contains(t, res.MetricsText, report.SkippedEvaluation)

	back, err := ingest.NewLoader().Load(context.Background(), res.Artifacts.AnomalyReport)
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Anomalies, back.Len())
}

func TestRunDeterministic(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "prices.csv", priceSeries(80, 10))
	p := f.pipeline(PipelineConfig{Contamination: 0.1, Seed: 7}, analytics.NewIsolationForest())

	a, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	la, _ := a.Table.Labels()
	lb, _ := b.Table.Labels()
	assert.Equal(t, la, lb)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunNoFeatures(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "names.csv", "Date,Ticker\n2024-01-01,A\n2024-01-02,B\n")
	scorer := &countingScorer{}
	p := f.pipeline(PipelineConfig{Contamination: 0.05, Seed: 42}, scorer)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	labels, _ := res.Table.Labels()
	assert.Equal(t, []models.Label{0, 0}, labels)
	assert.False(t, res.HasAnomalies)
	assert.Empty(t, res.Features)
	assert.Zero(t, scorer.calls)
}

func TestRunGroundTruth(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "gt.csv", "Close,Volume,GroundTruth\n10,100,0\n1000,100,1\n11,105,0\n")
	p := f.pipeline(PipelineConfig{Features: []string{"Close", "Volume"}, Contamination: 0.33, Seed: 42}, analytics.NewZScore())

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, res.Summary.Evaluation)
	assert.Equal(t, 1.0, res.Summary.Evaluation.F1)
	assert.Contains(t, res.MetricsText, "Precision: 1.0000")
}

func TestRunDerivesFeatures(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "prices.csv", priceSeries(45, 40))
	p := f.pipeline(PipelineConfig{Contamination: 0.05, Seed: 42, DeriveFeatures: true}, analytics.NewIsolationForest(analytics.WithTrees(25)))

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Close", "Volume", "Daily_Return", "Volatility_7", "Volatility_30"}, res.Features)
}

func TestRunLoadError(t *testing.T) {
	f := newFixture(t)
	m := &recordingMetrics{}
	p := f.pipeline(PipelineConfig{Contamination: 0.05}, analytics.NewZScore(), WithMetrics(m))

	_, err := p.Run(context.Background(), filepath.Join(f.dir, "missing.csv"))
	assert.True(t, errors.Is(err, models.ErrLoad))
	assert.Equal(t, []string{"error"}, m.runs)
	assert.Equal(t, []string{"load"}, m.errors)
}

func TestRunSinksAndCache(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "example.csv", "Date,Close,Volume\n2024-01-01,10,100\n2024-01-02,1000,100\n2024-01-03,11,105\n")
	pub := &fakePublisher{}
	store := &fakeStore{}
	cache := &fakeCache{entries: map[string][]models.Label{}}
	scorer := &countingScorer{inner: analytics.NewZScore()}
	m := &recordingMetrics{}
	p := f.pipeline(PipelineConfig{Contamination: 0.33, Seed: 42}, scorer,
		WithEventPublisher(pub), WithAnomalyStore(store), WithLabelCache(cache), WithMetrics(m))

	first, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, scorer.calls)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	l1, _ := first.Table.Labels()
	l2, _ := second.Table.Labels()
	assert.Equal(t, l1, l2)

	require.Len(t, pub.events, 2)
	assert.Equal(t, first.RunID, pub.events[0].RunID)
	assert.Equal(t, 1, pub.events[0].Anomalies)

	require.Len(t, store.records, 2)
	rec := store.records[0]
	assert.Equal(t, 1, rec.RowIndex)
	assert.Equal(t, 1000.0, rec.Close)
	assert.Equal(t, 100.0, rec.Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "1", rec.Row["Anomaly"])

	assert.Equal(t, []string{"ok", "ok"}, m.runs)
	assert.Equal(t, 6, m.rows)
	assert.Equal(t, 2, m.anomalies)
}

func TestRunCacheKeyIncludesScorerSettings(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "prices.csv", priceSeries(40, 20))
	cache := &fakeCache{entries: map[string][]models.Label{}}
	cfg := PipelineConfig{Contamination: 0.05, Seed: 42}

	small := &countingScorer{inner: analytics.NewIsolationForest(analytics.WithTrees(10))}
	large := &countingScorer{inner: analytics.NewIsolationForest(analytics.WithTrees(20))}

	_, err := f.pipeline(cfg, small, WithLabelCache(cache)).Run(context.Background(), path)
	require.NoError(t, err)
	res, err := f.pipeline(cfg, large, WithLabelCache(cache)).Run(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, 1, large.calls)
	assert.Len(t, cache.entries, 2)
}

func TestRunSinkFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "example.csv", "Close,Volume\n10,100\n1000,100\n11,105\n")
	m := &recordingMetrics{}
	p := f.pipeline(PipelineConfig{Contamination: 0.33, Seed: 42}, analytics.NewZScore(),
		WithEventPublisher(&fakePublisher{err: errors.New("broker down")}),
		WithAnomalyStore(&fakeStore{err: errors.New("db down")}),
		WithMetrics(m))

	_, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"publish", "store"}, m.errors)
}

type countingScorer struct {
	inner domsvc.Scorer
	calls int
}

func (c *countingScorer) Name() string { return "counting" }

func (c *countingScorer) Describe() string {
	if c.inner == nil {
		return "counting"
	}
	return c.inner.Describe()
}

func (c *countingScorer) Score(ctx context.Context, m [][]float64, p domsvc.ScoreParams) ([]models.Label, error) {
	c.calls++
	if c.inner == nil {
		return make([]models.Label, len(m)), nil
	}
	return c.inner.Score(ctx, m, p)
}

type fakePublisher struct {
	events []models.RunEvent
	err    error
}

func (f *fakePublisher) PublishRun(_ context.Context, ev models.RunEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeStore struct {
	records []models.AnomalyRecord
	err     error
}

func (f *fakeStore) Init(context.Context) error   { return nil }
func (f *fakeStore) Health(context.Context) error { return nil }

func (f *fakeStore) StoreBatch(_ context.Context, recs []models.AnomalyRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recs...)
	return nil
}

type fakeCache struct {
	entries map[string][]models.Label
}

func (f *fakeCache) Get(_ context.Context, key string) ([]models.Label, bool, error) {
	l, ok := f.entries[key]
	return l, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, labels []models.Label, _ time.Duration) error {
	f.entries[key] = labels
	return nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	runs      []string
	errors    []string
	rows      int
	anomalies int
}

func (r *recordingMetrics) RecordRun(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, result)
}

func (r *recordingMetrics) RecordError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

func (r *recordingMetrics) RecordRows(rows, anomalies int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows += rows
	r.anomalies += anomalies
}

func (r *recordingMetrics) RecordFraction(float64)        {}
func (r *recordingMetrics) RecordLatency(string, float64) {}
