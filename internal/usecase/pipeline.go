package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	domsvc "FinScan/internal/domain/service"
	"FinScan/internal/services/features"
	"FinScan/internal/services/ingest"
	"FinScan/internal/services/report"
	"FinScan/pkg/logger"

	"github.com/google/uuid"
)

// PipelineConfig holds the per-run knobs of the detection pipeline.
type PipelineConfig struct {
	Features       []string
	Contamination  float64
	Seed           int64
	DeriveFeatures bool
	WriteLabeled   bool
	CacheTTL       time.Duration
}

// Pipeline runs load, select, standardize, score, summarize and write for
// one input file per call. It holds no per-run state.
type Pipeline struct {
	cfg      PipelineConfig
	loader   *ingest.Loader
	scorer   domsvc.Scorer
	writer   *report.Writer
	renderer *report.Renderer

	metrics drepo.Metrics
	events  drepo.EventPublisher
	store   drepo.AnomalyStore
	cache   drepo.LabelCache
	log     *logger.Logger
}

type PipelineOption func(*Pipeline)

func WithMetrics(m drepo.Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithEventPublisher(pub drepo.EventPublisher) PipelineOption {
	return func(p *Pipeline) { p.events = pub }
}

func WithAnomalyStore(s drepo.AnomalyStore) PipelineOption {
	return func(p *Pipeline) { p.store = s }
}

func WithLabelCache(c drepo.LabelCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPipeline(
	cfg PipelineConfig,
	loader *ingest.Loader,
	scorer domsvc.Scorer,
	writer *report.Writer,
	renderer *report.Renderer,
	opts ...PipelineOption,
) *Pipeline {
	if len(cfg.Features) == 0 {
		cfg.Features = features.DefaultCandidates
	}
	p := &Pipeline{
		cfg:      cfg,
		loader:   loader,
		scorer:   scorer,
		writer:   writer,
		renderer: renderer,
		metrics:  nopMetrics{},
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes the file at path. Only load failures (models.ErrLoad) and
// artifact write failures are returned; an empty feature set yields zero
// anomalies and optional sinks only log their errors.
func (p *Pipeline) Run(ctx context.Context, path string) (*models.Result, error) {
	start := time.Now()
	source := filepath.Base(path)
	res := &models.Result{
		RunID:     uuid.NewString(),
		Source:    source,
		Algorithm: p.scorer.Name(),
	}
	log := p.log.With(logger.String("run_id", res.RunID), logger.String("source", source))

	res, err := p.run(ctx, path, res, log)
	if err != nil {
		p.metrics.RecordRun("error")
		log.Error("pipeline run failed", logger.Error(err))
		return nil, err
	}

	res.Duration = time.Since(start)
	p.metrics.RecordRun("ok")
	p.metrics.RecordRows(res.Summary.TotalRows, res.Summary.Anomalies)
	p.metrics.RecordFraction(res.Summary.Fraction)
	p.metrics.RecordLatency("run", res.Duration.Seconds())

	p.publish(ctx, res, log)
	p.persist(ctx, res, log)

	log.Info("pipeline run finished",
		logger.Int("rows", res.Summary.TotalRows),
		logger.Int("anomalies", res.Summary.Anomalies),
		logger.Float64("fraction", res.Summary.Fraction),
		logger.Strings("features", res.Features),
		logger.Bool("cached", res.Cached),
		logger.Duration("took", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, path string, res *models.Result, log *logger.Logger) (*models.Result, error) {
	t0 := time.Now()
	tbl, err := p.loader.Load(ctx, path)
	if err != nil {
		p.metrics.RecordError("load")
		return nil, err
	}
	p.observe("load", t0)

	if p.cfg.DeriveFeatures {
		if _, err := features.Derive(tbl); err != nil {
			p.metrics.RecordError("derive")
			return nil, fmt.Errorf("derive features: %w", err)
		}
	}

	labels, err := p.label(ctx, tbl, res, log)
	if err != nil {
		p.metrics.RecordError("score")
		return nil, err
	}
	if err := tbl.SetColumn(models.NewLabelColumn(labels)); err != nil {
		return nil, fmt.Errorf("attach labels: %w", err)
	}
	res.Table = tbl

	res.Summary = report.Summarize(tbl, p.cfg.Contamination)
	res.MetricsText = report.FormatSummary(res.Summary)
	res.HasAnomalies = res.Summary.Anomalies > 0

	t0 = time.Now()
	if err := p.writeArtifacts(tbl, res); err != nil {
		p.metrics.RecordError("write")
		return nil, err
	}
	p.observe("write", t0)
	return res, nil
}

// label scores the table, or returns all-normal labels when no candidate
// feature is present.
func (p *Pipeline) label(ctx context.Context, tbl *models.Table, res *models.Result, log *logger.Logger) ([]models.Label, error) {
	matrix, used, err := features.Select(tbl, p.cfg.Features)
	if errors.Is(err, models.ErrNoFeatures) {
		log.Warn("no scoring features present, labeling all rows normal",
			logger.Strings("candidates", p.cfg.Features),
			logger.Strings("columns", tbl.ColumnNames()),
		)
		return make([]models.Label, tbl.Len()), nil
	}
	if err != nil {
		return nil, err
	}
	res.Features = used

	scaled := features.FitTransform(matrix)
	params := domsvc.ScoreParams{Contamination: p.cfg.Contamination, Seed: p.cfg.Seed}

	key := ""
	if p.cache != nil {
		key = fingerprint(p.scorer.Describe(), params, scaled)
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			log.Warn("label cache get failed", logger.Error(err))
		} else if ok && len(cached) == tbl.Len() {
			res.Cached = true
			return cached, nil
		}
	}

	t0 := time.Now()
	labels, err := p.scorer.Score(ctx, scaled, params)
	if err != nil {
		return nil, fmt.Errorf("score with %s: %w", p.scorer.Name(), err)
	}
	if len(labels) != tbl.Len() {
		return nil, fmt.Errorf("score with %s: %d labels for %d rows", p.scorer.Name(), len(labels), tbl.Len())
	}
	p.observe("score", t0)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, labels, p.cfg.CacheTTL); err != nil {
			log.Warn("label cache set failed", logger.Error(err))
		}
	}
	return labels, nil
}

func (p *Pipeline) writeArtifacts(tbl *models.Table, res *models.Result) error {
	var err error
	if res.Artifacts.AnomalyReport, err = p.writer.WriteAnomalyReport(tbl, res.Source); err != nil {
		return fmt.Errorf("anomaly report: %w", err)
	}
	if res.Artifacts.Metrics, err = p.writer.WriteMetrics(res.MetricsText); err != nil {
		return fmt.Errorf("metrics report: %w", err)
	}
	if p.cfg.WriteLabeled {
		if res.Artifacts.Labeled, err = p.writer.WriteLabeled(tbl, res.Source); err != nil {
			return fmt.Errorf("labeled table: %w", err)
		}
	}

	t0 := time.Now()
	chart, rendered, err := p.renderer.Render(tbl, res.Source)
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	if rendered {
		res.Artifacts.Chart = chart
		p.observe("render", t0)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, res *models.Result, log *logger.Logger) {
	if p.events == nil {
		return
	}
	ev := models.RunEvent{
		RunID:         res.RunID,
		Source:        res.Source,
		Algorithm:     res.Algorithm,
		Features:      res.Features,
		TotalRows:     res.Summary.TotalRows,
		Anomalies:     res.Summary.Anomalies,
		Fraction:      res.Summary.Fraction,
		Contamination: res.Summary.Contamination,
		FinishedAt:    time.Now().UTC(),
	}
	if err := p.events.PublishRun(ctx, ev); err != nil {
		p.metrics.RecordError("publish")
		log.Error("publish run event failed", logger.Error(err))
	}
}

func (p *Pipeline) persist(ctx context.Context, res *models.Result, log *logger.Logger) {
	if p.store == nil || !res.HasAnomalies {
		return
	}
	records := AnomalyRecords(res)
	if err := p.store.StoreBatch(ctx, records); err != nil {
		p.metrics.RecordError("store")
		log.Error("store anomalies failed", logger.Error(err), logger.Int("records", len(records)))
	}
}

// AnomalyRecords flattens the flagged rows of a result.
func AnomalyRecords(res *models.Result) []models.AnomalyRecord {
	tbl := res.Table
	labels, _ := tbl.Labels()
	dates, _ := tbl.Column(models.ColumnDate)
	closes, _ := tbl.Column(models.ColumnClose)
	volumes, _ := tbl.Column(models.ColumnVolume)

	var out []models.AnomalyRecord
	for i, l := range labels {
		if l != models.Anomalous {
			continue
		}
		rec := models.AnomalyRecord{
			RunID:    res.RunID,
			Source:   res.Source,
			RowIndex: i,
			Close:    math.NaN(),
			Volume:   math.NaN(),
			Row:      tbl.Record(i),
		}
		if dates != nil {
			rec.Date, _ = dates.At(i)
		}
		if closes != nil {
			rec.Close, _ = closes.Float(i)
		}
		if volumes != nil {
			rec.Volume, _ = volumes.Float(i)
		}
		out = append(out, rec)
	}
	return out
}

func (p *Pipeline) observe(stage string, since time.Time) {
	p.metrics.RecordLatency(stage, time.Since(since).Seconds())
}

// fingerprint identifies a scoring call by scorer settings, params and the
// exact bits of the standardized matrix.
func fingerprint(scorer string, params domsvc.ScoreParams, matrix [][]float64) string {
	h := sha256.New()
	h.Write([]byte(scorer))
	h.Write([]byte{0})
	var buf [8]byte
	put := func(u uint64) {
		binary.LittleEndian.PutUint64(buf[:], u)
		h.Write(buf[:])
	}
	put(math.Float64bits(params.Contamination))
	put(uint64(params.Seed))
	put(uint64(len(matrix)))
	for _, row := range matrix {
		put(uint64(len(row)))
		for _, v := range row {
			put(math.Float64bits(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string)              {}
func (nopMetrics) RecordRows(int, int)           {}
func (nopMetrics) RecordFraction(float64)        {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordError(string)            {}
