package models

import "time"

// Evaluation holds ground-truth metrics with label 1 as the positive class.
type Evaluation struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
}

// MetricsSummary is computed once per run.
type MetricsSummary struct {
	TotalRows     int         `json:"total_rows"`
	Anomalies     int         `json:"anomalies"`
	Fraction      float64     `json:"anomaly_fraction"`
	Contamination float64     `json:"contamination"`
	Evaluation    *Evaluation `json:"evaluation,omitempty"`
}

// Artifacts lists the files written by a run. Chart is empty when rendering was skipped.
type Artifacts struct {
	AnomalyReport string `json:"anomaly_report"`
	Chart         string `json:"chart,omitempty"`
	Metrics       string `json:"metrics"`
	Labeled       string `json:"labeled,omitempty"`
}

// Result is the bundle a pipeline run hands back to its caller.
type Result struct {
	RunID        string         `json:"run_id"`
	Source       string         `json:"source"`
	Algorithm    string         `json:"algorithm"`
	Features     []string       `json:"features"`
	Table        *Table         `json:"-"`
	Summary      MetricsSummary `json:"summary"`
	MetricsText  string         `json:"metrics_text"`
	Artifacts    Artifacts      `json:"artifacts"`
	HasAnomalies bool           `json:"has_anomalies"`
	Cached       bool           `json:"cached"`
	Duration     time.Duration  `json:"duration"`
}

// RunEvent is published after a run completes.
type RunEvent struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source"`
	Algorithm     string    `json:"algorithm"`
	Features      []string  `json:"features"`
	TotalRows     int       `json:"total_rows"`
	Anomalies     int       `json:"anomalies"`
	Fraction      float64   `json:"anomaly_fraction"`
	Contamination float64   `json:"contamination"`
	FinishedAt    time.Time `json:"finished_at"`
}

// AnomalyRecord is one flagged row as persisted to an analytic store.
type AnomalyRecord struct {
	RunID    string
	Source   string
	RowIndex int
	Date     time.Time
	Close    float64
	Volume   float64
	Row      map[string]string
}
