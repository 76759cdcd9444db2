package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON payloads to Kafka topics.
type Producer struct {
	writer  messageWriter
	comp    string
	metrics *producerMetrics
}

// Message is one record of a batch publish.
type Message struct {
	Key   []byte
	Value interface{}
}

// NewProducer creates a producer backed by a kafka.Writer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	return newProducer(w, cfg), nil
}

func newProducer(w messageWriter, cfg *ProducerConfig) *Producer {
	return &Producer{
		writer:  w,
		comp:    cfg.Compression,
		metrics: newProducerMetrics(cfg.Registerer),
	}
}

// Publish sends one message. Values other than []byte and string are JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage sends an unkeyed message.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch sends messages to topic in a single write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	msgs := make([]kafka.Message, 0, len(messages))
	var total int64
	for _, m := range messages {
		v, err := encode(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now})
		total += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observe(topic, p.comp, total, len(msgs), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	errs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// newProducerMetrics registers on reg; a nil reg disables producer metrics.
func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &producerMetrics{
		msgs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finscan_kafka_producer_messages_total",
			Help: "Total messages published to Kafka",
		}, []string{"topic", "compression", "result"}),
		errs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finscan_kafka_producer_errors_total",
			Help: "Total producer errors",
		}, []string{"topic"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finscan_kafka_producer_bytes_total",
			Help: "Total payload bytes published",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finscan_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		m.errs.WithLabelValues(topic).Inc()
	}
	m.msgs.WithLabelValues(topic, comp, result).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
