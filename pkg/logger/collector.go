package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated error logs somewhere durable.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, default 30s
	CountThreshold int           // unique entries that force a flush, default 100
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry counts repeats of the same error line between flushes.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs and publishes them in batches.
type LogCollector struct {
	config  CollectionConfig
	entries map[string]*AggregatedLogEntry
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config:  cfg,
		entries: make(map[string]*AggregatedLogEntry),
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.loop(ctx)

	return c
}

// AddLog records one occurrence of an error line.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []AggregatedLogEntry
	if len(c.entries) >= c.config.CountThreshold {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.publish(batch)
		}()
	}
}

// Pending reports how many distinct entries are waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *LogCollector) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-ctx.Done():
			c.Flush()
			return
		}
	}
}

// Flush publishes everything collected so far.
func (c *LogCollector) Flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	c.publish(batch)
}

func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	c.entries = make(map[string]*AggregatedLogEntry)
	return out
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "failed to publish aggregated logs: %v\n", err)
	}
}

// Close stops the flush loop after a final flush.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}
