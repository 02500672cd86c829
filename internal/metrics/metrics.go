// Package metrics provides a Redis-backed metrics collector. Services write
// a JSON snapshot of their counters to Redis on an interval for centralized
// access by dashboards.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// SnapshotTTL is how long metrics stay in Redis if not refreshed.
	SnapshotTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics.
	DefaultReportInterval = 30 * time.Second
)

// Snapshot is the JSON document written to Redis.
type Snapshot struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	ReportsReceived  uint64 `json:"reports_received"`
	ReportsProcessed uint64 `json:"reports_processed"`
	EventsPublished  uint64 `json:"events_published"`
	ProcessingErrors uint64 `json:"processing_errors"`

	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects counters for a service and periodically reports them.
// All record methods are safe for concurrent use.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	received  atomic.Uint64
	processed atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a new metrics collector for a service.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval overrides the reporting interval. Call before Start.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.write(context.Background()) // final write
				return
			case <-c.stopCh:
				c.write(context.Background()) // final write
				return
			case <-ticker.C:
				c.write(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting loop.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// RecordReceived increments the reports received counter.
func (c *Collector) RecordReceived() { c.received.Add(1) }

// RecordProcessed increments the processed counter and tracks latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.processed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordPublished increments the published counter.
func (c *Collector) RecordPublished() { c.published.Add(1) }

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() { c.errors.Add(1) }

// IncrementCustom increments a named counter.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *Snapshot {
	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &Snapshot{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            time.Now().UTC(),
		ReportsReceived:        c.received.Load(),
		ReportsProcessed:       c.processed.Load(),
		EventsPublished:        c.published.Load(),
		ProcessingErrors:       c.errors.Load(),
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         custom,
	}
}

func (c *Collector) write(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, SnapshotTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
	}
}
