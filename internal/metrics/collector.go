// Package metrics provides in-memory ingestion statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// StageMetrics holds aggregated timings for a single pipeline stage.
type StageMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// StageSnapshot provides computed stats from raw metrics.
type StageSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents ingestion statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Read          *StageSnapshot
	Decode        *StageSnapshot
	Parse         *StageSnapshot
	Cast          *StageSnapshot
	Build         *StageSnapshot

	RunsSucceeded int64
	RunsFailed    int64
	RowsIngested  int64
	BytesRead     int64
}

// Stage names for the collector.
const (
	StageRead   = "read"
	StageDecode = "decode"
	StageParse  = "parse"
	StageCast   = "cast"
	StageBuild  = "build"
)

// Collector aggregates in-memory ingestion statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	stages    map[string]*StageMetrics

	succeeded int64
	failed    int64
	rows      int64
	bytes     int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		stages:    make(map[string]*StageMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for a stage.
// Caller must hold write lock.
func (c *Collector) getOrCreate(stage string) *StageMetrics {
	m, ok := c.stages[stage]
	if !ok {
		m = &StageMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.stages[stage] = m
	}
	return m
}

// RecordTiming records the duration of one stage execution.
func (c *Collector) RecordTiming(stage string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(stage)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Time starts timing a stage; call the returned func when it ends.
func (c *Collector) Time(stage string) func() {
	start := time.Now()
	return func() { c.RecordTiming(stage, time.Since(start)) }
}

// RecordRun records the outcome of one ingestion.
func (c *Collector) RecordRun(ok bool, bytesRead, rows int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.succeeded++
		c.rows += rows
	} else {
		c.failed++
	}
	c.bytes += bytesRead
}

// snapshotStage creates a snapshot for a stage, returning nil if no data.
func snapshotStage(m *StageMetrics) *StageSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &StageSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Read:          snapshotStage(c.stages[StageRead]),
		Decode:        snapshotStage(c.stages[StageDecode]),
		Parse:         snapshotStage(c.stages[StageParse]),
		Cast:          snapshotStage(c.stages[StageCast]),
		Build:         snapshotStage(c.stages[StageBuild]),
		RunsSucceeded: c.succeeded,
		RunsFailed:    c.failed,
		RowsIngested:  c.rows,
		BytesRead:     c.bytes,
	}
}
