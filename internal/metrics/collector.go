package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts compiler activity. It is safe for concurrent use.
type Collector struct {
	compileMetrics *CompileMetrics
	templateErrors map[string]*int64
	mu             sync.RWMutex
	startTime      time.Time
}

// CompileMetrics is a snapshot of the collector's counters
type CompileMetrics struct {
	// Templates
	TemplatesCompiled int64 `json:"templates_compiled"`
	TemplatesSkipped  int64 `json:"templates_skipped"`
	CompileErrors     int64 `json:"compile_errors"`

	// Generated code
	NodesVisited int64 `json:"nodes_visited"`
	Constructors int64 `json:"constructors"`
	Blocks       int64 `json:"blocks"`
	Sentinels    int64 `json:"sentinels"`
	BytesWritten int64 `json:"bytes_written"`

	// Slowest single compilation
	MaxCompileTime time.Duration `json:"max_compile_time"`

	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		compileMetrics: &CompileMetrics{
			StartTime: now,
		},
		templateErrors: make(map[string]*int64),
		startTime:      now,
	}
}

// RecordCompile records one successful compilation
func (c *Collector) RecordCompile(nodes, constructors, blocks, sentinels, bytes int, took time.Duration) {
	m := c.compileMetrics
	atomic.AddInt64(&m.TemplatesCompiled, 1)
	atomic.AddInt64(&m.NodesVisited, int64(nodes))
	atomic.AddInt64(&m.Constructors, int64(constructors))
	atomic.AddInt64(&m.Blocks, int64(blocks))
	atomic.AddInt64(&m.Sentinels, int64(sentinels))
	atomic.AddInt64(&m.BytesWritten, int64(bytes))

	for {
		max := atomic.LoadInt64((*int64)(&m.MaxCompileTime))
		if int64(took) <= max {
			break
		}
		if atomic.CompareAndSwapInt64((*int64)(&m.MaxCompileTime), max, int64(took)) {
			break
		}
	}
}

// IncrementSkipped records a template left alone because its output was
// up to date
func (c *Collector) IncrementSkipped() {
	atomic.AddInt64(&c.compileMetrics.TemplatesSkipped, 1)
}

// IncrementError records a failed compilation of the named template
func (c *Collector) IncrementError(template string) {
	atomic.AddInt64(&c.compileMetrics.CompileErrors, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.templateErrors[template]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.templateErrors[template] = &newCounter
	}
}

// GetMetrics returns the current counters
func (c *Collector) GetMetrics() CompileMetrics {
	m := c.compileMetrics
	return CompileMetrics{
		TemplatesCompiled: atomic.LoadInt64(&m.TemplatesCompiled),
		TemplatesSkipped:  atomic.LoadInt64(&m.TemplatesSkipped),
		CompileErrors:     atomic.LoadInt64(&m.CompileErrors),
		NodesVisited:      atomic.LoadInt64(&m.NodesVisited),
		Constructors:      atomic.LoadInt64(&m.Constructors),
		Blocks:            atomic.LoadInt64(&m.Blocks),
		Sentinels:         atomic.LoadInt64(&m.Sentinels),
		BytesWritten:      atomic.LoadInt64(&m.BytesWritten),
		MaxCompileTime:    time.Duration(atomic.LoadInt64((*int64)(&m.MaxCompileTime))),
		StartTime:         m.StartTime,
		Uptime:            time.Since(c.startTime),
	}
}

// GetTemplateErrors returns failure counts per template name
func (c *Collector) GetTemplateErrors() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.templateErrors {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// GetErrorRate returns the percentage of attempted compilations that failed
func (c *Collector) GetErrorRate() float64 {
	compiled := atomic.LoadInt64(&c.compileMetrics.TemplatesCompiled)
	errors := atomic.LoadInt64(&c.compileMetrics.CompileErrors)

	if compiled+errors == 0 {
		return 0.0
	}
	return float64(errors) / float64(compiled+errors) * 100.0
}

// GetSentinelRate returns sentinels per compiled template
func (c *Collector) GetSentinelRate() float64 {
	compiled := atomic.LoadInt64(&c.compileMetrics.TemplatesCompiled)
	if compiled == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&c.compileMetrics.Sentinels)) / float64(compiled)
}

// Reset zeroes every counter
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.compileMetrics
	atomic.StoreInt64(&m.TemplatesCompiled, 0)
	atomic.StoreInt64(&m.TemplatesSkipped, 0)
	atomic.StoreInt64(&m.CompileErrors, 0)
	atomic.StoreInt64(&m.NodesVisited, 0)
	atomic.StoreInt64(&m.Constructors, 0)
	atomic.StoreInt64(&m.Blocks, 0)
	atomic.StoreInt64(&m.Sentinels, 0)
	atomic.StoreInt64(&m.BytesWritten, 0)
	atomic.StoreInt64((*int64)(&m.MaxCompileTime), 0)

	c.templateErrors = make(map[string]*int64)

	c.startTime = time.Now()
	m.StartTime = c.startTime
}
