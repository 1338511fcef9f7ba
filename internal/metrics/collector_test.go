package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.compileMetrics == nil {
		t.Fatal("compileMetrics not initialized")
	}

	metrics := collector.GetMetrics()
	if metrics.TemplatesCompiled != 0 {
		t.Errorf("Expected 0 templates compiled, got %d", metrics.TemplatesCompiled)
	}
	if metrics.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestRecordCompile(t *testing.T) {
	collector := NewCollector()

	collector.RecordCompile(10, 3, 2, 0, 512, 5*time.Millisecond)
	collector.RecordCompile(4, 2, 1, 1, 256, 20*time.Millisecond)
	collector.RecordCompile(1, 1, 1, 0, 128, time.Millisecond)

	metrics := collector.GetMetrics()
	if metrics.TemplatesCompiled != 3 {
		t.Errorf("Expected 3 templates compiled, got %d", metrics.TemplatesCompiled)
	}
	if metrics.NodesVisited != 15 {
		t.Errorf("Expected 15 nodes visited, got %d", metrics.NodesVisited)
	}
	if metrics.Constructors != 6 {
		t.Errorf("Expected 6 constructors, got %d", metrics.Constructors)
	}
	if metrics.Blocks != 4 {
		t.Errorf("Expected 4 blocks, got %d", metrics.Blocks)
	}
	if metrics.Sentinels != 1 {
		t.Errorf("Expected 1 sentinel, got %d", metrics.Sentinels)
	}
	if metrics.BytesWritten != 896 {
		t.Errorf("Expected 896 bytes written, got %d", metrics.BytesWritten)
	}
	if metrics.MaxCompileTime != 20*time.Millisecond {
		t.Errorf("Expected max compile time 20ms, got %v", metrics.MaxCompileTime)
	}
}

func TestErrorsAndSkips(t *testing.T) {
	collector := NewCollector()

	collector.RecordCompile(1, 1, 1, 0, 10, time.Millisecond)
	collector.IncrementSkipped()
	collector.IncrementError("child.html")
	collector.IncrementError("child.html")
	collector.IncrementError("other.html")

	metrics := collector.GetMetrics()
	if metrics.TemplatesSkipped != 1 {
		t.Errorf("Expected 1 skipped template, got %d", metrics.TemplatesSkipped)
	}
	if metrics.CompileErrors != 3 {
		t.Errorf("Expected 3 compile errors, got %d", metrics.CompileErrors)
	}

	errs := collector.GetTemplateErrors()
	if errs["child.html"] != 2 || errs["other.html"] != 1 {
		t.Errorf("Unexpected per-template errors: %v", errs)
	}

	if rate := collector.GetErrorRate(); rate != 75.0 {
		t.Errorf("Expected error rate 75%%, got %f", rate)
	}
}

func TestRates(t *testing.T) {
	collector := NewCollector()

	if rate := collector.GetErrorRate(); rate != 0.0 {
		t.Errorf("Expected error rate 0 with no activity, got %f", rate)
	}
	if rate := collector.GetSentinelRate(); rate != 0.0 {
		t.Errorf("Expected sentinel rate 0 with no activity, got %f", rate)
	}

	collector.RecordCompile(1, 1, 1, 3, 10, time.Millisecond)
	collector.RecordCompile(1, 1, 1, 1, 10, time.Millisecond)

	if rate := collector.GetSentinelRate(); rate != 2.0 {
		t.Errorf("Expected sentinel rate 2.0, got %f", rate)
	}
}

func TestReset(t *testing.T) {
	collector := NewCollector()

	collector.RecordCompile(5, 2, 1, 1, 100, time.Second)
	collector.IncrementSkipped()
	collector.IncrementError("x.html")

	collector.Reset()

	metrics := collector.GetMetrics()
	if metrics.TemplatesCompiled != 0 || metrics.TemplatesSkipped != 0 || metrics.CompileErrors != 0 {
		t.Errorf("Expected counters reset, got %+v", metrics)
	}
	if metrics.MaxCompileTime != 0 {
		t.Errorf("Expected max compile time reset, got %v", metrics.MaxCompileTime)
	}
	if len(collector.GetTemplateErrors()) != 0 {
		t.Error("Expected per-template errors reset")
	}
}

func TestConcurrentRecording(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordCompile(2, 1, 1, 0, 10, time.Millisecond)
			collector.IncrementError("shared.html")
		}()
	}
	wg.Wait()

	metrics := collector.GetMetrics()
	if metrics.TemplatesCompiled != 50 {
		t.Errorf("Expected 50 templates compiled, got %d", metrics.TemplatesCompiled)
	}
	if collector.GetTemplateErrors()["shared.html"] != 50 {
		t.Errorf("Expected 50 errors for shared.html, got %d", collector.GetTemplateErrors()["shared.html"])
	}
}

func TestMetricsJSON(t *testing.T) {
	collector := NewCollector()
	collector.RecordCompile(3, 2, 1, 0, 64, time.Millisecond)

	data, err := json.Marshal(collector.GetMetrics())
	if err != nil {
		t.Fatalf("Failed to marshal metrics: %v", err)
	}

	for _, key := range []string{"templates_compiled", "nodes_visited", "sentinels", "max_compile_time"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected JSON to contain %q, got %s", key, data)
		}
	}
}
