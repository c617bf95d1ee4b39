package profiler

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// StageTimer records how long individual pipeline stages take. The simulator
// calls Record once per dispatch.
type StageTimer interface {
	// Record adds one sample for a stage.
	Record(stage string, d time.Duration)
}

// StageProfiler collects per-stage dispatch durations and summarizes them
// with mean and quantile statistics. Safe for concurrent use.
type StageProfiler struct {
	mu      sync.Mutex
	order   []string
	samples map[string][]float64
}

var _ StageTimer = &StageProfiler{}

// NewStageProfiler creates an empty stage profiler.
func NewStageProfiler() *StageProfiler {
	return &StageProfiler{samples: make(map[string][]float64)}
}

// Record adds one sample for a stage, in the order stages first appear.
func (p *StageProfiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.samples[stage]; !ok {
		p.order = append(p.order, stage)
	}
	p.samples[stage] = append(p.samples[stage], float64(d.Microseconds()))
}

// Summary renders one line per stage with sample count, mean and the p50,
// p95 and p99 quantiles in microseconds.
func (p *StageProfiler) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	for _, stage := range p.order {
		samples := append([]float64(nil), p.samples[stage]...)
		sort.Float64s(samples)
		fmt.Fprintf(&b, "%-20s n=%-6d mean=%8.1fµs p50=%8.1fµs p95=%8.1fµs p99=%8.1fµs\n",
			stage,
			len(samples),
			stat.Mean(samples, nil),
			stat.Quantile(0.50, stat.Empirical, samples, nil),
			stat.Quantile(0.95, stat.Empirical, samples, nil),
			stat.Quantile(0.99, stat.Empirical, samples, nil),
		)
	}
	return b.String()
}

// LogSummary writes the summary to the log.
func (p *StageProfiler) LogSummary() {
	log.Printf("[Profiler] stage timings:\n%s", p.Summary())
}

// Reset discards all samples.
func (p *StageProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = nil
	p.samples = make(map[string][]float64)
}
