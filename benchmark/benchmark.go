// Package benchmark measures inference latency of a fuzzy engine.
package benchmark

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/fuzzy"
)

const (
	minLatency = 1
	maxLatency = int64(time.Second)
	sigFigs    = 3
)

// Summary condenses a latency histogram.
type Summary struct {
	Count int64
	Min   time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d min=%v p50=%v p90=%v p99=%v max=%v mean=%v",
		s.Count, s.Min, s.P50, s.P90, s.P99, s.Max, s.Mean)
}

func Summarize(hg *hdrhistogram.Histogram) Summary {
	return Summary{
		Count: hg.TotalCount(),
		Min:   time.Duration(hg.Min()),
		P50:   time.Duration(hg.ValueAtQuantile(50)),
		P90:   time.Duration(hg.ValueAtQuantile(90)),
		P99:   time.Duration(hg.ValueAtQuantile(99)),
		Max:   time.Duration(hg.Max()),
		Mean:  time.Duration(hg.Mean()),
	}
}

// Run evaluates eng numEvalPerWorker times on each of numWorkers goroutines,
// cycling through samples, and records the latency of every evaluation
// (inference plus defuzzification of all outputs) in nanoseconds.
func Run(log *zap.Logger, eng *fuzzy.Engine, samples []map[string]float64,
	numWorkers, numEvalPerWorker int) (*hdrhistogram.Histogram, error) {
	if log == nil {
		log = zaplog.Logger()
	}
	if numWorkers <= 0 || numEvalPerWorker <= 0 {
		return nil, fmt.Errorf("invalid benchmark size: %d workers, %d evaluations",
			numWorkers, numEvalPerWorker)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples")
	}
	var outputs []string
	for _, v := range eng.Outputs() {
		outputs = append(outputs, v.Name)
	}
	states := make([]*fuzzy.State, numWorkers)
	for i := range states {
		states[i] = eng.NewState()
	}
	for _, sample := range samples {
		for name, x := range sample {
			if err := states[0].SetInput(name, x); err != nil {
				return nil, err
			}
		}
	}

	var mu sync.Mutex
	total := hdrhistogram.New(minLatency, maxLatency, sigFigs)
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for _, st := range states {
		go func(st *fuzzy.State) {
			defer wg.Done()
			hg := hdrhistogram.New(minLatency, maxLatency, sigFigs)
			<-sg
			for j := 0; j < numEvalPerWorker; j++ {
				for name, x := range samples[j%len(samples)] {
					_ = st.SetInput(name, x)
				}
				t0 := time.Now()
				st.Evaluate()
				for _, name := range outputs {
					_, _ = st.Output(name)
				}
				d := time.Since(t0).Nanoseconds()
				if d < minLatency {
					d = minLatency
				} else if d > maxLatency {
					d = maxLatency
				}
				_ = hg.RecordValue(d)
			}
			mu.Lock()
			defer mu.Unlock()
			total.Merge(hg)
		}(st)
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	log.Info("benchmark finished",
		zap.Int("workers", numWorkers),
		zap.Int64("evaluations", total.TotalCount()),
		zap.Duration("elapsed", time.Since(t0)),
	)
	return total, nil
}

// Sweep returns a grid of input samples covering every input variable of eng
// from its smallest to its largest breakpoint in steps points. The grid holds
// steps^n samples for n inputs.
func Sweep(eng *fuzzy.Engine, steps int) []map[string]float64 {
	if steps < 2 {
		steps = 2
	}
	samples := []map[string]float64{{}}
	for _, v := range eng.Inputs() {
		if len(v.Sets) == 0 {
			continue
		}
		lo, hi := v.Min(), v.Max()
		var next []map[string]float64
		for _, s := range samples {
			for j := 0; j < steps; j++ {
				m := make(map[string]float64, len(s)+1)
				for k, x := range s {
					m[k] = x
				}
				m[v.Name] = lo + (hi-lo)*float64(j)/float64(steps-1)
				next = append(next, m)
			}
		}
		samples = next
	}
	return samples
}
