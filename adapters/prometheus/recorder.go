package prometheus

import (
	"context"
	"sort"
	"strings"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-webhooks/core"
)

// Recorder exposes core.MetricsRecorder on a Prometheus registry.
// Vectors are created lazily on first use; the label set observed for a
// metric name is fixed from then on, later calls drop unknown tags and
// fill missing ones with an empty value.
type Recorder struct {
	registerer prom.Registerer

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec    *prom.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prom.HistogramVec
	labels []string
}

func NewRecorder(registerer prom.Registerer) *Recorder {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	return &Recorder{
		registerer: registerer,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	entry, err := r.counterFor(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry, err := r.histogramFor(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Observe(value)
}

func (r *Recorder) counterFor(name string, tags map[string]string) (*counterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sanitizeName(name)
	if entry, ok := r.counters[key]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prom.NewCounterVec(prom.CounterOpts{Name: key}, labels)
	if err := r.registerer.Register(vec); err != nil {
		if already, ok := err.(prom.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prom.CounterVec); ok {
				vec = existing
			} else {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[key] = entry
	return entry, nil
}

func (r *Recorder) histogramFor(name string, tags map[string]string) (*histogramEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sanitizeName(name)
	if entry, ok := r.histograms[key]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    key,
		Buckets: prom.DefBuckets,
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		if already, ok := err.(prom.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prom.HistogramVec); ok {
				vec = existing
			} else {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[key] = entry
	return entry, nil
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, sanitizeName(name))
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) prom.Labels {
	values := make(prom.Labels, len(names))
	for _, name := range names {
		values[name] = ""
	}
	for key, value := range tags {
		key = sanitizeName(key)
		if _, ok := values[key]; ok {
			values[key] = value
		}
	}
	return values
}

// sanitizeName maps recorder metric names like webhooks.delivery.total
// onto the Prometheus naming charset.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
