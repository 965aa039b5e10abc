package store

import (
	"fmt"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// CacheStats are the counters of one container since it was opened.
type CacheStats struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evicted     int64         `json:"evicted"`
	WrittenBack int64         `json:"written_back"`
	Flushes     int64         `json:"flushes"`
	FlushMean   time.Duration `json:"flush_mean"`
}

// collectionMetrics records cache activity twice: in a registry private to
// the container (read back by GetInfo) and in the process wide
// VictoriaMetrics set, labeled by store and table, for Prometheus export.
// Both are dropped when the container closes.
type collectionMetrics struct {
	registry gometrics.Registry
	vmNames  []string

	hits        gometrics.Counter
	misses      gometrics.Counter
	evicted     gometrics.Counter
	writtenBack gometrics.Counter
	flushTimer  gometrics.Timer

	vmHits        *vm.Counter
	vmMisses      *vm.Counter
	vmEvicted     *vm.Counter
	vmWrittenBack *vm.Counter
}

func newCollectionMetrics(store, table string) *collectionMetrics {
	r := gometrics.NewRegistry()
	var names []string
	name := func(metric string) string {
		n := fmt.Sprintf(`fbkv_%s_total{store=%q,table=%q}`, metric, store, table)
		names = append(names, n)
		return n
	}
	m := &collectionMetrics{
		registry:      r,
		hits:          gometrics.NewRegisteredCounter("cache.hits", r),
		misses:        gometrics.NewRegisteredCounter("cache.misses", r),
		evicted:       gometrics.NewRegisteredCounter("cache.evicted", r),
		writtenBack:   gometrics.NewRegisteredCounter("cache.written_back", r),
		flushTimer:    gometrics.NewRegisteredTimer("cache.flush", r),
		vmHits:        vm.GetOrCreateCounter(name("cache_hits")),
		vmMisses:      vm.GetOrCreateCounter(name("cache_misses")),
		vmEvicted:     vm.GetOrCreateCounter(name("cache_evicted")),
		vmWrittenBack: vm.GetOrCreateCounter(name("rows_written")),
	}
	m.vmNames = names
	return m
}

func (m *collectionMetrics) hit() {
	m.hits.Inc(1)
	m.vmHits.Inc()
}

func (m *collectionMetrics) miss() {
	m.misses.Inc(1)
	m.vmMisses.Inc()
}

func (m *collectionMetrics) evict(n int) {
	m.evicted.Inc(int64(n))
	m.vmEvicted.Add(n)
}

func (m *collectionMetrics) written(n int) {
	m.writtenBack.Inc(int64(n))
	m.vmWrittenBack.Add(n)
}

func (m *collectionMetrics) flushed(start time.Time) {
	m.flushTimer.UpdateSince(start)
}

func (m *collectionMetrics) stats() CacheStats {
	return CacheStats{
		Hits:        m.hits.Count(),
		Misses:      m.misses.Count(),
		Evicted:     m.evicted.Count(),
		WrittenBack: m.writtenBack.Count(),
		Flushes:     m.flushTimer.Count(),
		FlushMean:   time.Duration(m.flushTimer.Mean()),
	}
}

// unregister drops the private registry and the exported series of a
// closed container.
func (m *collectionMetrics) unregister() {
	m.registry.UnregisterAll()
	for _, name := range m.vmNames {
		vm.UnregisterMetric(name)
	}
}
