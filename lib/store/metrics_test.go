package store

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/fbkv/lib/codec"
)

// exportedSeries counts the exported lines of metric that belong to store.
func exportedSeries(metric, store string) int {
	var buf bytes.Buffer
	vm.WritePrometheus(&buf, false)
	label := fmt.Sprintf("store=%q", store)
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, metric+"{") && strings.Contains(line, label) {
			n++
		}
	}
	return n
}

func TestMetricsUnregisteredOnClose(t *testing.T) {
	const containers = 20

	paths := make([]string, 0, containers)
	dicts := make([]*Dict[int], 0, containers)
	for i := 0; i < containers; i++ {
		d, err := NewDict[int](codec.NewIntCodec(), nil)
		if err != nil {
			t.Fatalf("NewDict failed: %v", err)
		}
		_ = d.Set("a", i)
		_, _ = d.Get("a")
		paths = append(paths, d.Conn().Path())
		dicts = append(dicts, d)
	}

	for _, path := range paths {
		if n := exportedSeries("fbkv_cache_hits_total", path); n != 1 {
			t.Fatalf("Expected one hits series for %s while open, got %d", path, n)
		}
	}

	for _, d := range dicts {
		if err := d.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	for _, path := range paths {
		for _, metric := range []string{"fbkv_cache_hits_total", "fbkv_cache_misses_total", "fbkv_cache_evicted_total", "fbkv_rows_written_total"} {
			if n := exportedSeries(metric, path); n != 0 {
				t.Errorf("Expected %s of %s to be unregistered, got %d series", metric, path, n)
			}
		}
	}
}

func TestStatsCountCacheActivity(t *testing.T) {
	d := newTestDict(t, codec.NewIntCodec(), func(opts *Options[int]) {
		opts.CacheMaxSize, opts.EvictionBatchSize = 2, 1
	})
	for i := 0; i < 3; i++ {
		_ = d.Set(fmt.Sprintf("k%d", i), i)
	}
	_, _ = d.Get("k2") // hit
	_, _ = d.Get("k0") // miss, evicted before
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := d.GetInfo().Stats
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", stats.Hits, stats.Misses)
	}
	if stats.Evicted == 0 || stats.WrittenBack == 0 {
		t.Errorf("Expected evictions and write backs, got %+v", stats)
	}
	if stats.Flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", stats.Flushes)
	}
}
