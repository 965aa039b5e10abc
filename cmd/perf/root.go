package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/fbkv/cmd/util"
	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/ValentinKolb/fbkv/lib/db"
	dbUtil "github.com/ValentinKolb/fbkv/lib/db/util"
	"github.com/ValentinKolb/fbkv/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// record is the value written by the benchmarks
type record struct {
	N       int    `json:"n"`
	Group   string `json:"group"`
	Payload string `json:"payload"`
}

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for file-backed dicts",
		Long: `Runs ingestion style benchmarks against a Dict: sequential inserts, hot and cold reads, flushes,
iteration and aggregation queries. Every benchmark runs --rounds times, the summary reports mean,
standard deviation, minimum and maximum of the ns/op of all rounds.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfRounds    = 3
	perfKeySpread = 10_000
	perfValueSize = 100
	perfSkip      = make([]string, 0)
)

func init() {
	util.SetupStoreFlags(PerfCmd)

	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get-cold)"))
	key = "rounds"
	PerfCmd.Flags().Int(key, 3, util.WrapString("How often every benchmark is repeated"))
	key = "keys"
	PerfCmd.Flags().Int(key, 10_000, util.WrapString("How many different keys to use for the tests"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 100, util.WrapString("Size of the payload of every value (in bytes)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save the cache metrics in Prometheus text format"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfRounds = max(1, viper.GetInt("rounds"))
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfValueSize = max(0, viper.GetInt("value-size"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is one named benchmark body working on the shared dict
type benchmark struct {
	name string
	fn   func(b *testing.B, d *store.Dict[record])
}

func run(_ *cobra.Command, _ []string) error {
	config, err := util.GetStoreConfig()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for file-backed dicts")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Rounds: %d, Keys: %d, Value size: %d bytes\n", perfRounds, perfKeySpread, perfValueSize)
	fmt.Println()

	c, err := recordCodec(config.Codec)
	if err != nil {
		return err
	}
	opts := store.FromConfig[record](config, nil)
	opts.ExtraColumns = []store.ExtraColumn[record]{
		{Name: "n", Affinity: db.AffinityINTEGER, Extract: func(r record) any { return r.N }},
		{Name: "grp", Affinity: db.AffinityTEXT, Extract: func(r record) any { return r.Group }},
	}
	d, err := store.NewDict(c, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Println("starting tests...")
	results := make(map[string][]testing.BenchmarkResult)
	for _, bm := range benchmarks() {
		for round := 0; round < perfRounds; round++ {
			if shouldSkip(bm.name) {
				break
			}
			result := testing.Benchmark(func(b *testing.B) { bm.fn(b, d) })
			results[bm.name] = append(results[bm.name], result)
		}
		printResult(bm.name, results[bm.name])
	}

	info := d.GetInfo()
	fmt.Printf("\nTable %s: %d rows, %d cached (%d dirty), ~%d bytes\n",
		info.Table.Name, info.Length, info.Cached, info.Dirty, info.Table.SizeBytes)
	fmt.Printf("Cache: %d hits, %d misses, %d evicted, %d rows written, %d flushes (mean %s)\n",
		info.Stats.Hits, info.Stats.Misses, info.Stats.Evicted, info.Stats.WrittenBack, info.Stats.Flushes, info.Stats.FlushMean)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if metricsPath := viper.GetString("metrics"); metricsPath != "" {
		if err := writeMetrics(metricsPath); err != nil {
			return fmt.Errorf("failed to export metrics: %v", err)
		}
		fmt.Printf("Metrics written to %s\n", metricsPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func benchmarks() []benchmark {
	payload := strings.Repeat("x", perfValueSize)
	newRecord := func(i int) record {
		return record{N: i, Group: "g" + strconv.Itoa(i%16), Payload: payload}
	}
	key := func(i int) string {
		return "key-" + strconv.Itoa(i%perfKeySpread)
	}
	mustSet := func(b *testing.B, d *store.Dict[record], i int) {
		if err := d.Set(key(i), newRecord(i)); err != nil {
			b.Fatalf("set %s: %v", key(i), err)
		}
	}

	return []benchmark{
		{"set", func(b *testing.B, d *store.Dict[record]) {
			for i := 0; i < b.N; i++ {
				mustSet(b, d, i)
			}
		}},
		{"flush", func(b *testing.B, d *store.Dict[record]) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				mustSet(b, d, i)
				b.StartTimer()
				if err := d.Flush(); err != nil {
					b.Fatalf("flush: %v", err)
				}
			}
		}},
		{"get-hot", func(b *testing.B, d *store.Dict[record]) {
			hot := max(1, min(perfKeySpread, d.GetInfo().CacheMaxSize/2))
			for i := 0; i < hot; i++ {
				mustSet(b, d, i)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.Get(key(i % hot)); err != nil {
					b.Fatalf("get: %v", err)
				}
			}
		}},
		{"get-cold", func(b *testing.B, d *store.Dict[record]) {
			for i := 0; i < perfKeySpread; i++ {
				mustSet(b, d, i)
			}
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.Get(key(rng.IntN(perfKeySpread))); err != nil {
					b.Fatalf("get: %v", err)
				}
			}
		}},
		{"iterate", func(b *testing.B, d *store.Dict[record]) {
			for i := 0; i < b.N; i++ {
				if err := d.Range(func(string) bool { return true }); err != nil {
					b.Fatalf("range: %v", err)
				}
			}
		}},
		{"group-by", func(b *testing.B, d *store.Dict[record]) {
			query := fmt.Sprintf("SELECT grp, count(*), sum(n) FROM %s GROUP BY grp", d.TableName())
			for i := 0; i < b.N; i++ {
				if _, err := d.SQLQuery(query, nil); err != nil {
					b.Fatalf("query: %v", err)
				}
			}
		}},
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func recordCodec(name string) (codec.Codec[record], error) {
	switch name {
	case "json":
		return codec.NewJSONCodec[record](), nil
	case "gob":
		return codec.NewGOBCodec[record](), nil
	default:
		return nil, fmt.Errorf("codec %s cannot store benchmark records (json, gob)", name)
	}
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// summarize reduces the ns/op of all rounds to sample statistics
func summarize(results []testing.BenchmarkResult) dbUtil.Stats {
	samples := make([]float64, 0, len(results))
	for _, r := range results {
		samples = append(samples, math.Max(float64(r.NsPerOp()), 1))
	}
	return dbUtil.NewStats(samples)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, results []testing.BenchmarkResult) {
	if len(results) == 0 {
		fmt.Printf("%-12sskipped\n", test)
		return
	}

	stats := summarize(results)
	opsPerSec := 1.0 / (stats.Mean / 1e9)
	fmt.Printf("%-12s%s/op ±%s (min %s, max %s)\t%.0f ops/sec\n", test,
		time.Duration(stats.Mean), time.Duration(stats.StdDeviation),
		time.Duration(stats.Min), time.Duration(stats.Max), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string][]testing.BenchmarkResult, config *common.StoreConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Rounds", "MeanNsPerOp", "StdDevNsPerOp", "MinNsPerOp", "MaxNsPerOp", "OpsPerSec",
		"Codec", "CacheMaxSize", "EvictionBatchSize", "WriteBackOnRead", "Keys", "ValueSizeBytes",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, rounds := range results {
		stats := summarize(rounds)
		row := []string{
			test,
			strconv.Itoa(stats.Count),
			fmt.Sprintf("%.0f", stats.Mean),
			fmt.Sprintf("%.0f", stats.StdDeviation),
			fmt.Sprintf("%.0f", stats.Min),
			fmt.Sprintf("%.0f", stats.Max),
			fmt.Sprintf("%.0f", 1.0/(stats.Mean/1e9)),
			config.Codec,
			strconv.Itoa(config.CacheMaxSize),
			strconv.Itoa(config.EvictionBatchSize),
			strconv.FormatBool(config.WriteBackOnRead),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfValueSize),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

// writeMetrics dumps the process wide cache counters in Prometheus text format
func writeMetrics(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	vm.WritePrometheus(file, false)
	return nil
}
