package zset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/zKV/cmd/util"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the sorted-set store",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfMembers    = 1000
	perfSkip       = make([]string, 0)

	// latencies of the single operations, one timer per benchmark
	perfTimers = metrics.NewRegistry()
)

// benchmark is one test of the perf command.
// prepare fills the keys before the timer starts, op is called in parallel.
type benchmark struct {
	name    string
	prepare bool
	op      func(key string, i int) error
}

var benchmarks = []benchmark{
	{"add", false, func(key string, i int) error {
		_, err := zStore.Add(key, 0, []store.MemberScore{{Member: perfMember(i), Score: float64(i)}})
		return err
	}},
	{"incrby", true, func(key string, i int) error {
		_, err := zStore.IncrBy(key, perfMember(i), 1)
		return err
	}},
	{"score", true, func(key string, i int) error {
		_, err := zStore.Score(key, perfMember(i))
		return err
	}},
	{"rank", true, func(key string, i int) error {
		_, err := zStore.Rank(key, perfMember(i), false)
		return err
	}},
	{"range", true, func(key string, i int) error {
		_, err := zStore.Range(key, 0, 9, i%2 == 0)
		return err
	}},
	{"rangebyscore", true, func(key string, i int) error {
		spec := store.RangeSpec{Min: float64(i % perfMembers), Max: math.Inf(1), Count: 10}
		_, err := zStore.RangeByScore(key, spec)
		return err
	}},
	{"rem", true, func(key string, i int) error {
		_, err := zStore.Remove(key, []string{perfMember(i)})
		return err
	}},
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. add,rank)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different sorted sets to use for the tests"))
	key = "members"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many members each sorted set has"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfMembers = max(viper.GetInt("members"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the sorted-set store")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetConfig().String())
	fmt.Printf("Threads: %d, Keys: %d, Members: %d\n", perfNumThreads, perfKeySpread, perfMembers)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := testing.Benchmark(runBenchmark(bm))
		results[bm.name] = result
		printResult(bm.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// runBenchmark turns a benchmark into a function for testing.Benchmark
func runBenchmark(bm benchmark) func(b *testing.B) {
	return func(b *testing.B) {
		if shouldSkip(bm.name) {
			return
		}

		getKey, iter := getKeys(bm.name)

		if bm.prepare {
			iter(func(k string) {
				members := make([]store.MemberScore, perfMembers)
				for i := range members {
					members[i] = store.MemberScore{Member: perfMember(i), Score: float64(i)}
				}
				if _, err := zStore.Add(k, 0, members); err != nil {
					log.Errorf("(%s) - error preparing key: %v", bm.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := zStore.Delete(k); err != nil {
					log.Errorf("(%s) - error deleting key: %v", bm.name, err)
				}
			})
		})

		timer := metrics.GetOrRegisterTimer(bm.name, perfTimers)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := bm.op(getKey(counter), counter); err != nil {
					log.Errorf("(%s) - error: %v", bm.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

func perfMember(i int) string {
	return "member-" + strconv.Itoa(i%perfMembers)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// latencies returns the p50 and p99 latency of a benchmark
func latencies(test string) (p50, p99 time.Duration) {
	timer, ok := perfTimers.Get(test).(metrics.Timer)
	if !ok || timer.Count() == 0 {
		return 0, 0
	}
	ps := timer.Snapshot().Percentiles([]float64{0.5, 0.99})
	return time.Duration(ps[0]), time.Duration(ps[1])
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-15sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p50, p99 := latencies(test)

	fmt.Printf("%-15s%.0fns/op\t%.0f ops/sec\tp50 %s\tp99 %s\n", test, nsPerOp, opsPerSec, p50, p99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "P50", "P99", "Skipped",
		"Engine", "Sync", "Threads", "Keys", "Members",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	config := util.GetConfig()
	for _, bm := range benchmarks {
		result, ok := results[bm.name]
		if !ok {
			continue
		}

		var nsPerOp, opsPerSec float64
		skipped := result.NsPerOp() == 0
		if !skipped {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		p50, p99 := latencies(bm.name)

		row := []string{
			bm.name,
			fmt.Sprintf("%.0f", nsPerOp),
			fmt.Sprintf("%.0f", opsPerSec),
			p50.String(),
			p99.String(),
			strconv.FormatBool(skipped),
			string(config.Engine),
			strconv.FormatBool(config.SyncWrites),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfMembers),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", bm.name, err)
		}
	}
	return nil
}
