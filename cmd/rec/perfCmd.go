package rec

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dRec/cmd/util"
	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dRec servers",
		Long:    "Runs select, update, insert and delete benchmarks against a running server. Mutations are fire-and-forget, so the numbers measure how fast the server accepts commands.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfIDSpread   = 100
	perfSkip       = make([]string, 0)
)

// perfResult is the outcome of one benchmark
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors gometrics.Counter
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,mixed)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "ids"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different ids to use for the select, update and delete tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfIDSpread = viper.GetInt("ids")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfIDSpread < 1 {
		return fmt.Errorf("ids must be at least 1, got %d", perfIDSpread)
	}
	if perfNumThreads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", perfNumThreads)
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("Performance testing tool for dRec servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// ids 1..perfIDSpread, the server may or may not know them
	getID := func(i int) string {
		return strconv.Itoa(i%perfIDSpread + 1)
	}
	sample := record.Record{
		Title:       "perf",
		Director:    "perf",
		ReleaseYear: "2000",
		Description: "benchmark record",
		GenreID:     "1",
	}

	tests := []struct {
		name string
		op   func(i int) error
	}{
		{"select", func(i int) error {
			_, _, err := rpcClient.Select(ctx, getID(i))
			return err
		}},
		{"select-miss", func(i int) error {
			_, _, err := rpcClient.Select(ctx, "perf-missing-"+strconv.Itoa(i))
			return err
		}},
		{"insert", func(int) error {
			return rpcClient.Insert(ctx, sample)
		}},
		{"update", func(i int) error {
			rec := sample
			rec.ID = getID(i)
			return rpcClient.Update(ctx, rec)
		}},
		{"delete", func(i int) error {
			// ids above the spread are never used by the other tests
			return rpcClient.Delete(ctx, strconv.Itoa(perfIDSpread+i+1))
		}},
		{"mixed", func(i int) error {
			var err error
			switch i % 4 {
			case 0:
				_, _, err = rpcClient.Select(ctx, getID(i))
			case 1:
				err = rpcClient.Insert(ctx, sample)
			case 2:
				rec := sample
				rec.ID = getID(i)
				err = rpcClient.Update(ctx, rec)
			case 3:
				err = rpcClient.Delete(ctx, strconv.Itoa(perfIDSpread+i+1))
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]perfResult)
	order := make([]string, 0, len(tests))

	for _, test := range tests {
		res := perfResult{
			timer:  gometrics.NewTimer(),
			errors: gometrics.NewCounter(),
		}
		name, op := test.name, test.op

		res.bench = testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					if err := op(counter); err != nil {
						res.errors.Inc(1)
						log.Printf("(%s) - error: %v\n", name, err)
					}
					res.timer.UpdateSince(start)
					counter++
				}
			})
		})

		results[name] = res
		order = append(order, name)
		printResult(name, res)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, res perfResult) {
	if res.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p99 := time.Duration(res.timer.Percentile(0.99))

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp99 %s\t%d errors\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, p99, res.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Count", "MeanNs", "P50Ns", "P99Ns", "Errors",
		"Endpoint", "TimeoutSec", "Transport",
		"Threads", "IDs",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		res := results[test]

		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if res.bench.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(res.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.FormatInt(res.timer.Count(), 10),
			fmt.Sprintf("%.0f", res.timer.Mean()),
			fmt.Sprintf("%.0f", res.timer.Percentile(0.5)),
			fmt.Sprintf("%.0f", res.timer.Percentile(0.99)),
			strconv.FormatInt(res.errors.Count(), 10),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfIDSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
