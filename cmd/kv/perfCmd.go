package kv

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/client"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for RESP servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOpsPerThread     = 1000
	perfBatchSize        = 10
	perfSkip             = make([]string, 0)
)

// perfTest is one benchmark, op is called once per measured operation
type perfTest struct {
	name string
	// setup runs once before the workers start
	setup func(c *client.Client, keys []string) error
	op    func(c *client.Client, key string, i int) error
}

var perfTests = []perfTest{
	{
		name: "set",
		op: func(c *client.Client, key string, _ int) error {
			return c.Set(key, []byte("test"))
		},
	},
	{
		name: "set-large",
		op: func(c *client.Client, key string, _ int) error {
			return c.Set(key, make([]byte, perfLargeValueSizeKB*1024))
		},
	},
	{
		name:  "get",
		setup: setKeys,
		op: func(c *client.Client, key string, _ int) error {
			_, _, err := c.Get(key)
			return err
		},
	},
	{
		name: "incr",
		op: func(c *client.Client, key string, _ int) error {
			_, err := c.Incr(key)
			return err
		},
	},
	{
		name: "mixed",
		op: func(c *client.Client, key string, i int) error {
			var err error
			switch i % 4 {
			case 0:
				err = c.Set(key, []byte("test"))
			case 1:
				_, _, err = c.Get(key)
			case 2:
				_, err = c.Del(key)
			case 3:
				_, err = c.Has(key)
			}
			return err
		},
	},
	{
		name: "pipeline",
		op: func(c *client.Client, key string, _ int) error {
			p, err := c.CreatePipeline()
			if err != nil {
				return err
			}
			defer p.Close()
			for j := 0; j < perfBatchSize; j++ {
				if err := p.Set(key, []byte("test"), nil); err != nil {
					return err
				}
			}
			return p.Flush()
		},
	},
	{
		name: "transaction",
		op: func(c *client.Client, key string, _ int) error {
			tx, err := c.CreateTransaction()
			if err != nil {
				return err
			}
			defer tx.Close()
			for j := 0; j < perfBatchSize; j++ {
				if err := tx.Incr(key, nil); err != nil {
					return err
				}
			}
			return tx.Commit()
		},
	},
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of parallel connections to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per connection and benchmark"))
	key = "batch"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of commands per pipeline or transaction"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOpsPerThread = viper.GetInt("ops")
	perfBatchSize = viper.GetInt("batch")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 || perfNumThreads < 1 || perfOpsPerThread < 1 || perfBatchSize < 1 {
		return fmt.Errorf("keys, threads, ops and batch must be positive")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for RESP servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Ops per thread: %d, Batch size: %d\n", perfNumThreads, perfOpsPerThread, perfBatchSize)
	fmt.Println()

	// one connection per thread, a client is not safe for concurrent use
	clients := make([]*client.Client, perfNumThreads)
	for i := range clients {
		c, err := util.NewClient()
		if err != nil {
			return err
		}
		defer c.Close()
		clients[i] = c
	}

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	for _, test := range perfTests {
		if slices.Contains(perfSkip, test.name) {
			printResult(test.name, nil)
			continue
		}
		timer := metrics.GetOrRegisterTimer(test.name, registry)
		if err := runPerfTest(test, clients, timer); err != nil {
			return fmt.Errorf("(%s) - %w", test.name, err)
		}
		printResult(test.name, timer.Snapshot())
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs test on all clients in parallel and records every
// operation in timer
func runPerfTest(test perfTest, clients []*client.Client, timer metrics.Timer) error {
	keys := getKeys(test.name)

	if test.setup != nil {
		if err := test.setup(clients[0], keys); err != nil {
			return err
		}
	}

	// cleanup
	defer func() {
		for _, k := range keys {
			if _, err := clients[0].Del(k); err != nil {
				log.Printf("(%s) - error deleting key: %v\n", test.name, err)
			}
		}
	}()

	var wg sync.WaitGroup
	for t, c := range clients {
		t, c := t, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perfOpsPerThread; i++ {
				key := keys[(t*perfOpsPerThread+i)%len(keys)]
				start := time.Now()
				if err := test.op(c, key, i); err != nil {
					log.Printf("(%s) - error: %v\n", test.name, err)
					continue
				}
				timer.UpdateSince(start)
			}
		}()
	}
	wg.Wait()

	// a failed operation may leave a connection out of sync
	for _, c := range clients {
		if err := c.Conn().Broken(); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// setKeys writes all keys in one pipeline
func setKeys(c *client.Client, keys []string) error {
	p, err := c.CreatePipeline()
	if err != nil {
		return err
	}
	defer p.Close()
	for _, k := range keys {
		if err := p.Set(k, []byte("test"), nil); err != nil {
			return err
		}
	}
	return p.Flush()
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, t metrics.Timer) {
	if t == nil || t.Count() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	fmt.Printf("%-20s%s/op (p50 %s, p99 %s)\t%.0f ops/sec\n",
		test,
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.5)),
		time.Duration(t.Percentile(0.99)),
		t.RateMean(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry metrics.Registry, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "OpsPerSec",
		"Endpoint", "Transport", "TimeoutSec",
		"Threads", "BatchSize", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results in the order they ran
	for _, test := range perfTests {
		t, ok := registry.Get(test.name).(metrics.Timer)
		if !ok {
			continue
		}
		s := t.Snapshot()

		row := []string{
			test.name,
			strconv.FormatInt(s.Count(), 10),
			fmt.Sprintf("%.0f", s.Mean()),
			fmt.Sprintf("%.0f", s.Percentile(0.5)),
			fmt.Sprintf("%.0f", s.Percentile(0.99)),
			fmt.Sprintf("%.0f", s.RateMean()),
			config.Transport.Endpoint,
			viper.GetString("transport"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfBatchSize),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test.name, err)
		}
	}

	return nil
}
