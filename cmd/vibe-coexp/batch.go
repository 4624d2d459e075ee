package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/coexpression"
	"github.com/inodb/vibe-coexp/internal/duckdb"
	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/testedin"
)

type batchOptions struct {
	searchOptions
	workers     int
	interactive bool
	metricsAddr string
}

func newBatchCmd() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch [flags] <gene-list>",
		Short: "Run one search per line of a gene list file",
		Long: `Run one coexpression search per line of a file. Each line holds one or more
whitespace-separated gene symbols; blank lines and lines starting with # are
ignored.

By default searches run one after another and share a tested-in cache over
all datasets of the taxon. With --interactive they run in parallel as
independent capped searches with GO overlaps.`,
		Example: `  vibe-coexp batch --taxon human genes.txt
  vibe-coexp batch --taxon human --interactive --workers 8 --limit 50 genes.txt
  vibe-coexp batch --taxon human --metrics-addr :9090 genes.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve(cmd)
			if !cmd.Flags().Changed("workers") && viper.IsSet("search.workers") {
				opts.workers = viper.GetInt("search.workers")
			}
			return runBatch(&opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.taxon, "taxon", "t", "human", "Taxon common or scientific name")
	opts.addFilterFlags(cmd)
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "Maximum stored links fetched per query gene (0 = no limit)")
	cmd.Flags().BoolVar(&opts.forceProbeLevel, "probe-level", false, "Never use precomputed analyses")
	cmd.Flags().BoolVar(&opts.interactive, "interactive", false, "Run capped searches in parallel instead of one bulk job")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel workers with --interactive (0 = all CPUs)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results per query gene with --interactive (0 = no limit)")
	cmd.Flags().IntVar(&opts.maxTestedIn, "max-tested-in", 0, "Coexpressed genes checked for tested-in datasets with --interactive (0 = default)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	opts.addOutputFlags(cmd)

	return cmd
}

// readGeneLists reads one symbol list per line.
func readGeneLists(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gene list: %w", err)
	}
	defer f.Close()

	var lists [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lists = append(lists, strings.Fields(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gene list: %w", err)
	}
	return lists, nil
}

func runBatch(opts *batchOptions, path string) error {
	lists, err := readGeneLists(path)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		return usageError{fmt.Errorf("no gene symbols in %s", path)}
	}

	if opts.metricsAddr != "" {
		serveMetrics(opts.metricsAddr)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	taxon, err := store.Taxon(opts.taxon)
	if err != nil {
		return lookupError(err)
	}

	// Lines naming unknown genes are skipped, not fatal.
	var queries []coexpression.Query
	for i, symbols := range lists {
		genes, err := store.GenesBySymbol(taxon.ID, symbols)
		if errors.Is(err, duckdb.ErrNotFound) {
			logger.Warn("skipping gene list line", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		q, err := opts.query(genes)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return usageError{fmt.Errorf("no known genes in %s", path)}
	}

	svc, err := newService(store, opts.taxon)
	if err != nil {
		return err
	}

	out, err := openOutput(opts.outputFile)
	if err != nil {
		return err
	}
	defer out.Close()
	rw, err := newResultWriter(opts.format, out, opts.summary)
	if err != nil {
		return err
	}

	start := time.Now()
	if opts.interactive {
		err = runParallel(svc, queries, opts, rw)
	} else {
		err = runBulk(svc, store, taxon, queries, opts, rw)
	}
	if err != nil {
		return err
	}
	logger.Info("batch complete",
		zap.Int("queries", len(queries)),
		zap.Duration("elapsed", time.Since(start)))
	return rw.close()
}

// runBulk runs the queries one after another over a shared tested-in cache.
func runBulk(svc *coexpression.Service, store *duckdb.Store, taxon *model.Taxon, queries []coexpression.Query, opts *batchOptions, rw resultWriter) error {
	ids := queries[0].DatasetIDs
	if len(ids) == 0 {
		var err error
		ids, err = store.DatasetsForTaxon(taxon.ID)
		if err != nil {
			return err
		}
	}
	u, err := index.NewUniverse(ids)
	if err != nil {
		return fmt.Errorf("no datasets for taxon %s: %w", opts.taxon, err)
	}
	cache := testedin.NewBatch(store, u)
	cache.SetLogger(logger)
	strategy := coexpression.BulkStrategy{Cache: cache}

	for i, q := range queries {
		res, err := svc.Search(q, strategy)
		if err != nil {
			if errors.Is(err, model.ErrInvalidQuery) {
				logger.Warn("skipping query", zap.Int("query", i+1), zap.Error(err))
				continue
			}
			return fmt.Errorf("query %d: %w", i+1, err)
		}
		if err := rw.write(res); err != nil {
			return err
		}
	}
	logger.Debug("tested-in cache", zap.Int("genes", cache.Len()))
	return nil
}

// runParallel runs independent interactive searches on a worker pool and
// writes results in input order.
func runParallel(svc *coexpression.Service, queries []coexpression.Query, opts *batchOptions, rw resultWriter) error {
	items := make(chan coexpression.SearchItem, 2*len(queries))
	for i, q := range queries {
		items <- coexpression.SearchItem{Seq: i, Query: q}
	}
	close(items)

	results := svc.ParallelSearch(items, coexpression.InteractiveStrategy{
		Limit:       opts.limit,
		MaxTestedIn: opts.maxTestedIn,
	}, opts.workers)

	return coexpression.OrderedCollect(results, func(r coexpression.SearchResult) error {
		if r.Err != nil {
			if errors.Is(r.Err, model.ErrInvalidQuery) {
				logger.Warn("skipping query", zap.Int("query", r.Seq+1), zap.Error(r.Err))
				return nil
			}
			return fmt.Errorf("query %d: %w", r.Seq+1, r.Err)
		}
		return rw.write(r.Result)
	})
}

// serveMetrics exposes the default Prometheus registry on addr/metrics.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
