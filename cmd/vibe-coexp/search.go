package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/coexpression"
	"github.com/inodb/vibe-coexp/internal/duckdb"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/output"
)

// defaultStringency applies when neither the flag nor search.stringency is set.
const defaultStringency = 2

// searchOptions holds the flags shared by the search commands.
type searchOptions struct {
	taxon           string
	datasets        string
	stringency      int
	limit           int
	maxResults      int
	maxTestedIn     int
	queryGenesOnly  bool
	knownOnly       bool
	specificOnly    bool
	forceProbeLevel bool
	format          string
	outputFile      string
	summary         bool
}

func (o *searchOptions) addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "tab", "Output format: tab or yaml")
	cmd.Flags().StringVarP(&o.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&o.summary, "summary", false, "Also write per-gene summaries (tab format)")
}

func (o *searchOptions) addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.datasets, "datasets", "", "Comma-separated dataset ids to search (default: all)")
	cmd.Flags().IntVarP(&o.stringency, "stringency", "s", defaultStringency, "Minimum number of supporting datasets")
	cmd.Flags().BoolVar(&o.queryGenesOnly, "query-genes-only", false, "Only report links among the query genes")
	cmd.Flags().BoolVar(&o.knownOnly, "known-only", false, "Drop predicted genes and probe-aligned regions")
}

// resolve fills unset flags from the config file.
func (o *searchOptions) resolve(cmd *cobra.Command) {
	if !cmd.Flags().Changed("stringency") && viper.IsSet("search.stringency") {
		o.stringency = viper.GetInt("search.stringency")
	}
	if f := cmd.Flags().Lookup("max-results"); f != nil && !f.Changed && viper.IsSet("search.max_results") {
		o.maxResults = viper.GetInt("search.max_results")
	}
	if f := cmd.Flags().Lookup("max-tested-in"); f != nil && !f.Changed && viper.IsSet("testedin.max_candidates") {
		o.maxTestedIn = viper.GetInt("testedin.max_candidates")
	}
}

// query builds a search for genes from the options.
func (o *searchOptions) query(genes []model.Gene) (coexpression.Query, error) {
	var ids []int64
	if o.datasets != "" {
		var err error
		ids, err = duckdb.ParseIDList(o.datasets)
		if err != nil {
			return coexpression.Query{}, usageError{fmt.Errorf("--datasets: %w", err)}
		}
	}
	return coexpression.Query{
		Genes:              genes,
		DatasetIDs:         ids,
		Stringency:         o.stringency,
		MaxResults:         o.maxResults,
		QueryGenesOnly:     o.queryGenesOnly,
		KnownGenesOnly:     o.knownOnly,
		SpecificProbesOnly: o.specificOnly,
		ForceProbeLevel:    o.forceProbeLevel,
	}, nil
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [flags] <gene>...",
		Short: "Find genes coexpressed with the query genes",
		Long: `Search coexpression links of one or more genes of a taxon.

When the selected datasets are covered by a precomputed analysis, its stored
gene-to-gene links are used. Otherwise links are assembled from probe-level
data of each dataset.`,
		Example: `  vibe-coexp search --taxon human TP53
  vibe-coexp search --taxon mouse --stringency 4 --datasets 12,15,19 Trp53 Mdm2
  vibe-coexp search --taxon human --query-genes-only --format yaml TP53 MDM2 CDKN1A`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve(cmd)
			return runSearch(&opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.taxon, "taxon", "t", "human", "Taxon common or scientific name")
	opts.addFilterFlags(cmd)
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results per query gene (0 = no limit)")
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "Maximum stored links fetched per query gene (0 = no limit)")
	cmd.Flags().IntVar(&opts.maxTestedIn, "max-tested-in", 0, "Coexpressed genes checked for tested-in datasets (0 = default)")
	cmd.Flags().BoolVar(&opts.forceProbeLevel, "probe-level", false, "Never use precomputed analyses")
	opts.addOutputFlags(cmd)

	return cmd
}

func runSearch(opts *searchOptions, symbols []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	taxon, err := store.Taxon(opts.taxon)
	if err != nil {
		return lookupError(err)
	}
	genes, err := store.GenesBySymbol(taxon.ID, symbols)
	if err != nil {
		return lookupError(err)
	}
	q, err := opts.query(genes)
	if err != nil {
		return err
	}

	svc, err := newService(store, opts.taxon)
	if err != nil {
		return err
	}
	res, err := svc.Search(q, coexpression.InteractiveStrategy{
		Limit:       opts.limit,
		MaxTestedIn: opts.maxTestedIn,
	})
	if err != nil {
		return err
	}
	return writeResults(opts, []*coexpression.Result{res})
}

func newCannedCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "canned [flags] <set-id> <gene>...",
		Short: "Query the precomputed analysis of a dataset collection",
		Long: `Search the stored gene-to-gene links of the analysis covering a dataset
collection. Results are not capped.`,
		Example: `  vibe-coexp canned 10 TP53
  vibe-coexp canned --datasets 101,102 --specific-only 10 TP53 MDM2`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageError{fmt.Errorf("invalid set id %q", args[0])}
			}
			opts.resolve(cmd)
			return runCanned(&opts, setID, args[1:])
		},
	}

	opts.addFilterFlags(cmd)
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "Maximum stored links fetched per query gene (0 = no limit)")
	cmd.Flags().BoolVar(&opts.specificOnly, "specific-only", false, "Count only gene-specific support")
	opts.addOutputFlags(cmd)

	return cmd
}

func runCanned(opts *searchOptions, setID int64, symbols []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := store.DatasetSet(setID)
	if err != nil {
		return err
	}
	if set == nil {
		return usageError{fmt.Errorf("dataset set %d: %w", setID, duckdb.ErrNotFound)}
	}
	genes, err := store.GenesBySymbol(set.TaxonID, symbols)
	if err != nil {
		return lookupError(err)
	}
	q, err := opts.query(genes)
	if err != nil {
		return err
	}

	svc, err := newService(store, "")
	if err != nil {
		return err
	}
	res, err := svc.SearchCanned(setID, q)
	if err != nil {
		return err
	}
	return writeResults(opts, []*coexpression.Result{res})
}

// newService wires the store and GO annotations into a search service.
// taxon picks a downloaded GAF file when none is configured.
func newService(store *duckdb.Store, taxon string) (*coexpression.Service, error) {
	ont, err := loadOntology(taxon)
	if err != nil {
		return nil, err
	}
	svc := coexpression.NewService(store, ont)
	svc.SetLogger(logger)
	if viper.IsSet("search.go_top") {
		svc.SetGoTop(viper.GetInt("search.go_top"))
	}
	return svc, nil
}

// lookupError reports unknown genes and taxa as usage errors.
func lookupError(err error) error {
	if errors.Is(err, duckdb.ErrNotFound) {
		return usageError{err}
	}
	return err
}

// resultWriter writes search results in one output format.
type resultWriter interface {
	write(res *coexpression.Result) error
	close() error
}

type tabResults struct {
	tw        *output.TabWriter
	summary   bool
	summaries map[string]*coexpression.Summary
}

func (t *tabResults) write(res *coexpression.Result) error {
	for sym, s := range res.Summaries {
		t.summaries[sym] = s
	}
	return t.tw.WriteResult(res)
}

func (t *tabResults) close() error {
	if t.summary && len(t.summaries) > 0 {
		if err := t.tw.WriteSummaries(t.summaries); err != nil {
			return err
		}
	}
	return t.tw.Flush()
}

type yamlResults struct {
	yw *output.YAMLWriter
}

func (y *yamlResults) write(res *coexpression.Result) error { return y.yw.WriteResult(res) }
func (y *yamlResults) close() error { return y.yw.Close() }

func newResultWriter(format string, w io.Writer, summary bool) (resultWriter, error) {
	switch format {
	case "tab", "":
		tw := output.NewTabWriter(w)
		if err := tw.WriteHeader(); err != nil {
			return nil, err
		}
		return &tabResults{tw: tw, summary: summary, summaries: make(map[string]*coexpression.Summary)}, nil
	case "yaml":
		return &yamlResults{yw: output.NewYAMLWriter(w)}, nil
	default:
		return nil, usageError{fmt.Errorf("unknown format %q (use tab or yaml)", format)}
	}
}

// openOutput returns the output file, or stdout when path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeResults(opts *searchOptions, results []*coexpression.Result) error {
	out, err := openOutput(opts.outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	rw, err := newResultWriter(opts.format, out, opts.summary)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Empty() {
			logger.Info("nothing searched", zap.String("query_id", res.QueryID), zap.String("state", res.ErrorState))
		}
		if err := rw.write(res); err != nil {
			return err
		}
	}
	return rw.close()
}
