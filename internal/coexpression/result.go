package coexpression

import (
	"fmt"

	"github.com/inodb/vibe-coexp/internal/model"
)

// Error states reported on an empty Result. They describe why no data could
// be searched, as opposed to a search that legitimately found nothing.
const (
	StateNotTested     = "Gene(s) are not tested in any experiments"
	StateNoExperiments = "No experiments selected"
)

func stateNoCoexpressionData(symbols string) string {
	return "No experiments have coexpression data for " + symbols
}

// Query describes one coexpression search.
type Query struct {
	Genes      []model.Gene
	DatasetIDs []int64 // requested datasets; empty means all available
	Stringency int     // minimum supporting datasets; values below 1 mean 1

	// MaxResults bounds the stored links fetched per query gene on the
	// precomputed path. 0 means no bound.
	MaxResults int

	QueryGenesOnly     bool // only links among the query genes
	KnownGenesOnly     bool // drop predicted genes and probe-aligned regions
	SpecificProbesOnly bool // count only gene-specific support (precomputed path)
	ForceProbeLevel    bool // never delegate to a precomputed analysis
}

// ResultRow is one coexpressed gene found for a query gene.
type ResultRow struct {
	QueryGene model.Gene `yaml:"query_gene"`
	FoundGene model.Gene `yaml:"found_gene"`

	PosSupp        int `yaml:"pos_supp"`
	NegSupp        int `yaml:"neg_supp"`
	NonSpecPosSupp int `yaml:"non_spec_pos_supp"`
	NonSpecNegSupp int `yaml:"non_spec_neg_supp"`
	NumTestedIn    int `yaml:"num_tested_in"`

	// GoSim is the number of GO terms shared by both genes; nil when not
	// computed. MaxGoSim is the query gene's own term count.
	GoSim    *int `yaml:"go_sim,omitempty"`
	MaxGoSim *int `yaml:"max_go_sim,omitempty"`

	DatasetVector      string  `yaml:"dataset_vector"`
	SortKey            string  `yaml:"-"`
	SupportingDatasets []int64 `yaml:"supporting_datasets"`

	linkID int64
}

// Support returns the larger of the positive and negative support.
func (r *ResultRow) Support() int {
	return max(r.PosSupp, r.NegSupp)
}

// Negative reports whether the row is a negative correlation.
func (r *ResultRow) Negative() bool {
	return r.NegSupp > r.PosSupp
}

func (r ResultRow) String() string {
	sign := "+"
	if r.Negative() {
		sign = "-"
	}
	return fmt.Sprintf("%s\t%s\t%d\t%s", r.QueryGene.Symbol, r.FoundGene.Symbol, r.Support(), sign)
}

// sortKey orders rows by descending support, then ascending symbol, under
// plain string comparison.
func sortKey(support int, symbol string) string {
	return fmt.Sprintf("%06f%s", 1.0/float64(support), symbol)
}

// Summary holds per query gene search statistics.
type Summary struct {
	DatasetsAvailable          int `yaml:"datasets_available"`
	DatasetsTested             int `yaml:"datasets_tested"`
	LinksFound                 int `yaml:"links_found"`
	LinksMetPositiveStringency int `yaml:"links_met_positive_stringency"`
	LinksMetNegativeStringency int `yaml:"links_met_negative_stringency"`
	DatasetsWithSpecificProbes int `yaml:"datasets_with_specific_probes"`
}

// DatasetSummary counts the links of one query gene supported by one dataset.
type DatasetSummary struct {
	DatasetID int64  `yaml:"dataset_id"`
	QueryGene string `yaml:"query_gene"`
	LinkCount int    `yaml:"link_count"`
}

// Result is the outcome of one search.
type Result struct {
	// QueryID correlates log lines of one search.
	QueryID string `yaml:"-"`

	Rows []ResultRow `yaml:"rows"`
	// Summaries are keyed by query gene symbol.
	Summaries        map[string]*Summary `yaml:"summaries"`
	DatasetSummaries []DatasetSummary    `yaml:"dataset_summaries,omitempty"`
	// Datasets are the searched datasets, sorted.
	Datasets       []int64 `yaml:"datasets"`
	Canned         bool    `yaml:"canned"`
	KnownGenesOnly bool    `yaml:"known_genes_only"`

	// ErrorState explains why nothing could be searched. It is empty for a
	// completed search, including one with zero rows.
	ErrorState string `yaml:"error_state,omitempty"`
}

// Empty reports whether the search could not be run.
func (r *Result) Empty() bool {
	return r.ErrorState != ""
}

func emptyResult(queryID, state string) *Result {
	return &Result{
		QueryID:    queryID,
		Summaries:  make(map[string]*Summary),
		ErrorState: state,
	}
}
