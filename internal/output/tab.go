// Package output provides coexpression result formatters.
package output

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-coexp/internal/coexpression"
)

// TabWriter writes result rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Query_gene",
			"Found_gene",
			"Support",
			"Sign",
			"Pos_supp",
			"Neg_supp",
			"Non_spec_pos_supp",
			"Non_spec_neg_supp",
			"Num_tested_in",
			"GO_sim",
			"Max_GO_sim",
			"Dataset_vector",
			"Supporting_datasets",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single result row.
func (tw *TabWriter) Write(r *coexpression.ResultRow) error {
	sign := "+"
	if r.Negative() {
		sign = "-"
	}

	values := []string{
		r.QueryGene.Symbol,
		r.FoundGene.Symbol,
		strconv.Itoa(r.Support()),
		sign,
		strconv.Itoa(r.PosSupp),
		strconv.Itoa(r.NegSupp),
		strconv.Itoa(r.NonSpecPosSupp),
		strconv.Itoa(r.NonSpecNegSupp),
		strconv.Itoa(r.NumTestedIn),
		optionalInt(r.GoSim),
		optionalInt(r.MaxGoSim),
		r.DatasetVector,
		joinIDs(r.SupportingDatasets),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteResult writes every row of a result. An empty result is written as
// a comment line carrying its error state.
func (tw *TabWriter) WriteResult(res *coexpression.Result) error {
	if res.Empty() {
		_, err := tw.w.WriteString("## " + res.ErrorState + "\n")
		return err
	}
	for i := range res.Rows {
		if err := tw.Write(&res.Rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummaries writes one line per query gene, ordered by symbol.
func (tw *TabWriter) WriteSummaries(summaries map[string]*coexpression.Summary) error {
	if _, err := tw.w.WriteString("#Query_gene\tDatasets_available\tDatasets_tested\tLinks_found\tLinks_met_pos_stringency\tLinks_met_neg_stringency\tDatasets_with_specific_probes\n"); err != nil {
		return err
	}
	symbols := make([]string, 0, len(summaries))
	for s := range summaries {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		s := summaries[sym]
		values := []string{
			sym,
			strconv.Itoa(s.DatasetsAvailable),
			strconv.Itoa(s.DatasetsTested),
			strconv.Itoa(s.LinksFound),
			strconv.Itoa(s.LinksMetPositiveStringency),
			strconv.Itoa(s.LinksMetNegativeStringency),
			strconv.Itoa(s.DatasetsWithSpecificProbes),
		}
		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(s, ",")
}
