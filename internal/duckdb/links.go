package duckdb

import (
	"bufio"
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/index"
	"github.com/inodb/vibe-coexp/internal/model"
)

// gene_links.tsv columns. Dataset lists are comma-separated ids.
var geneLinkColumns = []string{"id", "analysis_id", "first_gene", "second_gene", "effect", "supporting", "tested", "specific"}

// loadGeneLinks replaces the gene links with a TSV export, encoding the
// dataset lists as bit vectors over each analysis dataset universe.
func (s *Store) loadGeneLinks(path string) (int64, error) {
	universes, err := s.analysisUniverses()
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open gene links: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// Read header to find column indices
	if !scanner.Scan() {
		return 0, fmt.Errorf("gene links: empty file")
	}
	col := make(map[string]int)
	for i, name := range strings.Split(scanner.Text(), "\t") {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range geneLinkColumns {
		if _, ok := col[name]; !ok {
			return 0, fmt.Errorf("gene links: missing '%s' column", name)
		}
	}

	if _, err := s.db.Exec("DELETE FROM gene_links"); err != nil {
		return 0, fmt.Errorf("clearing gene_links: %w", err)
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "gene_links")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	var n, outside int64
	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		get := func(name string) string {
			if i := col[name]; i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		var ints [4]int64
		for i, name := range geneLinkColumns[:4] {
			ints[i], err = strconv.ParseInt(get(name), 10, 64)
			if err != nil {
				return n, fmt.Errorf("gene links line %d: %s: %w", line, name, err)
			}
		}
		id, analysisID, first, second := ints[0], ints[1], ints[2], ints[3]
		effect, err := strconv.ParseFloat(get("effect"), 64)
		if err != nil {
			return n, fmt.Errorf("gene links line %d: effect: %w", line, err)
		}
		u, ok := universes[analysisID]
		if !ok {
			return n, fmt.Errorf("gene links line %d: unknown analysis %d", line, analysisID)
		}

		var lists [3][]int64
		for i, name := range geneLinkColumns[5:] {
			lists[i], err = ParseIDList(get(name))
			if err != nil {
				return n, fmt.Errorf("gene links line %d: %s: %w", line, name, err)
			}
		}
		supporting := u.Filter(lists[0])
		outside += int64(len(model.SortedIDs(lists[0])) - len(supporting))

		if err := appender.AppendRow(
			id, first, second, effect,
			[]byte(u.Encode(supporting)),
			[]byte(u.Encode(lists[1])),
			[]byte(u.Encode(lists[2])),
			analysisID, int64(len(supporting)),
		); err != nil {
			return n, fmt.Errorf("append gene link: %w", err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading gene links: %w", err)
	}
	if outside > 0 {
		s.logger.Warn("supporting datasets outside the analysis were ignored",
			zap.Int64("datasets", outside))
	}

	return n, appender.Flush()
}

// ParseIDList parses a comma-separated list of ids. An empty string is an
// empty list.
func ParseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// analysisUniverses returns the dataset universe of every analysis.
func (s *Store) analysisUniverses() (map[int64]*index.Universe, error) {
	ids, err := s.analysisDatasets()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*index.Universe, len(ids))
	for a, ds := range ids {
		u, err := index.NewUniverse(ds)
		if err != nil {
			return nil, fmt.Errorf("analysis %d: %w", a, err)
		}
		out[a] = u
	}
	return out, nil
}

// GeneLinks returns the stored links of each gene from one analysis, the
// best supported first.
func (s *Store) GeneLinks(genes []model.Gene, stringency, maxResults int, queryGenesOnly bool, analysis *model.Analysis) (map[int64][]model.Link, error) {
	out := make(map[int64][]model.Link, len(genes))
	ids := model.GeneIDs(genes)
	for _, g := range genes {
		query := `SELECT l.id, l.effect, l.supporting, l.tested, l.specific, l.analysis_id, l.num_datasets,
			g1.id, g1.symbol, COALESCE(g1.name, ''), g1.taxon_id, COALESCE(g1.known, false),
			g2.id, g2.symbol, COALESCE(g2.name, ''), g2.taxon_id, COALESCE(g2.known, false)
			FROM gene_links l
			JOIN genes g1 ON g1.id = l.first_gene
			JOIN genes g2 ON g2.id = l.second_gene
			WHERE l.analysis_id = ? AND (l.first_gene = ? OR l.second_gene = ?) AND l.num_datasets >= ?`
		args := []any{analysis.ID, g.ID, g.ID, stringency}
		if queryGenesOnly {
			ph, idArgs := placeholders(ids)
			query += ` AND (CASE WHEN l.first_gene = ? THEN l.second_gene ELSE l.first_gene END) IN (` + ph + `)`
			args = append(append(args, g.ID), idArgs...)
		}
		query += ` ORDER BY l.num_datasets DESC, l.id`
		if maxResults > 0 {
			query += ` LIMIT ?`
			args = append(args, maxResults)
		}

		links, err := s.queryLinks(query, args...)
		if err != nil {
			return nil, fmt.Errorf("links for %s: %w", g.Symbol, err)
		}
		out[g.ID] = links
	}
	return out, nil
}

func (s *Store) queryLinks(query string, args ...any) ([]model.Link, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var l model.Link
		var num int64
		if err := rows.Scan(
			&l.ID, &l.Effect, &l.Supporting, &l.Tested, &l.Specific, &l.AnalysisID, &num,
			&l.FirstGene.ID, &l.FirstGene.Symbol, &l.FirstGene.Name, &l.FirstGene.TaxonID, &l.FirstGene.Known,
			&l.SecondGene.ID, &l.SecondGene.Symbol, &l.SecondGene.Name, &l.SecondGene.TaxonID, &l.SecondGene.Known,
		); err != nil {
			return nil, fmt.Errorf("scan gene link: %w", err)
		}
		l.NumDatasets = int(num)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene links: %w", err)
	}
	return links, nil
}

// ProbeLinks aggregates the probe-level links of a gene over the given
// datasets into one ProbeLink per partner gene, ordered by partner id.
func (s *Store) ProbeLinks(gene model.Gene, datasetIDs []int64, stringency int, knownGenesOnly bool) (*model.ProbeLinkSet, error) {
	set := &model.ProbeLinkSet{QueryGene: gene}
	if len(datasetIDs) == 0 {
		return set, nil
	}

	ph, dsArgs := placeholders(datasetIDs)
	query := `SELECT p.id, p.dataset_id, p.effect, COALESCE(p.specific, true),
		g.id, g.symbol, COALESCE(g.name, ''), g.taxon_id, COALESCE(g.known, false)
		FROM probe_links p
		JOIN genes g ON g.id = CASE WHEN p.query_gene = ? THEN p.found_gene ELSE p.query_gene END
		WHERE (p.query_gene = ? OR p.found_gene = ?) AND g.id <> ? AND p.dataset_id IN (` + ph + `)`
	if knownGenesOnly {
		query += ` AND COALESCE(g.known, false)`
	}
	query += ` ORDER BY g.id, p.id`
	args := append([]any{gene.ID, gene.ID, gene.ID, gene.ID}, dsArgs...)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("probe links for %s: %w", gene.Symbol, err)
	}
	defer rows.Close()

	type agg struct {
		link                      model.ProbeLink
		pos, neg, nonSpec, anySup map[int64]struct{}
	}
	var order []int64
	byGene := make(map[int64]*agg)
	for rows.Next() {
		var id, ds int64
		var effect float64
		var specific bool
		var g model.Gene
		if err := rows.Scan(&id, &ds, &effect, &specific, &g.ID, &g.Symbol, &g.Name, &g.TaxonID, &g.Known); err != nil {
			return nil, fmt.Errorf("scan probe link: %w", err)
		}
		a, ok := byGene[g.ID]
		if !ok {
			a = &agg{
				link:    model.ProbeLink{ID: id, FoundGene: g},
				pos:     make(map[int64]struct{}),
				neg:     make(map[int64]struct{}),
				nonSpec: make(map[int64]struct{}),
				anySup:  make(map[int64]struct{}),
			}
			byGene[g.ID] = a
			order = append(order, g.ID)
		}
		if effect < 0 {
			a.neg[ds] = struct{}{}
		} else {
			a.pos[ds] = struct{}{}
		}
		if !specific {
			a.nonSpec[ds] = struct{}{}
		}
		a.anySup[ds] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate probe links: %w", err)
	}

	for _, gid := range order {
		a := byGene[gid]
		if len(a.anySup) < stringency {
			continue
		}
		a.link.PositiveDatasets = setIDs(a.pos)
		a.link.NegativeDatasets = setIDs(a.neg)
		a.link.NonSpecificDatasets = setIDs(a.nonSpec)
		set.Links = append(set.Links, a.link)
	}
	return set, nil
}

func setIDs(m map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return model.SortedIDs(ids)
}
