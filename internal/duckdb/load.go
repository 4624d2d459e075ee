package duckdb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoadReport describes what happened to one table during Load.
type LoadReport struct {
	Table   string
	Path    string
	Rows    int64
	Skipped bool // source file unchanged since the last load
	Missing bool // optional source file not present
}

// columns of each TSV export loaded with read_csv, in table column order.
var csvColumns = map[string]string{
	"taxa":                `'id': 'BIGINT', 'scientific_name': 'VARCHAR', 'common_name': 'VARCHAR', 'is_species': 'BOOLEAN', 'parent_id': 'BIGINT'`,
	"genes":               `'id': 'BIGINT', 'symbol': 'VARCHAR', 'name': 'VARCHAR', 'taxon_id': 'BIGINT', 'known': 'BOOLEAN'`,
	"datasets":            `'id': 'BIGINT', 'short_name': 'VARCHAR', 'name': 'VARCHAR', 'taxon_id': 'BIGINT', 'troubled': 'BOOLEAN'`,
	"dataset_sets":        `'id': 'BIGINT', 'name': 'VARCHAR', 'taxon_id': 'BIGINT'`,
	"dataset_set_members": `'set_id': 'BIGINT', 'dataset_id': 'BIGINT'`,
	"analyses":            `'id': 'BIGINT', 'name': 'VARCHAR', 'taxon_id': 'BIGINT', 'enabled': 'BOOLEAN', 'dataset_set_id': 'BIGINT'`,
	"probe_links":         `'id': 'BIGINT', 'query_gene': 'BIGINT', 'found_gene': 'BIGINT', 'dataset_id': 'BIGINT', 'effect': 'DOUBLE', 'specific': 'BOOLEAN'`,
	"tested_in":           `'gene_id': 'BIGINT', 'dataset_id': 'BIGINT'`,
}

var requiredTables = map[string]bool{"genes": true, "datasets": true}

// Load reads <table>.tsv files from dir into the store. Tables whose source
// file is unchanged since the last load are skipped unless force is set.
// Gene links are re-encoded whenever analyses or collection membership
// change, since their bit vectors depend on the analysis dataset universe.
func (s *Store) Load(dir string, force bool) ([]LoadReport, error) {
	var reports []LoadReport
	reencode := false

	for _, table := range Tables {
		path := filepath.Join(dir, table+".tsv")
		r := LoadReport{Table: table, Path: path}

		fp, err := StatFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			if requiredTables[table] {
				return reports, fmt.Errorf("missing %s: %w", path, err)
			}
			r.Missing = true
			reports = append(reports, r)
			continue
		}
		if err != nil {
			return reports, fmt.Errorf("stat %s: %w", path, err)
		}

		if !force && !(table == "gene_links" && reencode) {
			same, err := s.unchanged(table, fp)
			if err != nil {
				return reports, err
			}
			if same {
				r.Skipped = true
				reports = append(reports, r)
				s.logger.Debug("source unchanged, skipping", zap.String("table", table))
				continue
			}
		}

		if err := s.forgetFingerprint(table); err != nil {
			return reports, fmt.Errorf("reset load metadata: %w", err)
		}
		if table == "gene_links" {
			r.Rows, err = s.loadGeneLinks(path)
		} else {
			r.Rows, err = s.loadCSV(table, path)
		}
		if err != nil {
			return reports, err
		}
		if err := s.recordFingerprint(table, fp); err != nil {
			return reports, err
		}
		if table == "analyses" || table == "dataset_set_members" {
			reencode = true
		}

		s.logger.Info("loaded table",
			zap.String("table", table),
			zap.String("path", path),
			zap.Int64("rows", r.Rows))
		reports = append(reports, r)
	}
	return reports, nil
}

// loadCSV replaces the table contents with a TSV file via read_csv.
func (s *Store) loadCSV(table, path string) (int64, error) {
	cols, ok := csvColumns[table]
	if !ok {
		return 0, fmt.Errorf("no column layout for table %q", table)
	}
	if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
		return 0, fmt.Errorf("clearing %s: %w", table, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		SELECT * FROM read_csv('%s', delim='\t', header=true, columns={%s})`,
		table, sqlQuote(path), cols)
	if _, err := s.db.Exec(query); err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}
	return s.Count(table)
}

func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
