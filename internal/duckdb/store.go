// Package duckdb provides the coexpression data store: genes, datasets,
// dataset collections, precomputed gene links, probe-level links and
// tested-in facts, loaded from TSV exports into DuckDB.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Store manages a DuckDB connection holding coexpression data. It is safe
// for concurrent readers.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path, logger: zap.NewNop()}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for load progress messages.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS taxa (
		id BIGINT PRIMARY KEY,
		scientific_name VARCHAR,
		common_name VARCHAR,
		is_species BOOLEAN,
		parent_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS genes (
		id BIGINT PRIMARY KEY,
		symbol VARCHAR,
		name VARCHAR,
		taxon_id BIGINT,
		known BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id BIGINT PRIMARY KEY,
		short_name VARCHAR,
		name VARCHAR,
		taxon_id BIGINT,
		troubled BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_sets (
		id BIGINT PRIMARY KEY,
		name VARCHAR,
		taxon_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_set_members (
		set_id BIGINT,
		dataset_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id BIGINT PRIMARY KEY,
		name VARCHAR,
		taxon_id BIGINT,
		enabled BOOLEAN,
		dataset_set_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS gene_links (
		id BIGINT,
		first_gene BIGINT,
		second_gene BIGINT,
		effect DOUBLE,
		supporting BLOB,
		tested BLOB,
		specific BLOB,
		analysis_id BIGINT,
		num_datasets BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS probe_links (
		id BIGINT,
		query_gene BIGINT,
		found_gene BIGINT,
		dataset_id BIGINT,
		effect DOUBLE,
		specific BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS tested_in (
		gene_id BIGINT,
		dataset_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS load_meta (
		table_name VARCHAR PRIMARY KEY,
		size BIGINT,
		mod_time VARCHAR
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_genes_symbol ON genes (symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_gene_links_first ON gene_links (analysis_id, first_gene)`,
	`CREATE INDEX IF NOT EXISTS idx_gene_links_second ON gene_links (analysis_id, second_gene)`,
	`CREATE INDEX IF NOT EXISTS idx_tested_in_gene ON tested_in (gene_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tested_in_dataset ON tested_in (dataset_id)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	// Indexes only speed up lookups; a failure is not fatal.
	for _, stmt := range indexes {
		if _, err := s.db.Exec(stmt); err != nil {
			s.logger.Debug("create index", zap.Error(err))
		}
	}
	return nil
}

// Count returns the number of rows in a store table.
func (s *Store) Count(table string) (int64, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", table, err)
	}
	return n, nil
}

// Loaded returns true if genes and datasets have been loaded.
func (s *Store) Loaded() bool {
	g, err := s.Count("genes")
	if err != nil || g == 0 {
		return false
	}
	d, err := s.Count("datasets")
	return err == nil && d > 0
}

// Tables lists the data tables in load order.
var Tables = []string{
	"taxa", "genes", "datasets", "dataset_sets", "dataset_set_members",
	"analyses", "gene_links", "probe_links", "tested_in",
}

func knownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// placeholders returns "?, ?, ..." for n parameters and the ids as args.
func placeholders(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
