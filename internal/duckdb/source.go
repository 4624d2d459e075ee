package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/inodb/vibe-coexp/internal/model"
)

// ErrNotFound is returned when a named gene or taxon does not exist.
var ErrNotFound = errors.New("not found")

// Taxon looks up a taxon by common or scientific name, case-insensitively.
func (s *Store) Taxon(name string) (*model.Taxon, error) {
	var t model.Taxon
	var common sql.NullString
	var parent sql.NullInt64
	err := s.db.QueryRow(`SELECT id, COALESCE(scientific_name, ''), common_name, COALESCE(is_species, true), parent_id
		FROM taxa WHERE lower(common_name) = lower(?) OR lower(scientific_name) = lower(?)
		ORDER BY id LIMIT 1`, name, name).
		Scan(&t.ID, &t.ScientificName, &common, &t.IsSpecies, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("taxon %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query taxon: %w", err)
	}
	t.CommonName = common.String
	t.ParentID = parent.Int64
	return &t, nil
}

// GenesBySymbol resolves official symbols within a taxon, preserving the
// order of symbols. Unknown symbols are an ErrNotFound error naming them.
func (s *Store) GenesBySymbol(taxonID int64, symbols []string) ([]model.Gene, error) {
	genes := make([]model.Gene, 0, len(symbols))
	var missing []string
	for _, sym := range symbols {
		var g model.Gene
		err := s.db.QueryRow(`SELECT id, symbol, COALESCE(name, ''), taxon_id, COALESCE(known, false)
			FROM genes WHERE taxon_id = ? AND symbol = ? ORDER BY id LIMIT 1`, taxonID, sym).
			Scan(&g.ID, &g.Symbol, &g.Name, &g.TaxonID, &g.Known)
		if errors.Is(err, sql.ErrNoRows) {
			missing = append(missing, sym)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query gene %s: %w", sym, err)
		}
		genes = append(genes, g)
	}
	if len(missing) > 0 {
		return genes, fmt.Errorf("genes %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}
	return genes, nil
}

// AnalysesForTaxon returns the analyses of a taxon. A taxon without its own
// analyses inherits those of its nearest ancestor that has some.
func (s *Store) AnalysesForTaxon(taxonID int64) ([]model.Analysis, error) {
	seen := make(map[int64]bool)
	for id := taxonID; id != 0 && !seen[id]; {
		seen[id] = true
		analyses, err := s.analyses(`WHERE taxon_id = ?`, id)
		if err != nil {
			return nil, err
		}
		if len(analyses) > 0 {
			return analyses, nil
		}
		var parent sql.NullInt64
		err = s.db.QueryRow(`SELECT parent_id FROM taxa WHERE id = ?`, id).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query parent taxon: %w", err)
		}
		id = parent.Int64
	}
	return nil, nil
}

// Analyses returns every analysis.
func (s *Store) Analyses() ([]model.Analysis, error) {
	return s.analyses("")
}

func (s *Store) analyses(where string, args ...any) ([]model.Analysis, error) {
	rows, err := s.db.Query(`SELECT id, name, taxon_id, COALESCE(enabled, false), dataset_set_id
		FROM analyses `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		var a model.Analysis
		if err := rows.Scan(&a.ID, &a.Name, &a.TaxonID, &a.Enabled, &a.DatasetSetID); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	members, err := s.analysisDatasets()
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].DatasetIDs = members[out[i].ID]
	}
	return out, nil
}

// analysisDatasets returns the member datasets of each analysis collection.
func (s *Store) analysisDatasets() (map[int64][]int64, error) {
	rows, err := s.db.Query(`SELECT a.id, m.dataset_id FROM analyses a
		JOIN dataset_set_members m ON m.set_id = a.dataset_set_id
		ORDER BY a.id, m.dataset_id`)
	if err != nil {
		return nil, fmt.Errorf("query analysis datasets: %w", err)
	}
	defer rows.Close()
	return scanIDGroups(rows)
}

// DatasetSet returns a dataset collection, or nil if the id is unknown.
func (s *Store) DatasetSet(id int64) (*model.DatasetSet, error) {
	sets, err := s.datasetSets(`WHERE id = ?`, id)
	if err != nil || len(sets) == 0 {
		return nil, err
	}
	return &sets[0], nil
}

func (s *Store) datasetSets(where string, args ...any) ([]model.DatasetSet, error) {
	rows, err := s.db.Query(`SELECT id, name, taxon_id FROM dataset_sets `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query dataset sets: %w", err)
	}
	defer rows.Close()

	var sets []model.DatasetSet
	for rows.Next() {
		var ds model.DatasetSet
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.TaxonID); err != nil {
			return nil, fmt.Errorf("scan dataset set: %w", err)
		}
		sets = append(sets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset sets: %w", err)
	}

	for i := range sets {
		members, err := s.int64s(`SELECT dataset_id FROM dataset_set_members WHERE set_id = ? ORDER BY dataset_id`, sets[i].ID)
		if err != nil {
			return nil, fmt.Errorf("members of dataset set %d: %w", sets[i].ID, err)
		}
		sets[i].DatasetIDs = members
	}
	return sets, nil
}

// Datasets returns the datasets with the given ids in ascending id order.
func (s *Store) Datasets(ids []int64) ([]model.Dataset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph, args := placeholders(ids)
	rows, err := s.db.Query(`SELECT id, short_name, COALESCE(name, ''), taxon_id, COALESCE(troubled, false)
		FROM datasets WHERE id IN (`+ph+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []model.Dataset
	for rows.Next() {
		var d model.Dataset
		if err := rows.Scan(&d.ID, &d.ShortName, &d.Name, &d.TaxonID, &d.Troubled); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return out, nil
}

// DatasetsForTaxon returns the ids of the usable datasets of a taxon.
func (s *Store) DatasetsForTaxon(taxonID int64) ([]int64, error) {
	return s.int64s(`SELECT id FROM datasets WHERE taxon_id = ? AND NOT COALESCE(troubled, false) ORDER BY id`, taxonID)
}

// DatasetsForGenes returns the datasets in which any of the genes was tested.
func (s *Store) DatasetsForGenes(geneIDs []int64) ([]int64, error) {
	if len(geneIDs) == 0 {
		return nil, nil
	}
	ph, args := placeholders(geneIDs)
	return s.int64s(`SELECT DISTINCT dataset_id FROM tested_in WHERE gene_id IN (`+ph+`) ORDER BY dataset_id`, args...)
}

// TestedDatasets returns the members of datasetIDs in which the gene was tested.
func (s *Store) TestedDatasets(geneID int64, datasetIDs []int64) ([]int64, error) {
	if len(datasetIDs) == 0 {
		return nil, nil
	}
	ph, args := placeholders(datasetIDs)
	return s.int64s(`SELECT DISTINCT dataset_id FROM tested_in WHERE gene_id = ? AND dataset_id IN (`+ph+`) ORDER BY dataset_id`,
		append([]any{geneID}, args...)...)
}

// TestedGenes returns every gene tested in the dataset.
func (s *Store) TestedGenes(datasetID int64) ([]int64, error) {
	return s.int64s(`SELECT DISTINCT gene_id FROM tested_in WHERE dataset_id = ? ORDER BY gene_id`, datasetID)
}

func (s *Store) int64s(query string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// scanIDGroups collects (key, id) rows into id lists per key.
func scanIDGroups(rows *sql.Rows) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for rows.Next() {
		var k, id int64
		if err := rows.Scan(&k, &id); err != nil {
			return nil, err
		}
		out[k] = append(out[k], id)
	}
	return out, rows.Err()
}
