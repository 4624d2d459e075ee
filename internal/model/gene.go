// Package model holds the genes, datasets and coexpression links shared by
// the analysis packages.
package model

// Taxon is an organism, or a parent grouping of organisms when IsSpecies is false.
type Taxon struct {
	ID             int64
	ScientificName string
	CommonName     string
	IsSpecies      bool
	ParentID       int64 // 0 if none
}

// Gene is a gene as seen by a coexpression query. Genes are immutable within a query.
type Gene struct {
	ID      int64  `yaml:"id"`     // Stable gene identifier
	Symbol  string `yaml:"symbol"` // Official symbol (e.g., TP53)
	Name    string `yaml:"name,omitempty"`
	TaxonID int64  `yaml:"taxon_id"`
	Known   bool   `yaml:"known"` // false for predicted genes and probe-aligned regions
}

// SameTaxon reports whether both genes come from the same taxon.
func (g Gene) SameTaxon(other Gene) bool {
	return g.TaxonID == other.TaxonID
}

// GeneIDs returns the ids of genes, in order.
func GeneIDs(genes []Gene) []int64 {
	ids := make([]int64, len(genes))
	for i, g := range genes {
		ids[i] = g.ID
	}
	return ids
}
