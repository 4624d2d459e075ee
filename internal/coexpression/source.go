package coexpression

import (
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/testedin"
)

// Source is the upstream store of genes, datasets and coexpression links.
// Implementations are read-only and may be shared by concurrent searches.
type Source interface {
	testedin.Source

	// AnalysesForTaxon returns the precomputed analyses usable for a taxon,
	// enabled or not.
	AnalysesForTaxon(taxonID int64) ([]model.Analysis, error)

	// DatasetSet returns a dataset collection, or nil if the id is unknown.
	DatasetSet(id int64) (*model.DatasetSet, error)

	// Datasets returns the datasets with the given ids. Unknown ids are
	// omitted.
	Datasets(ids []int64) ([]model.Dataset, error)

	// DatasetsForGenes returns the datasets in which any of the genes was
	// tested.
	DatasetsForGenes(geneIDs []int64) ([]int64, error)

	// GeneLinks returns the stored links of each gene (keyed by gene id)
	// from one analysis, with support of at least stringency. A positive
	// maxResults bounds the links per gene. With queryGenesOnly, only links
	// between the given genes are returned.
	GeneLinks(genes []model.Gene, stringency, maxResults int, queryGenesOnly bool, analysis *model.Analysis) (map[int64][]model.Link, error)

	// ProbeLinks returns the probe-level links of a gene, restricted to the
	// given datasets.
	ProbeLinks(gene model.Gene, datasetIDs []int64, stringency int, knownGenesOnly bool) (*model.ProbeLinkSet, error)
}

// GeneOntology is the GO annotation store used for result enrichment.
type GeneOntology interface {
	// Loaded reports whether annotations are available at all.
	Loaded() bool
	// TermCount returns the number of GO terms annotated to the gene.
	TermCount(gene model.Gene) int
	// TermOverlap returns the terms each candidate shares with the gene,
	// keyed by candidate id. Candidates sharing nothing may be omitted.
	TermOverlap(gene model.Gene, candidates []model.Gene) map[int64][]string
}
