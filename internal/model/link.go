package model

// LinkKey identifies an undirected gene pair.
type LinkKey struct {
	Lo, Hi int64
}

// PairKey returns the undirected key for two gene ids.
func PairKey(a, b int64) LinkKey {
	if a > b {
		a, b = b, a
	}
	return LinkKey{Lo: a, Hi: b}
}

// Link is a stored gene-to-gene coexpression record from a precomputed
// analysis. The bit vectors are positions in the analysis dataset universe;
// they are opaque until decoded against that universe.
type Link struct {
	ID          int64
	FirstGene   Gene
	SecondGene  Gene
	Effect      float64 // sign of the aggregate correlation
	Supporting  []byte
	Tested      []byte
	Specific    []byte
	AnalysisID  int64
	NumDatasets int
}

// OtherGene returns the partner of known in the link, regardless of which
// side of the stored pair known occupies.
func (l *Link) OtherGene(known Gene) (Gene, bool) {
	switch known.ID {
	case l.FirstGene.ID:
		return l.SecondGene, true
	case l.SecondGene.ID:
		return l.FirstGene, true
	}
	return Gene{}, false
}

// Key returns the undirected pair identity of the link.
func (l *Link) Key() LinkKey {
	return PairKey(l.FirstGene.ID, l.SecondGene.ID)
}

// Negative reports whether the aggregate effect is a negative correlation.
func (l *Link) Negative() bool {
	return l.Effect < 0
}

// ProbeLink is the probe-level evidence linking a query gene to one found gene.
type ProbeLink struct {
	ID                  int64
	FoundGene           Gene
	PositiveDatasets    []int64 // datasets with a positively correlated probe pair
	NegativeDatasets    []int64 // datasets with a negatively correlated probe pair
	NonSpecificDatasets []int64 // datasets whose support came from non-specific probes
}

// ProbeLinkSet holds the live probe-level links for one query gene.
type ProbeLinkSet struct {
	QueryGene Gene
	Links     []ProbeLink
}
