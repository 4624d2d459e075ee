package coexpression

import (
	"github.com/inodb/vibe-coexp/internal/model"
)

// DefaultGoTop is the number of top ranked rows per query gene that get a
// GO overlap.
const DefaultGoTop = 25

// annotateGO sets GoSim and MaxGoSim on the first top rows, which must
// already be ranked. Nothing is asked of ont when it is not loaded.
func annotateGO(ont GeneOntology, query model.Gene, rows []ResultRow, top int) {
	if ont == nil || !ont.Loaded() || top <= 0 {
		return
	}
	rows = model.Take(rows, top)
	if len(rows) == 0 {
		return
	}

	terms := ont.TermCount(query)
	if terms == 0 {
		for i := range rows {
			rows[i].GoSim = intPtr(0)
			rows[i].MaxGoSim = intPtr(0)
		}
		return
	}

	found := make([]model.Gene, len(rows))
	for i := range rows {
		found[i] = rows[i].FoundGene
	}
	overlap := ont.TermOverlap(query, found)
	goLookups.Inc()

	for i := range rows {
		rows[i].GoSim = intPtr(len(overlap[rows[i].FoundGene.ID]))
		rows[i].MaxGoSim = intPtr(terms)
	}
}

func intPtr(v int) *int { return &v }
