// Package ontology provides Gene Ontology annotation loading and term
// overlap between genes. Annotations are read from GAF 2.x files as
// published by the GO Consortium and GOA.
package ontology

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/inodb/vibe-coexp/internal/model"
)

// GAF column positions (0-based).
const (
	gafSymbol    = 2
	gafQualifier = 3
	gafGOID      = 4
	gafMinFields = 5
)

// Annotations maps gene symbols to the GO terms annotated to them.
type Annotations struct {
	terms map[string]map[string]struct{}
}

// New returns an empty annotation set. It reports itself as not loaded
// until terms are added.
func New() *Annotations {
	return &Annotations{terms: make(map[string]map[string]struct{})}
}

// Add annotates a gene symbol with a GO term.
func (a *Annotations) Add(symbol, goID string) {
	s, ok := a.terms[symbol]
	if !ok {
		s = make(map[string]struct{})
		a.terms[symbol] = s
	}
	s[goID] = struct{}{}
}

// LoadGAF loads a GAF file, gzip-compressed if the name ends in .gz.
func LoadGAF(path string) (*Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GO annotations: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open GO annotations: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadGAF(r)
}

// ReadGAF parses GAF records. Comment lines start with '!'; annotations
// with a NOT qualifier are skipped.
func ReadGAF(r io.Reader) (*Annotations, error) {
	a := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '!' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < gafMinFields {
			continue
		}
		if strings.Contains(fields[gafQualifier], "NOT") {
			continue
		}
		symbol := strings.TrimSpace(fields[gafSymbol])
		goID := strings.TrimSpace(fields[gafGOID])
		if symbol == "" || !strings.HasPrefix(goID, "GO:") {
			continue
		}
		a.Add(symbol, goID)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading GO annotations: %w", err)
	}
	return a, nil
}

// Loaded reports whether any annotations are available.
func (a *Annotations) Loaded() bool {
	return a != nil && len(a.terms) > 0
}

// GeneCount returns the number of annotated genes.
func (a *Annotations) GeneCount() int {
	return len(a.terms)
}

// Terms returns the sorted GO terms of a gene symbol.
func (a *Annotations) Terms(symbol string) []string {
	s := a.terms[symbol]
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TermCount returns the number of GO terms annotated to the gene.
func (a *Annotations) TermCount(g model.Gene) int {
	return len(a.terms[g.Symbol])
}

// TermOverlap returns, for each candidate with at least one term in common
// with the gene, the shared terms keyed by candidate id.
func (a *Annotations) TermOverlap(g model.Gene, candidates []model.Gene) map[int64][]string {
	out := make(map[int64][]string)
	query := a.terms[g.Symbol]
	if len(query) == 0 {
		return out
	}
	for _, c := range candidates {
		var shared []string
		for id := range a.terms[c.Symbol] {
			if _, ok := query[id]; ok {
				shared = append(shared, id)
			}
		}
		if len(shared) > 0 {
			sort.Strings(shared)
			out[c.ID] = shared
		}
	}
	return out
}
