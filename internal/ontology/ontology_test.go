package ontology

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-coexp/internal/model"
)

const testGAF = `!gaf-version: 2.2
!generated-by: GOC
UniProtKB	P04637	TP53		GO:0006915	PMID:1	IDA		P	Cellular tumor antigen p53	P53	protein	taxon:9606	20200101	UniProt
UniProtKB	P04637	TP53		GO:0005634	PMID:1	IDA		C	Cellular tumor antigen p53	P53	protein	taxon:9606	20200101	UniProt
UniProtKB	Q00987	MDM2		GO:0005634	PMID:2	IDA		C	E3 ubiquitin-protein ligase	MDM2	protein	taxon:9606	20200101	UniProt
UniProtKB	Q00987	MDM2	NOT	GO:0006915	PMID:2	IDA		P	E3 ubiquitin-protein ligase	MDM2	protein	taxon:9606	20200101	UniProt
UniProtKB	P38398	BRCA1		GO:0006281	PMID:3	IDA		P	Breast cancer type 1	BRCA1	protein	taxon:9606	20200101	UniProt
short	line
`

func TestReadGAF(t *testing.T) {
	a, err := ReadGAF(strings.NewReader(testGAF))
	require.NoError(t, err)
	assert.True(t, a.Loaded())
	assert.Equal(t, 3, a.GeneCount())
	assert.Equal(t, []string{"GO:0005634", "GO:0006915"}, a.Terms("TP53"))
	assert.Equal(t, []string{"GO:0005634"}, a.Terms("MDM2"), "NOT qualifier must be skipped")
}

func TestLoadGAF_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goa_test.gaf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testGAF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	a, err := LoadGAF(path)
	require.NoError(t, err)
	assert.Equal(t, 3, a.GeneCount())
}

func TestLoadGAF_NotFound(t *testing.T) {
	_, err := LoadGAF("/nonexistent/goa.gaf")
	assert.Error(t, err)
}

func TestTermOverlap(t *testing.T) {
	a, err := ReadGAF(strings.NewReader(testGAF))
	require.NoError(t, err)

	tp53 := model.Gene{ID: 1, Symbol: "TP53"}
	mdm2 := model.Gene{ID: 2, Symbol: "MDM2"}
	brca1 := model.Gene{ID: 3, Symbol: "BRCA1"}

	assert.Equal(t, 2, a.TermCount(tp53))
	overlap := a.TermOverlap(tp53, []model.Gene{mdm2, brca1})
	assert.Equal(t, map[int64][]string{2: {"GO:0005634"}}, overlap)
}

func TestNotLoaded(t *testing.T) {
	var a *Annotations
	assert.False(t, a.Loaded())
	assert.False(t, New().Loaded())
}
