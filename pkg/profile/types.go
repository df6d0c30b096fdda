package profile

// Gene is the annotation part of one row of a count matrix: one reference
// sequence from the gene catalog together with its functional assignment.
type Gene struct {
	Reference   string  `json:"reference"`
	Length      float64 `json:"length"` // -1 marks a missing length annotation
	Description string  `json:"description"`
	KO          string  `json:"ko"`
}

// Matrix is an in-memory gene abundance table: one Gene per row and one
// numeric column per sample. Counts is row-major and kept parallel to Genes;
// Counts[i][j] is the abundance of Genes[i] in Samples[j].
//
// Pipeline stages derive a fresh Matrix rather than rescaling in place, so a
// stage's input can still be inspected after the stage has run.
type Matrix struct {
	Samples []string
	Genes   []Gene
	Counts  [][]float64
}

// SamplePair links a metagenomic sample to its metatranscriptomic
// counterpart from the same filter.
type SamplePair struct {
	Metag string `json:"sample_metag"`
	Metat string `json:"sample_metat"`
}

// Name is the identifier used for the pair in output tables.
func (p SamplePair) Name() string {
	return p.Metag + ":" + p.Metat
}

// PairRecord is one row of the sample metadata table: a sample pair plus the
// environmental covariates recorded for it. Covariates not modeled
// explicitly are kept verbatim in Extra, keyed by column name.
type PairRecord struct {
	Pair        SamplePair
	MetagReads  float64
	Temperature float64
	Polar       string
	Extra       map[string]string
}

// Metadata is the parsed sample metadata table.
type Metadata struct {
	Records []PairRecord
}

// Pairs returns the metag/metat pairings in table order.
func (md *Metadata) Pairs() []SamplePair {
	pairs := make([]SamplePair, len(md.Records))
	for i, rec := range md.Records {
		pairs[i] = rec.Pair
	}
	return pairs
}

// SampleIndex returns the column position of the named sample.
func (m *Matrix) SampleIndex(name string) (int, bool) {
	for i, s := range m.Samples {
		if s == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns the abundance vector of the named sample as a fresh slice.
func (m *Matrix) Column(name string) ([]float64, bool) {
	j, ok := m.SampleIndex(name)
	if !ok {
		return nil, false
	}
	col := make([]float64, len(m.Counts))
	for i, row := range m.Counts {
		col[i] = row[j]
	}
	return col, true
}

// Clone returns a deep copy of m. Stages start from a clone so the previous
// stage's table survives untouched.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		Samples: append([]string(nil), m.Samples...),
		Genes:   append([]Gene(nil), m.Genes...),
		Counts:  make([][]float64, len(m.Counts)),
	}
	for i, row := range m.Counts {
		c.Counts[i] = append([]float64(nil), row...)
	}
	return c
}
