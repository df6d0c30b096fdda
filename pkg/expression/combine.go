// Package expression combines per-cell-normalised metagenomic and
// metatranscriptomic abundances into per-gene expression levels.
package expression

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/njohner/Methods-in-Microbiomics/logger"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"go.uber.org/zap"
)

// Record is the expression of one orthologous group in one sample pair.
type Record struct {
	KO                  string
	Pair                profile.SamplePair
	GeneAbundance       float64
	TranscriptAbundance float64
	Expression          float64
}

// Finite reports whether the record's expression is usable in downstream
// statistics. Transcripts observed for a gene that is absent from the
// metagenome give a +Inf expression; such records are kept but flagged.
func (r Record) Finite() bool {
	return !math.IsInf(r.Expression, 0) && !math.IsNaN(r.Expression)
}

// MarshalJSON flattens the sample pair and emits null for a non-finite
// expression, which encoding/json cannot represent as a number.
func (r Record) MarshalJSON() ([]byte, error) {
	var expr *float64
	if r.Finite() {
		expr = &r.Expression
	}
	return json.Marshal(struct {
		KO                  string   `json:"ko"`
		SampleMetag         string   `json:"sample_metag"`
		SampleMetat         string   `json:"sample_metat"`
		SamplePair          string   `json:"sample_pair"`
		GeneAbundance       float64  `json:"gene_abundance"`
		TranscriptAbundance float64  `json:"transcript_abundance"`
		Expression          *float64 `json:"expression"`
	}{
		KO:                  r.KO,
		SampleMetag:         r.Pair.Metag,
		SampleMetat:         r.Pair.Metat,
		SamplePair:          r.Pair.Name(),
		GeneAbundance:       r.GeneAbundance,
		TranscriptAbundance: r.TranscriptAbundance,
		Expression:          expr,
	})
}

// AggregateKO returns a matrix with one row per orthologous group, each row
// summing the counts of all catalog references annotated with that KO. Rows
// without a KO annotation are dropped. The length column is not meaningful
// for an aggregated group and is set to the -1 sentinel.
func AggregateKO(m *profile.Matrix) *profile.Matrix {

	rowByKO := make(map[string]int)
	out := &profile.Matrix{Samples: append([]string(nil), m.Samples...)}

	for i, gene := range m.Genes {
		if gene.KO == "" || gene.KO == "-" {
			continue
		}
		at, ok := rowByKO[gene.KO]
		if !ok {
			at = len(out.Genes)
			rowByKO[gene.KO] = at
			out.Genes = append(out.Genes, profile.Gene{
				Reference:   gene.KO,
				Length:      -1,
				Description: gene.Description,
				KO:          gene.KO,
			})
			out.Counts = append(out.Counts, make([]float64, len(m.Samples)))
		}
		for j, v := range m.Counts[i] {
			out.Counts[at][j] += v
		}
	}

	// rows land in first-appearance order; sort by KO so downstream tables
	// are byte-stable regardless of catalog order
	order := make([]int, len(out.Genes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return out.Genes[order[a]].KO < out.Genes[order[b]].KO })

	sorted := &profile.Matrix{
		Samples: out.Samples,
		Genes:   make([]profile.Gene, len(out.Genes)),
		Counts:  make([][]float64, len(out.Counts)),
	}
	for i, from := range order {
		sorted.Genes[i] = out.Genes[from]
		sorted.Counts[i] = out.Counts[from]
	}

	return sorted
}

// Combine joins the KO-aggregated profile against the metagenomic and
// metatranscriptomic side of each sample pair and computes expression as
// transcript abundance over gene abundance.
//
// A pair whose metagenomic or metatranscriptomic sample is absent from the
// profile is excluded, not zero-filled. KOs observed on neither side of a
// pair are omitted. A zero gene abundance with observed transcripts yields a
// +Inf expression, flagged through Record.Finite.
func Combine(m *profile.Matrix, pairs []profile.SamplePair) []Record {

	var records []Record
	var excluded int

	for _, pair := range pairs {
		jg, okg := m.SampleIndex(pair.Metag)
		jt, okt := m.SampleIndex(pair.Metat)
		if !okg || !okt {
			excluded++
			logger.Warn("Sample pair absent from the profile, excluding",
				zap.String("sample_metag", pair.Metag),
				zap.String("sample_metat", pair.Metat),
				zap.Bool("metag_present", okg),
				zap.Bool("metat_present", okt))
			continue
		}

		for i, gene := range m.Genes {
			g := m.Counts[i][jg]
			t := m.Counts[i][jt]
			if g == 0 && t == 0 {
				continue
			}
			records = append(records, Record{
				KO:                  gene.KO,
				Pair:                pair,
				GeneAbundance:       g,
				TranscriptAbundance: t,
				Expression:          t / g,
			})
		}
	}

	if excluded > 0 {
		logger.Warn("Excluded sample pairs without profile columns",
			zap.Int("excluded", excluded),
			zap.Int("kept", len(pairs)-excluded))
	}

	return records
}
