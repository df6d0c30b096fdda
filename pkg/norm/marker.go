package norm

import (
	"fmt"
	"math"
	"sort"

	"github.com/njohner/Methods-in-Microbiomics/logger"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"go.uber.org/zap"
)

// MarkerSet is the collection of KO identifiers treated as universal
// single-copy marker genes. It is configuration, injected into Markers, so a
// different catalog or organism domain can swap its own set in.
type MarkerSet map[string]bool

// NewMarkerSet builds a MarkerSet from KO identifiers.
func NewMarkerSet(kos ...string) MarkerSet {
	s := make(MarkerSet, len(kos))
	for _, ko := range kos {
		s[ko] = true
	}
	return s
}

// KOs returns the set's members in sorted order.
func (s MarkerSet) KOs() []string {
	kos := make([]string, 0, len(s))
	for ko := range s {
		kos = append(kos, ko)
	}
	sort.Strings(kos)
	return kos
}

// DefaultMarkers is the set of 10 universal single-copy phylogenetic marker
// genes (the mOTU MGs), by KO.
var DefaultMarkers = NewMarkerSet(
	"K01409", // tsaD/kae1
	"K01869", // leuS
	"K01873", // valS
	"K01875", // serS
	"K01883", // cysS
	"K01887", // argS
	"K01889", // pheS
	"K03106", // ffh
	"K03110", // ftsY
	"K06942", // ychF
)

// minMarkerMedian guards the division step: a marker median at or below this
// is indistinguishable from a sample without marker signal.
const minMarkerMedian = 1e-12

// MarkerMedians returns, per sample, the median of the per-marker-KO summed
// abundances in m. A KO spanning several catalog references contributes one
// summed value. An error is returned if no marker KO is present in the
// matrix, or if any sample's median is zero, near zero, or NaN.
func MarkerMedians(m *profile.Matrix, markers MarkerSet) ([]float64, error) {

	// Row indexes per marker KO; presence is a property of the catalog, so
	// it is shared by all samples.
	rowsByKO := make(map[string][]int)
	for i, gene := range m.Genes {
		if markers[gene.KO] {
			rowsByKO[gene.KO] = append(rowsByKO[gene.KO], i)
		}
	}

	if len(rowsByKO) == 0 {
		return nil, fmt.Errorf("norm: none of the %d marker genes are present in the matrix", len(markers))
	}
	if len(rowsByKO) < len(markers) {
		logger.Warn("Marker genes absent from the gene catalog, median taken over the present subset",
			zap.Int("present", len(rowsByKO)),
			zap.Int("expected", len(markers)))
	}

	medians := make([]float64, len(m.Samples))
	sums := make([]float64, 0, len(rowsByKO))
	for j, sample := range m.Samples {
		sums = sums[:0]
		for _, rows := range rowsByKO {
			var s float64
			for _, i := range rows {
				s += m.Counts[i][j]
			}
			sums = append(sums, s)
		}

		med := Median(sums)
		if math.IsNaN(med) || med <= minMarkerMedian {
			return nil, fmt.Errorf("norm: sample %s has a marker median of %v, cannot normalise by it", sample, med)
		}
		medians[j] = med
	}

	return medians, nil
}

// Markers returns a copy of m with every sample column divided by that
// sample's marker median, turning length-normalised abundances into
// per-cell abundances.
func Markers(m *profile.Matrix, markers MarkerSet) (*profile.Matrix, error) {

	medians, err := MarkerMedians(m, markers)
	if err != nil {
		return nil, err
	}

	out := m.Clone()
	for _, row := range out.Counts {
		for j, v := range row {
			row[j] = v / medians[j]
		}
	}

	return out, nil
}
