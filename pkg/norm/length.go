package norm

import (
	"errors"
	"fmt"

	"github.com/njohner/Methods-in-Microbiomics/logger"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"go.uber.org/zap"
)

// ErrNoPositiveLengths is returned when a matrix carries no positive gene
// lengths at all, leaving the repair median undefined.
var ErrNoPositiveLengths = errors.New("norm: no positive gene lengths to compute a repair median from")

// Lengths returns a copy of m with every sample value divided by its gene's
// length. Genes with a missing length annotation (length == -1) are first
// assigned the median of all positive lengths in the matrix; the repaired
// value is what the returned matrix carries in its length column.
func Lengths(m *profile.Matrix) (*profile.Matrix, error) {

	out := m.Clone()

	var positive []float64
	var missing int
	for _, gene := range out.Genes {
		if gene.Length > 0 {
			positive = append(positive, gene.Length)
		} else {
			missing++
		}
	}

	if len(out.Genes) > 0 && len(positive) == 0 {
		return nil, ErrNoPositiveLengths
	}

	if missing > 0 {
		repair := Median(positive)
		logger.Warn("Genes without length annotation, substituting the median length",
			zap.Int("genes", missing),
			zap.Float64("median_length", repair))
		for i := range out.Genes {
			if out.Genes[i].Length < 0 {
				out.Genes[i].Length = repair
			}
		}
	}

	for i, row := range out.Counts {
		length := out.Genes[i].Length
		if length <= 0 {
			return nil, fmt.Errorf("norm: gene %s has non-positive length %v after repair",
				out.Genes[i].Reference, length)
		}
		for j, v := range row {
			row[j] = v / length
		}
	}

	return out, nil
}
