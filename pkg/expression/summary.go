package expression

import (
	"math"
	"sort"

	"github.com/njohner/Methods-in-Microbiomics/pkg/norm"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
	"gonum.org/v1/gonum/stat"
)

// PairSummary condenses a sample pair's expression records into the numbers
// a gene-vs-transcript scatter plot is usually annotated with.
type PairSummary struct {
	Pair             profile.SamplePair `json:"pair"`
	Records          int                `json:"records"`
	Finite           int                `json:"finite"`
	MedianExpression float64            `json:"median_expression"`
	LogCorrelation   float64            `json:"log_correlation"`
}

// Summarize groups records by sample pair and reports, per pair, the record
// counts, the median expression, and the Pearson correlation between log10
// gene and log10 transcript abundance. Only finite records with abundance on
// both sides enter the median and the correlation.
func Summarize(records []Record) []PairSummary {

	byPair := make(map[profile.SamplePair][]Record)
	for _, rec := range records {
		byPair[rec.Pair] = append(byPair[rec.Pair], rec)
	}

	pairs := make([]profile.SamplePair, 0, len(byPair))
	for pair := range byPair {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].Name() < pairs[b].Name() })

	summaries := make([]PairSummary, 0, len(pairs))
	for _, pair := range pairs {
		recs := byPair[pair]

		var expr, logG, logT []float64
		for _, rec := range recs {
			if !rec.Finite() {
				continue
			}
			expr = append(expr, rec.Expression)
			if rec.GeneAbundance > 0 && rec.TranscriptAbundance > 0 {
				logG = append(logG, math.Log10(rec.GeneAbundance))
				logT = append(logT, math.Log10(rec.TranscriptAbundance))
			}
		}

		s := PairSummary{
			Pair:             pair,
			Records:          len(recs),
			Finite:           len(expr),
			MedianExpression: norm.Median(expr),
			LogCorrelation:   math.NaN(),
		}
		if len(logG) > 1 {
			s.LogCorrelation = stat.Correlation(logG, logT, nil)
		}
		summaries = append(summaries, s)
	}

	return summaries
}
