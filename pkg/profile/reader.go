// Readers for the two tabular inputs: the gene catalog count matrix
// (tab-separated, optionally gzipped) and the sample metadata table
// (comma-separated).

package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/njohner/Methods-in-Microbiomics/internal/util"
	"github.com/njohner/Methods-in-Microbiomics/logger"
	"go.uber.org/zap"
)

// The fixed annotation columns expected to lead the count matrix header.
// Everything after them is taken as a sample column.
var matrixHeader = []string{"reference", "length", "Description", "KO"}

// ReadMatrix parses a tab-separated count matrix. The header must carry the
// four annotation columns followed by at least one sample column; counts must
// be non-negative and lengths positive, except for the -1 sentinel marking a
// missing length annotation.
func ReadMatrix(r io.Reader) (*Matrix, error) {

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read count matrix header: %w", err)
	}

	if len(header) < len(matrixHeader)+1 {
		return nil, fmt.Errorf("count matrix has no sample columns: %q", header)
	}
	for i, want := range matrixHeader {
		if strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("count matrix column %d is %q, want %q", i+1, header[i], want)
		}
	}

	m := &Matrix{Samples: append([]string(nil), header[len(matrixHeader):]...)}

	for lineno := 2; ; lineno++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read count matrix line %d: %w", lineno, err)
		}

		length, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("count matrix line %d: bad length %q: %w", lineno, fields[1], err)
		}
		if length <= 0 && length != -1 {
			return nil, fmt.Errorf("count matrix line %d: length %v is neither positive nor -1", lineno, length)
		}

		counts := make([]float64, len(m.Samples))
		for j, field := range fields[len(matrixHeader):] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("count matrix line %d, sample %s: bad count %q: %w",
					lineno, m.Samples[j], field, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("count matrix line %d, sample %s: negative count %v",
					lineno, m.Samples[j], v)
			}
			counts[j] = v
		}

		m.Genes = append(m.Genes, Gene{
			Reference:   fields[0],
			Length:      length,
			Description: fields[2],
			KO:          fields[3],
		})
		m.Counts = append(m.Counts, counts)
	}

	logger.Debug("Loaded count matrix",
		zap.Int("genes", len(m.Genes)),
		zap.Int("samples", len(m.Samples)))

	return m, nil
}

// LoadMatrix reads a count matrix from a file, decompressing .gz transparently.
func LoadMatrix(path string) (*Matrix, error) {
	r, err := util.OpenMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("open count matrix: %w", err)
	}
	defer r.Close()

	m, err := ReadMatrix(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadMetadata parses the comma-separated sample metadata table. The
// sample_metag and sample_metat columns are required and their pairing must
// be one-to-one; known covariate columns are parsed into fields and any
// remaining columns are kept as strings.
func ReadMetadata(r io.Reader) (*Metadata, error) {

	cr := csv.NewReader(r)
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read metadata header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"sample_metag", "sample_metat"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("metadata is missing the %s column", required)
		}
	}

	known := map[string]bool{
		"sample_metag": true, "sample_metat": true,
		"sample_metag_nreads": true, "Temperature": true, "polar": true,
	}

	md := &Metadata{}
	seenMetag := make(map[string]bool)
	seenMetat := make(map[string]bool)

	for lineno := 2; ; lineno++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata line %d: %w", lineno, err)
		}

		rec := PairRecord{
			Pair: SamplePair{
				Metag: fields[col["sample_metag"]],
				Metat: fields[col["sample_metat"]],
			},
			Extra: make(map[string]string),
		}

		if rec.Pair.Metag == "" || rec.Pair.Metat == "" {
			return nil, fmt.Errorf("metadata line %d: empty sample identifier", lineno)
		}
		if seenMetag[rec.Pair.Metag] || seenMetat[rec.Pair.Metat] {
			return nil, fmt.Errorf("metadata line %d: sample pair %s/%s breaks the one-to-one mapping",
				lineno, rec.Pair.Metag, rec.Pair.Metat)
		}
		seenMetag[rec.Pair.Metag] = true
		seenMetat[rec.Pair.Metat] = true

		if i, ok := col["sample_metag_nreads"]; ok {
			rec.MetagReads, err = strconv.ParseFloat(fields[i], 64)
			if err != nil {
				logger.Warn("Bad sample_metag_nreads value, keeping 0",
					zap.Int("line", lineno), zap.String("value", fields[i]))
				rec.MetagReads = 0
			}
		}
		if i, ok := col["Temperature"]; ok {
			rec.Temperature, err = strconv.ParseFloat(fields[i], 64)
			if err != nil {
				logger.Warn("Bad Temperature value, keeping 0",
					zap.Int("line", lineno), zap.String("value", fields[i]))
				rec.Temperature = 0
			}
		}
		if i, ok := col["polar"]; ok {
			rec.Polar = fields[i]
		}
		for name, i := range col {
			if !known[name] {
				rec.Extra[name] = fields[i]
			}
		}

		md.Records = append(md.Records, rec)
	}

	logger.Debug("Loaded sample metadata", zap.Int("pairs", len(md.Records)))

	return md, nil
}

// LoadMetadata reads the metadata table from a file, decompressing .gz
// transparently.
func LoadMetadata(path string) (*Metadata, error) {
	r, err := util.OpenMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer r.Close()

	md, err := ReadMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}
