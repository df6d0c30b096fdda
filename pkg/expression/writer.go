package expression

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// tableHeader is the schema of the combined expression table.
var tableHeader = []string{
	"KO", "sample_metag", "sample_metat", "sample_pair",
	"gene_abundance", "transcript_abundance", "expression",
}

// WriteTable writes the combined expression records as a tab-separated
// table. Non-finite expression values are stamped as NA so plotting tools
// can drop or flag them.
func WriteTable(w io.Writer, records []Record) error {

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("write expression header: %w", err)
	}

	for _, rec := range records {
		expr := "NA"
		if rec.Finite() {
			expr = strconv.FormatFloat(rec.Expression, 'g', -1, 64)
		}
		err := cw.Write([]string{
			rec.KO,
			rec.Pair.Metag,
			rec.Pair.Metat,
			rec.Pair.Name(),
			strconv.FormatFloat(rec.GeneAbundance, 'g', -1, 64),
			strconv.FormatFloat(rec.TranscriptAbundance, 'g', -1, 64),
			expr,
		})
		if err != nil {
			return fmt.Errorf("write expression record %s/%s: %w", rec.KO, rec.Pair.Name(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveTable writes the expression table to a file at path.
func SaveTable(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := WriteTable(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
