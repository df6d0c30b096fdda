package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteMatrix writes m as a tab-separated table using the same schema the
// reader accepts, so a written matrix can be loaded back.
func WriteMatrix(w io.Writer, m *Matrix) error {

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append(append([]string(nil), matrixHeader...), m.Samples...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write count matrix header: %w", err)
	}

	fields := make([]string, len(header))
	for i, gene := range m.Genes {
		fields[0] = gene.Reference
		fields[1] = strconv.FormatFloat(gene.Length, 'g', -1, 64)
		fields[2] = gene.Description
		fields[3] = gene.KO
		for j, v := range m.Counts[i] {
			fields[4+j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("write count matrix row %s: %w", gene.Reference, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveMatrix writes m to a file at path.
func SaveMatrix(path string, m *Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := WriteMatrix(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
