package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"segweaver/internal/core"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// IndexColumn drops the first column (a row index written by the producer).
	IndexColumn bool
}

// ReadCSV parses a header-first CSV document into a Frame.
//
// A column is Numeric when every cell parses as a float64; otherwise it is
// Categorical and keeps the raw strings. No cleaning is attempted.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "csv", "missing header row")
	}

	header := records[0]
	body := records[1:]
	start := 0
	if opts.IndexColumn {
		start = 1
	}
	if len(header) <= start {
		return nil, core.Errorf(core.ErrInvalidParameter, "csv", "no data columns")
	}

	cols := make([]Column, 0, len(header)-start)
	for j := start; j < len(header); j++ {
		name := strings.TrimSpace(header[j])
		raw := make([]string, len(body))
		for i, rec := range body {
			if len(rec) != len(header) {
				return nil, core.Errorf(core.ErrShapeMismatch, "csv", "row %d has %d fields, header has %d", i+1, len(rec), len(header))
			}
			raw[i] = rec[j]
		}
		cols = append(cols, inferColumn(name, raw))
	}
	return New(cols...)
}

func inferColumn(name string, raw []string) Column {
	nums := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return CategoricalColumn(name, raw)
		}
		nums[i] = v
	}
	return NumericColumn(name, nums)
}

// WriteCSV writes f as a header-first CSV document.
// Numeric values use the shortest representation that round-trips.
func WriteCSV(w io.Writer, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	rec := make([]string, len(f.Columns))
	for i := 0; i < f.Len(); i++ {
		for j, c := range f.Columns {
			if c.Kind == Numeric {
				rec[j] = strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
			} else {
				rec[j] = c.Strs[i]
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
