package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/pevans/shelfwatch/product"
)

// CSVOptions configures the tabular encoding. A zero Delimiter means a comma.
type CSVOptions struct {
	Delimiter rune
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// WriteCSV writes a header row followed by one row per record. Fields
// containing the delimiter or a quote are quoted, with inner quotes doubled.
func WriteCSV(w io.Writer, records []product.Record, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(cells(rec)); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ReadCSV parses output of WriteCSV. Columns are matched by header name, so
// reordered or extra columns are tolerated.
func ReadCSV(r io.Reader, opts CSVOptions) ([]product.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.delimiter()
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []product.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	records := []product.Record{}
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}

		rec, err := record(row)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
