package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pevans/shelfwatch/product"
)

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []product.Record) error {
	if records == nil {
		records = []product.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ReadJSON parses output of WriteJSON.
func ReadJSON(r io.Reader) ([]product.Record, error) {
	var records []product.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return records, nil
}
