package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// JSONLWriter streams records to a newline-delimited JSON file.
type JSONLWriter struct {
	fh  *os.File
	enc *json.Encoder
}

// NewJSONLWriter creates (or truncates) the output file.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create jsonl output: %w", err)
	}
	return &JSONLWriter{fh: fh, enc: json.NewEncoder(fh)}, nil
}

// Write appends one record.
func (w *JSONLWriter) Write(rec types.Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *JSONLWriter) Close() error {
	return w.fh.Close()
}
