package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports documents from a JSON array
func (c *JSONCodec) Parse(r io.Reader) ([]Document, error) {
	var docs []Document
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return docs, nil
}

// Export exports documents as a JSON array
func (c *JSONCodec) Export(docs []Document, w io.Writer) error {
	if docs == nil {
		docs = []Document{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
