package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"riskgraph/internal/domain"
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

// Parse imports a portfolio from JSON. Both a bare asset array and an
// {"assets": [...]} document are accepted.
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var assets []domain.Asset
		if err := json.Unmarshal(data, &assets); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return assets, nil
	}

	var doc Portfolio
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc.Assets, nil
}

// Export exports a portfolio to JSON
func (c *JSONCodec) Export(assets []domain.Asset, w io.Writer) error {
	return c.encode(Portfolio{Assets: assets}, w)
}

// ExportGraph exports nodes and edges to JSON
func (c *JSONCodec) ExportGraph(graph domain.Graph, w io.Writer) error {
	return c.encode(graph, w)
}

func (c *JSONCodec) encode(v interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
