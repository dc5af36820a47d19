package codec

import (
	"fmt"
	"io"

	"riskgraph/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a portfolio from YAML. Both a bare asset sequence and a
// mapping with an assets key are accepted.
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Asset, error) {
	var root yaml.Node
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	switch doc.Kind {
	case yaml.SequenceNode:
		var assets []domain.Asset
		if err := doc.Decode(&assets); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return assets, nil
	case yaml.MappingNode:
		var p Portfolio
		if err := doc.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return p.Assets, nil
	default:
		return nil, fmt.Errorf("failed to parse YAML: expected a list of assets or an assets mapping")
	}
}

// Export exports a portfolio to YAML
func (c *YAMLCodec) Export(assets []domain.Asset, w io.Writer) error {
	return c.encode(Portfolio{Assets: assets}, w)
}

// ExportGraph exports nodes and edges to YAML
func (c *YAMLCodec) ExportGraph(graph domain.Graph, w io.Writer) error {
	return c.encode(&graph, w)
}

func (c *YAMLCodec) encode(v interface{}, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
