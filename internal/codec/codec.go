package codec

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"riskgraph/internal/domain"
)

// ErrInvalidPortfolio is wrapped by every validation failure
var ErrInvalidPortfolio = errors.New("invalid portfolio")

// Portfolio is the document form of a holdings list
type Portfolio struct {
	Assets []domain.Asset `json:"assets" yaml:"assets"`
}

// Importer interface for importing portfolios from various formats
type Importer interface {
	Parse(r io.Reader) ([]domain.Asset, error)
	Format() string
}

// Exporter interface for exporting portfolios and graphs to various formats
type Exporter interface {
	Export(assets []domain.Asset, w io.Writer) error
	ExportGraph(graph domain.Graph, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for a format name. The empty name selects JSON.
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatFromContentType maps a request Content-Type to a format name
func FormatFromContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "json"
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return "yaml"
	default:
		return "json"
	}
}

// FormatFromPath maps a file extension to a format name
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// ParseFile reads and validates a portfolio file
func ParseFile(path string) ([]domain.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open portfolio: %w", err)
	}
	defer f.Close()

	c, err := ForFormat(FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	assets, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Normalize(assets)
}

// Normalize upper-cases tickers and trims sectors. Empty portfolios, blank
// or duplicate tickers and negative weights are rejected.
func Normalize(assets []domain.Asset) ([]domain.Asset, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInvalidPortfolio)
	}

	out := make([]domain.Asset, 0, len(assets))
	seen := make(map[string]bool, len(assets))
	for i, a := range assets {
		a.Ticker = domain.NormalizeTicker(a.Ticker)
		a.Sector = strings.TrimSpace(a.Sector)
		if a.Ticker == "" {
			return nil, fmt.Errorf("%w: asset %d has no ticker", ErrInvalidPortfolio, i)
		}
		if seen[a.Ticker] {
			return nil, fmt.Errorf("%w: duplicate ticker %s", ErrInvalidPortfolio, a.Ticker)
		}
		if a.Weight < 0 {
			return nil, fmt.Errorf("%w: negative weight for %s", ErrInvalidPortfolio, a.Ticker)
		}
		seen[a.Ticker] = true
		out = append(out, a)
	}
	return out, nil
}
