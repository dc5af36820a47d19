package domain

// Position is a node location in percentage-of-canvas units
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPosition creates a new position
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Asset column layout
const (
	assetColumnX = 80.0
	assetTopY    = 10.0
	assetBottomY = 90.0
	maxSpacing   = 18.0
)

// AssetSpacing returns the vertical gap between n stacked asset nodes.
// Nodes are spread over [10, 90] but never further apart than 18.
func AssetSpacing(n int) float64 {
	if n <= 1 {
		return 0
	}
	spacing := (assetBottomY - assetTopY) / float64(n-1)
	if spacing > maxSpacing {
		return maxSpacing
	}
	return spacing
}

// AssetPosition returns the position of the i-th of n asset nodes
func AssetPosition(i, n int) Position {
	return NewPosition(assetColumnX, assetTopY+float64(i)*AssetSpacing(n))
}
