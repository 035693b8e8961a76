package quant

import "errors"

// Errors reported by the quantizers and the alpha compositor.
var (
	ErrInvalidShadeCount   = errors.New("quant: shade count must be at least 2")
	ErrInvalidClusterCount = errors.New("quant: cluster count must be at least 1")
	ErrEmptyImage          = errors.New("quant: image has no pixels")
	ErrDimensionMismatch   = errors.New("quant: alpha plane does not match buffer dimensions")
)
