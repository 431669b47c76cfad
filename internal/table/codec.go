package table

import (
	"fmt"
	"math"

	"github.com/bytedance/sonic"

	"segweaver/internal/core"
)

// codec is the canonical JSON configuration for Frame payloads.
//
// Map keys are sorted so that Encode is a pure function of the Frame, which
// makes the encoded bytes usable as a content digest.
var codec = sonic.Config{
	SortMapKeys:           true,
	ValidateString:        true,
	CopyString:            true,
	DisallowUnknownFields: true,
}.Froze()

// Encode returns the canonical encoding of f.
//
// Encoding is lossless for every finite float64 (shortest round-trip form).
// NaN and ±Inf have no JSON representation and are rejected.
func Encode(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	for _, c := range f.Columns {
		for i, v := range c.Nums {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, core.Errorf(core.ErrInvalidParameter, "table", "column %q row %d is not finite", c.Name, i)
			}
		}
	}
	b, err := codec.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return b, nil
}

// Decode parses a payload produced by Encode and validates its shape.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := codec.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("decoded frame: %w", err)
	}
	return &f, nil
}

// Digest returns the sha256 hex digest of the canonical encoding of f.
func Digest(f *Frame) (string, error) {
	b, err := Encode(f)
	if err != nil {
		return "", err
	}
	return core.Digest(b), nil
}
