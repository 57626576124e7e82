//go:build !opus

// ABOUTME: Opus decoder stub when libopusfile is not available
// ABOUTME: Keeps the .opus extension registered but reports that support is disabled
package decode

import (
	"fmt"
	"io"
)

// Opus decoding needs cgo and libopusfile (build with -tags opus)
type Opus struct{}

// Decode always fails without the opus build tag
func (Opus) Decode(r io.Reader) (PCM, error) {
	return PCM{}, fmt.Errorf("%w: opus support not enabled (build with -tags opus)", ErrUnsupportedContainer)
}
