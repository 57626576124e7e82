// ABOUTME: Decoder interface and extension registry
// ABOUTME: Maps file extensions to container decoders and opens files by path
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
)

// ErrUnsupportedContainer reports a file extension with no registered decoder
var ErrUnsupportedContainer = errors.New("unsupported container")

// PCM is decoded little-endian PCM and the format describing it
type PCM struct {
	Data   []byte
	Format audio.Format
	Name   string
}

// Duration returns the playing time of the PCM data
func (p PCM) Duration() time.Duration {
	return p.Format.Duration(len(p.Data))
}

// Buffer decodes the PCM data to normalized samples
func (p PCM) Buffer() (audio.Buffer, error) {
	return codec.Decode(p.Data, p.Format)
}

// Decoder reads one container stream to PCM
type Decoder interface {
	Decode(r io.Reader) (PCM, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(r io.Reader) (PCM, error)

// Decode calls f(r)
func (f DecoderFunc) Decode(r io.Reader) (PCM, error) {
	return f(r)
}

// Registry maps lower-case file extensions (without dot) to decoders
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry returns a registry with WAV, MP3, FLAC and Ogg Opus
// decoders. Opus needs the opus build tag to decode.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", WAV{})
	r.Register("wave", WAV{})
	r.Register("mp3", MP3{})
	r.Register("flac", FLAC{})
	r.Register("opus", Opus{})
	return r
}

// Register adds or replaces the decoder for ext
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normalizeExt(ext)] = d
}

// Lookup returns the decoder registered for ext
func (r *Registry) Lookup(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[normalizeExt(ext)]
	return d, ok
}

// Extensions lists registered extensions in sorted order
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// File opens path and decodes it with the decoder registered for its extension
func (r *Registry) File(path string) (PCM, error) {
	ext := filepath.Ext(path)
	d, ok := r.Lookup(ext)
	if !ok {
		return PCM{}, fmt.Errorf("%w: %q", ErrUnsupportedContainer, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	pcm, err := d.Decode(f)
	if err != nil {
		return PCM{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if pcm.Name == "" {
		base := filepath.Base(path)
		pcm.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return pcm, nil
}

// File decodes path with the default registry
func File(path string) (PCM, error) {
	return DefaultRegistry().File(path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// frameAligned drops a trailing partial frame
func frameAligned(data []byte, format audio.Format) []byte {
	size := format.FrameSize()
	if size == 0 {
		return data
	}
	return data[:len(data)-len(data)%size]
}
