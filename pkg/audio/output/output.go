// ABOUTME: Audio output interface definition
// ABOUTME: Common interface, optional capabilities and backend factory
package output

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/sirupsen/logrus"
)

const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"

	// DefaultBufferDuration sizes backend-side buffering
	DefaultBufferDuration = 500 * time.Millisecond
	// DefaultFramesPerBuffer is the device period used by blocking backends
	DefaultFramesPerBuffer = 1024
)

var (
	// ErrNotOpen reports a write to an output that is not open
	ErrNotOpen = errors.New("output not open")
	// ErrUnknownBackend reports an unrecognized backend name
	ErrUnknownBackend = errors.New("unknown output backend")
)

// Output represents an audio output device
type Output interface {
	// Open initializes the device at format
	Open(format audio.Format) error

	// Write plays PCM bytes in the opened format (blocks until accepted)
	Write(data []byte) error

	// Close releases device resources
	Close() error
}

// Drainer is implemented by outputs that can report when queued audio has
// finished playing
type Drainer interface {
	Drain(ctx context.Context) error
}

// LatencyReporter is implemented by outputs that know how much audio they
// have accepted but not yet played
type LatencyReporter interface {
	Latency() time.Duration
}

// Config selects and sizes an output device
type Config struct {
	// DeviceName opens the playback device with this exact name. Empty
	// selects the system default.
	DeviceName string

	// DeviceIndex selects a PortAudio device by index when >= 0
	DeviceIndex int

	// BufferDuration sizes the backend ring buffer
	BufferDuration time.Duration

	// FramesPerBuffer is the period of blocking backends
	FramesPerBuffer int

	Logger *logrus.Entry
}

// DefaultConfig returns a config for the default device
func DefaultConfig() Config {
	return Config{
		DeviceIndex:     -1,
		BufferDuration:  DefaultBufferDuration,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

func (c Config) withDefaults() Config {
	if c.BufferDuration <= 0 {
		c.BufferDuration = DefaultBufferDuration
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.Logger == nil {
		c.Logger = logrus.WithField("component", "output")
	}
	return c
}

// New creates an output for the named backend
func New(backend string, cfg Config) (Output, error) {
	switch backend {
	case "", BackendMalgo:
		return NewMalgo(cfg), nil
	case BackendOto:
		return NewOto(cfg), nil
	case BackendPortAudio:
		return NewPortAudio(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s, %s)",
			ErrUnknownBackend, backend, BackendMalgo, BackendOto, BackendPortAudio)
	}
}

// Backends lists the backend names accepted by New
func Backends() []string {
	return []string{BackendMalgo, BackendOto, BackendPortAudio}
}
