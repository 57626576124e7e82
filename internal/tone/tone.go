// ABOUTME: Test tone generator
// ABOUTME: Generates a continuous sine wave as normalized buffers or PCM bytes
package tone

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
)

const (
	// DefaultFrequency is A4
	DefaultFrequency = 440.0
	// DefaultAmplitude plays at half scale
	DefaultAmplitude = 0.5
)

// Source generates a phase-continuous sine tone in a fixed format
type Source struct {
	format    audio.Format
	frequency float64
	amplitude float64

	mu          sync.Mutex
	sampleIndex uint64
}

// New creates a tone source at format
func New(format audio.Format, frequency, amplitude float64) (*Source, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frequency <= 0 || frequency >= float64(format.SampleRate)/2 {
		return nil, fmt.Errorf("frequency %gHz outside (0, %gHz)", frequency, float64(format.SampleRate)/2)
	}
	if amplitude < 0 || amplitude > 1 {
		return nil, fmt.Errorf("amplitude %g outside [0, 1]", amplitude)
	}
	return &Source{format: format, frequency: frequency, amplitude: amplitude}, nil
}

// Format returns the output format
func (s *Source) Format() audio.Format { return s.format }

// Next returns the next frames of the tone, same value on every channel
func (s *Source) Next(frames int) audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := int(s.format.Channels)
	samples := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		v := s.amplitude * math.Sin(2*math.Pi*s.frequency*t)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	s.sampleIndex += uint64(frames)

	return audio.Buffer{Format: s.format, Samples: samples}
}

// Read fills p with whole frames of PCM; it never returns an error
func (s *Source) Read(p []byte) (int, error) {
	frames := len(p) / s.format.FrameSize()
	if frames == 0 {
		return 0, nil
	}
	return copy(p, codec.Encode(s.Next(frames), s.format)), nil
}

// PCM returns d worth of the tone as PCM bytes
func (s *Source) PCM(d time.Duration) []byte {
	frames := int(d.Seconds() * float64(s.format.SampleRate))
	return codec.Encode(s.Next(frames), s.format)
}
