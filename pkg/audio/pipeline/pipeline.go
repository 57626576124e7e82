// ABOUTME: Conversion pipeline from arbitrary PCM to the target format
// ABOUTME: Composes decode, remap, resample, normalize, shape and encode
package pipeline

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/remap"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/resample"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/shape"
	"github.com/sirupsen/logrus"
)

// Pipeline converts PCM between formats. It is configured once and holds no
// per-call state, so Convert may be called concurrently.
type Pipeline struct {
	resampler *resample.Resampler
	peak      float64
	log       *logrus.Entry
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithResampler replaces the default sinc resampler
func WithResampler(r *resample.Resampler) Option {
	return func(p *Pipeline) { p.resampler = r }
}

// WithPeakNormalize scales converted audio so its largest magnitude equals
// peak. Zero disables normalization.
func WithPeakNormalize(peak float64) Option {
	return func(p *Pipeline) { p.peak = peak }
}

// WithLogger sets the logger for stage diagnostics
func WithLogger(l *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		log: logrus.WithField("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resampler == nil {
		p.resampler = resample.New(resample.WithLogger(p.log))
	}
	return p
}

// Convert decodes data in src, converts it to dst and re-encodes it.
// A nil shaping option skips anti-gating.
func (p *Pipeline) Convert(data []byte, src, dst audio.Format, opts *shape.Options) ([]byte, error) {
	buf, err := codec.Decode(data, src)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out, err := p.ConvertBuffer(buf, dst, opts)
	if err != nil {
		return nil, err
	}
	return codec.Encode(out, dst), nil
}

// ConvertBuffer runs the normalized stages: remap, resample, normalize, shape
func (p *Pipeline) ConvertBuffer(buf audio.Buffer, dst audio.Format, opts *shape.Options) (audio.Buffer, error) {
	if err := dst.Validate(); err != nil {
		return audio.Buffer{}, err
	}

	remapped, err := remap.Remap(buf, dst.Channels)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("remap: %w", err)
	}

	resampled, err := p.resampler.Resample(remapped, dst.SampleRate)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("resample: %w", err)
	}

	if p.peak > 0 {
		resampled = Normalize(resampled, p.peak)
	}

	if opts != nil {
		resampled, err = shape.Apply(resampled, *opts)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("shape: %w", err)
		}
	}

	resampled.Format = dst
	p.log.WithFields(logrus.Fields{
		"src":    buf.Format.String(),
		"dst":    dst.String(),
		"frames": resampled.Frames(),
		"shaped": opts != nil,
	}).Debug("Converted buffer")
	return resampled, nil
}

// Normalize returns a copy of buf scaled so max |sample| equals peak.
// Silent buffers are returned unchanged.
func Normalize(buf audio.Buffer, peak float64) audio.Buffer {
	out := make([]float64, len(buf.Samples))
	maxAbs := 0.0
	for _, v := range buf.Samples {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if maxAbs == 0 {
		copy(out, buf.Samples)
		return audio.Buffer{Format: buf.Format, Samples: out}
	}

	gain := peak / maxAbs
	for i, v := range buf.Samples {
		out[i] = codec.Clip(v * gain)
	}
	return audio.Buffer{Format: buf.Format, Samples: out}
}
