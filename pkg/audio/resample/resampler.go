// ABOUTME: Sample rate converter for normalized buffers
// ABOUTME: Sinc resampling per channel with a flagged linear interpolation fallback
package resample

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/sirupsen/logrus"
	resampler "github.com/tphakala/go-audio-resampler"
	"golang.org/x/sync/errgroup"
)

// Method selects the interpolation algorithm
type Method int

const (
	// MethodSinc uses the band-limited sinc engine
	MethodSinc Method = iota
	// MethodLinear uses linear interpolation (degraded fidelity)
	MethodLinear
)

func (m Method) String() string {
	switch m {
	case MethodSinc:
		return "sinc"
	case MethodLinear:
		return "linear"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Quality selects the sinc engine precision
type Quality int

const (
	// QualityMedium trades stopband attenuation for speed
	QualityMedium Quality = iota
	// QualityHigh is the default, suited to music playback
	QualityHigh
	// QualityVeryHigh is the mastering preset
	QualityVeryHigh
)

var errLinearForced = errors.New("linear interpolation selected")

// Fallback describes a conversion that was served by linear interpolation
type Fallback struct {
	FromRate uint32
	ToRate   uint32
	Channels uint8
	Reason   error
}

// engine converts one channel plane between rates
type engine func(in []float64, fromRate, toRate float64) ([]float64, error)

// Resampler converts buffers between sample rates.
// It holds no per-stream state and is safe for concurrent use.
type Resampler struct {
	quality    Quality
	method     Method
	log        *logrus.Entry
	onFallback func(Fallback)
	sinc       engine
	fallbacks  atomic.Int64
}

// Option configures a Resampler
type Option func(*Resampler)

// WithQuality sets the sinc engine quality preset
func WithQuality(q Quality) Option {
	return func(r *Resampler) { r.quality = q }
}

// WithMethod forces an interpolation method
func WithMethod(m Method) Option {
	return func(r *Resampler) { r.method = m }
}

// WithLogger sets the logger used for fallback warnings
func WithLogger(l *logrus.Entry) Option {
	return func(r *Resampler) { r.log = l }
}

// WithFallbackHandler registers a callback invoked whenever linear
// interpolation serves a conversion
func WithFallbackHandler(fn func(Fallback)) Option {
	return func(r *Resampler) { r.onFallback = fn }
}

// New creates a resampler
func New(opts ...Option) *Resampler {
	r := &Resampler{
		quality: QualityHigh,
		method:  MethodSinc,
		log:     logrus.WithField("component", "resample"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sinc == nil {
		r.sinc = r.sincChannel
	}
	return r
}

// Resample returns a new buffer at targetRate. A buffer already at
// targetRate is returned as an equal copy.
func (r *Resampler) Resample(buf audio.Buffer, targetRate uint32) (audio.Buffer, error) {
	from := buf.Format.SampleRate
	if from == 0 || targetRate == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: invalid rates %d -> %d", audio.ErrResampling, from, targetRate)
	}
	channels := int(buf.Format.Channels)
	if channels == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: zero channels", audio.ErrUnsupportedChannelLayout)
	}

	format := buf.Format
	format.SampleRate = targetRate

	if from == targetRate {
		out := make([]float64, len(buf.Samples))
		copy(out, buf.Samples)
		return audio.Buffer{Format: format, Samples: out}, nil
	}

	inFrames := len(buf.Samples) / channels
	outFrames := OutputFrames(inFrames, from, targetRate)
	if outFrames == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: %d frames at %dHz yields no output at %dHz",
			audio.ErrResampling, inFrames, from, targetRate)
	}

	planes := deinterleave(buf.Samples, channels)

	var converted [][]float64
	var reason error
	if r.method == MethodSinc {
		converted, reason = r.convertSinc(planes, from, targetRate, outFrames)
	} else {
		reason = errLinearForced
	}

	if reason != nil {
		r.reportFallback(Fallback{FromRate: from, ToRate: targetRate, Channels: buf.Format.Channels, Reason: reason})
		converted = make([][]float64, channels)
		for ch, plane := range planes {
			converted[ch] = Linear(plane, outFrames)
		}
	}

	return audio.Buffer{Format: format, Samples: interleave(converted, outFrames)}, nil
}

// Fallbacks returns how many conversions were served by linear interpolation
func (r *Resampler) Fallbacks() int64 {
	return r.fallbacks.Load()
}

// convertSinc resamples every channel concurrently and fits each to outFrames
func (r *Resampler) convertSinc(planes [][]float64, from, to uint32, outFrames int) ([][]float64, error) {
	out := make([][]float64, len(planes))

	var g errgroup.Group
	for ch, plane := range planes {
		g.Go(func() error {
			res, err := r.sinc(plane, float64(from), float64(to))
			if err != nil {
				return fmt.Errorf("channel %d: %w", ch, err)
			}
			if len(res) == 0 {
				return fmt.Errorf("channel %d: sinc engine returned no samples", ch)
			}
			out[ch] = fit(res, outFrames)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resampler) sincChannel(in []float64, fromRate, toRate float64) ([]float64, error) {
	switch r.quality {
	case QualityMedium:
		return resampler.ResampleMono(in, fromRate, toRate, resampler.QualityMedium)
	case QualityVeryHigh:
		return resampler.ResampleMono(in, fromRate, toRate, resampler.QualityVeryHigh)
	default:
		return resampler.ResampleMono(in, fromRate, toRate, resampler.QualityHigh)
	}
}

func (r *Resampler) reportFallback(fb Fallback) {
	r.fallbacks.Add(1)
	r.log.WithFields(logrus.Fields{
		"from_rate": fb.FromRate,
		"to_rate":   fb.ToRate,
		"channels":  fb.Channels,
		"reason":    fb.Reason,
	}).Warn("Resampling with linear interpolation, expect aliasing on rate reduction")
	if r.onFallback != nil {
		r.onFallback(fb)
	}
}

// OutputFrames returns round(frames * to / from)
func OutputFrames(frames int, from, to uint32) int {
	if from == 0 {
		return 0
	}
	return int(math.Round(float64(frames) * float64(to) / float64(from)))
}

// Linear resamples one plane to n samples by interpolating over positions
// spread evenly from the first to the last input sample
func Linear(in []float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 || len(in) == 0 {
		return out
	}
	if len(in) == 1 || n == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return out
	}

	step := float64(len(in)-1) / float64(n-1)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1.0-frac) + in[idx+1]*frac
	}
	return out
}

// fit trims or extends a plane to exactly n samples, holding the last value
func fit(in []float64, n int) []float64 {
	out := make([]float64, n)
	copied := copy(out, in)
	if copied > 0 {
		for i := copied; i < n; i++ {
			out[i] = in[copied-1]
		}
	}
	return out
}

func deinterleave(samples []float64, channels int) [][]float64 {
	frames := len(samples) / channels
	planes := make([][]float64, channels)
	for ch := range planes {
		plane := make([]float64, frames)
		for f := 0; f < frames; f++ {
			plane[f] = samples[f*channels+ch]
		}
		planes[ch] = plane
	}
	return planes
}

func interleave(planes [][]float64, frames int) []float64 {
	channels := len(planes)
	out := make([]float64, frames*channels)
	for ch, plane := range planes {
		for f := 0; f < frames; f++ {
			out[f*channels+ch] = plane[f]
		}
	}
	return out
}
