// ABOUTME: Anti-gating signal shaping for virtual microphone injection
// ABOUTME: Adds a pilot tone, optional wake sweep and trailing tone, then boosts and clips
package shape

import (
	"fmt"
	"math"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
)

// FadeDuration is the linear fade applied at each end of the wake sweep
const FadeDuration = 50 * time.Millisecond

// Options controls the auxiliary signals mixed around the main audio
type Options struct {
	// Pilot tone mixed into every channel of the main audio
	PilotToneHz    float64
	PilotAmplitude float64

	// Wake sweep prepended ahead of the main audio
	WakeSweep       bool
	WakeDuration    time.Duration
	WakeFreqStartHz float64
	WakeFreqEndHz   float64
	WakeAmplitude   float64
	WakePause       time.Duration

	// LevelBoost scales the main audio after the pilot is mixed in
	LevelBoost float64

	// Trailing tone appended after the main audio
	TrailingTone   bool
	TrailDuration  time.Duration
	TrailToneHz    float64
	TrailAmplitude float64
}

// DefaultOptions returns the pilot-only shaping defaults
func DefaultOptions() Options {
	return Options{
		PilotToneHz:     50,
		PilotAmplitude:  0.005,
		WakeDuration:    500 * time.Millisecond,
		WakeFreqStartHz: 200,
		WakeFreqEndHz:   800,
		WakeAmplitude:   0.1,
		WakePause:       200 * time.Millisecond,
		LevelBoost:      1.0,
		TrailDuration:   time.Second,
		TrailToneHz:     50,
		TrailAmplitude:  0.01,
	}
}

// WithWake returns a copy with the wake sweep and trailing tone enabled
func (o Options) WithWake() Options {
	o.WakeSweep = true
	o.TrailingTone = true
	return o
}

// Validate rejects options that cannot produce a signal
func (o Options) Validate() error {
	if o.LevelBoost < 0 || math.IsNaN(o.LevelBoost) {
		return fmt.Errorf("invalid level boost: %v", o.LevelBoost)
	}
	if o.PilotAmplitude < 0 || o.WakeAmplitude < 0 || o.TrailAmplitude < 0 {
		return fmt.Errorf("negative amplitude in shaping options")
	}
	if o.WakeSweep && o.WakeDuration <= 0 {
		return fmt.Errorf("wake sweep needs a positive duration, got %v", o.WakeDuration)
	}
	return nil
}

// Apply returns [wake sweep, pause] + boosted main audio with pilot + [trailing tone].
// Every output sample is clipped to [-1, 1].
func Apply(buf audio.Buffer, opts Options) (audio.Buffer, error) {
	if err := opts.Validate(); err != nil {
		return audio.Buffer{}, err
	}
	channels := int(buf.Format.Channels)
	if channels != 1 && channels != 2 {
		return audio.Buffer{}, fmt.Errorf("%w: %d channels", audio.ErrUnsupportedChannelLayout, channels)
	}
	rate := float64(buf.Format.SampleRate)
	if rate <= 0 {
		return audio.Buffer{}, fmt.Errorf("%w: sample rate is zero", audio.ErrMalformedAudio)
	}

	var out []float64

	if opts.WakeSweep {
		sweep := Sweep(rate, opts.WakeDuration, opts.WakeFreqStartHz, opts.WakeFreqEndHz, opts.WakeAmplitude)
		out = append(out, fanOut(sweep, channels)...)
		out = append(out, make([]float64, frames(rate, opts.WakePause)*channels)...)
	}

	frameCount := buf.Frames()
	main := make([]float64, frameCount*channels)
	step := 2 * math.Pi * opts.PilotToneHz / rate
	for f := 0; f < frameCount; f++ {
		pilot := opts.PilotAmplitude * math.Sin(step*float64(f))
		for ch := 0; ch < channels; ch++ {
			i := f*channels + ch
			main[i] = codec.Clip((buf.Samples[i] + pilot) * opts.LevelBoost)
		}
	}
	out = append(out, main...)

	if opts.TrailingTone {
		trail := Tone(rate, opts.TrailDuration, opts.TrailToneHz, opts.TrailAmplitude)
		out = append(out, fanOut(trail, channels)...)
	}

	for i, v := range out {
		out[i] = codec.Clip(v)
	}
	return audio.Buffer{Format: buf.Format, Samples: out}, nil
}

// Tone generates a mono sine of the given frequency and amplitude
func Tone(rate float64, d time.Duration, hz, amplitude float64) []float64 {
	n := frames(rate, d)
	out := make([]float64, n)
	step := 2 * math.Pi * hz / rate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Sweep generates a mono linear chirp from startHz to endHz with linear
// fades at both ends
func Sweep(rate float64, d time.Duration, startHz, endHz, amplitude float64) []float64 {
	n := frames(rate, d)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	total := d.Seconds()
	k := (endHz - startHz) / total
	for i := range out {
		t := float64(i) / rate
		phase := 2 * math.Pi * (startHz*t + 0.5*k*t*t)
		out[i] = amplitude * math.Sin(phase)
	}

	fade := frames(rate, FadeDuration)
	if fade > n/2 {
		fade = n / 2
	}
	for i := 0; i < fade; i++ {
		gain := float64(i) / float64(fade)
		out[i] *= gain
		out[n-1-i] *= gain
	}
	return out
}

func frames(rate float64, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(rate * d.Seconds()))
}

func fanOut(mono []float64, channels int) []float64 {
	out := make([]float64, len(mono)*channels)
	for i, v := range mono {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
	}
	return out
}
