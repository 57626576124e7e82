package shape

import (
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantBuffer(rate uint32, channels uint8, frames int, value float64) audio.Buffer {
	samples := make([]float64, frames*int(channels))
	for i := range samples {
		samples[i] = value
	}
	return audio.Buffer{
		Format:  audio.Format{SampleRate: rate, Channels: channels, SampleWidth: 2, Signed: true},
		Samples: samples,
	}
}

func TestApplyClipsForAnyBoost(t *testing.T) {
	boosts := []float64{0, 0.5, 1.0, 1.2, 4, 100}
	for _, boost := range boosts {
		opts := DefaultOptions().WithWake()
		opts.LevelBoost = boost

		out, err := Apply(constantBuffer(48000, 2, 4800, 0.95), opts)
		require.NoError(t, err)
		for _, v := range out.Samples {
			require.GreaterOrEqual(t, v, -1.0, "boost %v", boost)
			require.LessOrEqual(t, v, 1.0, "boost %v", boost)
		}
	}
}

func TestApplyBoostsBeforeClipping(t *testing.T) {
	opts := DefaultOptions()
	opts.PilotAmplitude = 0
	opts.LevelBoost = 2

	out, err := Apply(constantBuffer(48000, 1, 10, 0.3), opts)
	require.NoError(t, err)
	for _, v := range out.Samples {
		assert.InDelta(t, 0.6, v, 1e-12)
	}

	out, err = Apply(constantBuffer(48000, 1, 10, 0.8), opts)
	require.NoError(t, err)
	for _, v := range out.Samples {
		assert.Equal(t, 1.0, v)
	}
}

func TestApplyPilotOnSilence(t *testing.T) {
	opts := DefaultOptions()
	out, err := Apply(constantBuffer(48000, 2, 48000, 0), opts)
	require.NoError(t, err)
	require.Len(t, out.Samples, 48000*2)

	peak := 0.0
	for f := 0; f < out.Frames(); f++ {
		left, right := out.Samples[f*2], out.Samples[f*2+1]
		assert.Equal(t, left, right)
		peak = math.Max(peak, math.Abs(left))
	}
	assert.InDelta(t, opts.PilotAmplitude, peak, 1e-6)
}

func TestApplyWakeAndTrailLayout(t *testing.T) {
	opts := DefaultOptions().WithWake()
	rate := uint32(48000)
	mainFrames := 4800

	out, err := Apply(constantBuffer(rate, 2, mainFrames, 0.25), opts)
	require.NoError(t, err)

	sweepFrames := 24000 // 0.5s
	pauseFrames := 9600  // 200ms
	trailFrames := 48000 // 1s
	assert.Equal(t, sweepFrames+pauseFrames+mainFrames+trailFrames, out.Frames())

	// Sweep starts faded in from silence
	assert.Equal(t, 0.0, out.Samples[0])

	// Pause is silent
	for f := sweepFrames; f < sweepFrames+pauseFrames; f++ {
		require.Equal(t, 0.0, out.Samples[f*2])
	}

	// Main content starts after the pause, shifted by the pilot
	start := sweepFrames + pauseFrames
	assert.InDelta(t, 0.25, out.Samples[start*2], opts.PilotAmplitude)

	// Trailing tone stays at its amplitude
	for f := start + mainFrames; f < out.Frames(); f++ {
		require.LessOrEqual(t, math.Abs(out.Samples[f*2]), opts.TrailAmplitude+1e-12)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := constantBuffer(48000, 1, 100, 0.5)
	_, err := Apply(in, DefaultOptions().WithWake())
	require.NoError(t, err)
	for _, v := range in.Samples {
		assert.Equal(t, 0.5, v)
	}
}

func TestApplyErrors(t *testing.T) {
	_, err := Apply(constantBuffer(48000, 3, 10, 0), DefaultOptions())
	assert.ErrorIs(t, err, audio.ErrUnsupportedChannelLayout)

	_, err = Apply(constantBuffer(0, 1, 10, 0), DefaultOptions())
	assert.ErrorIs(t, err, audio.ErrMalformedAudio)

	opts := DefaultOptions()
	opts.LevelBoost = -1
	_, err = Apply(constantBuffer(48000, 1, 10, 0), opts)
	assert.Error(t, err)

	opts = DefaultOptions().WithWake()
	opts.WakeDuration = 0
	_, err = Apply(constantBuffer(48000, 1, 10, 0), opts)
	assert.Error(t, err)
}

func TestSweepFades(t *testing.T) {
	s := Sweep(48000, 500*time.Millisecond, 200, 800, 0.1)
	require.Len(t, s, 24000)
	assert.Equal(t, 0.0, s[0])
	assert.Equal(t, 0.0, s[len(s)-1])

	peak := 0.0
	for _, v := range s {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.LessOrEqual(t, peak, 0.1)
	assert.Greater(t, peak, 0.09)
}

func TestSweepShorterThanFades(t *testing.T) {
	s := Sweep(48000, 10*time.Millisecond, 200, 800, 0.1)
	require.Len(t, s, 480)
	for _, v := range s {
		assert.LessOrEqual(t, math.Abs(v), 0.1)
	}
}

func TestTone(t *testing.T) {
	tone := Tone(1000, time.Second, 250, 0.5)
	require.Len(t, tone, 1000)
	assert.InDelta(t, 0.0, tone[0], 1e-12)
	assert.InDelta(t, 0.5, tone[1], 1e-12)
	assert.InDelta(t, 0.0, tone[2], 1e-12)
	assert.InDelta(t, -0.5, tone[3], 1e-12)

	assert.Empty(t, Tone(1000, 0, 250, 0.5))
}
