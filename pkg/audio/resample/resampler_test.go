package resample

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBuffer(rate uint32, channels uint8, frames int, freq float64) audio.Buffer {
	samples := make([]float64, frames*int(channels))
	for f := 0; f < frames; f++ {
		v := 0.5 * math.Sin(2*math.Pi*freq*float64(f)/float64(rate))
		for ch := 0; ch < int(channels); ch++ {
			samples[f*int(channels)+ch] = v
		}
	}
	return audio.Buffer{
		Format:  audio.Format{SampleRate: rate, Channels: channels, SampleWidth: 2, Signed: true},
		Samples: samples,
	}
}

func failingEngine(in []float64, from, to float64) ([]float64, error) {
	return nil, errors.New("engine unavailable")
}

func TestResampleSameRateIsCopy(t *testing.T) {
	r := New()
	buf := sineBuffer(48000, 2, 480, 440)

	out, err := r.Resample(buf, 48000)
	require.NoError(t, err)
	assert.Equal(t, buf.Samples, out.Samples)
	assert.Equal(t, buf.Format, out.Format)

	out.Samples[0] = 0.99
	assert.NotEqual(t, 0.99, buf.Samples[0], "input must not share storage with output")
	assert.Zero(t, r.Fallbacks())
}

func TestResampleLengthLaw(t *testing.T) {
	tests := []struct {
		name     string
		from, to uint32
		channels uint8
		frames   int
	}{
		{"24k mono up", 24000, 48000, 1, 24000},
		{"44.1k stereo up", 44100, 48000, 2, 44100},
		{"96k stereo down", 96000, 48000, 2, 9600},
		{"16k mono up", 16000, 48000, 1, 1600},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := sineBuffer(tt.from, tt.channels, tt.frames, 440)
			out, err := r.Resample(buf, tt.to)
			require.NoError(t, err)

			want := OutputFrames(tt.frames, tt.from, tt.to)
			assert.InDelta(t, want, out.Frames(), 1)
			assert.Equal(t, tt.to, out.Format.SampleRate)
			assert.Equal(t, tt.channels, out.Format.Channels)
			assert.Len(t, out.Samples, out.Frames()*int(tt.channels))
		})
	}
}

func TestResampleKeepsChannelsSeparate(t *testing.T) {
	r := New(WithMethod(MethodLinear), WithFallbackHandler(func(Fallback) {}))

	frames := 100
	samples := make([]float64, frames*2)
	for f := 0; f < frames; f++ {
		samples[f*2] = 0.5
		samples[f*2+1] = -0.5
	}
	buf := audio.Buffer{Format: audio.Format{SampleRate: 24000, Channels: 2, SampleWidth: 2, Signed: true}, Samples: samples}

	out, err := r.Resample(buf, 48000)
	require.NoError(t, err)
	for f := 0; f < out.Frames(); f++ {
		assert.InDelta(t, 0.5, out.Samples[f*2], 1e-9)
		assert.InDelta(t, -0.5, out.Samples[f*2+1], 1e-9)
	}
}

func TestResampleFallbackIsReported(t *testing.T) {
	var mu sync.Mutex
	var got []Fallback

	r := New(WithFallbackHandler(func(fb Fallback) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, fb)
	}))
	r.sinc = failingEngine

	buf := sineBuffer(24000, 1, 2400, 440)
	out, err := r.Resample(buf, 48000)
	require.NoError(t, err)
	assert.Equal(t, 4800, out.Frames())

	require.Len(t, got, 1)
	assert.Equal(t, uint32(24000), got[0].FromRate)
	assert.Equal(t, uint32(48000), got[0].ToRate)
	assert.Equal(t, uint8(1), got[0].Channels)
	assert.Error(t, got[0].Reason)
	assert.Equal(t, int64(1), r.Fallbacks())
}

func TestResampleForcedLinear(t *testing.T) {
	calls := 0
	r := New(WithMethod(MethodLinear), WithFallbackHandler(func(Fallback) { calls++ }))

	out, err := r.Resample(sineBuffer(22050, 2, 2205, 440), 48000)
	require.NoError(t, err)
	assert.Equal(t, 4800, out.Frames())
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), r.Fallbacks())
}

func TestResampleErrors(t *testing.T) {
	r := New()

	_, err := r.Resample(sineBuffer(24000, 1, 0, 440), 48000)
	assert.ErrorIs(t, err, audio.ErrResampling)

	_, err = r.Resample(sineBuffer(24000, 1, 100, 440), 0)
	assert.ErrorIs(t, err, audio.ErrResampling)

	buf := sineBuffer(24000, 1, 100, 440)
	buf.Format.SampleRate = 0
	_, err = r.Resample(buf, 48000)
	assert.ErrorIs(t, err, audio.ErrResampling)
}

func TestLinear(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		n    int
		want []float64
	}{
		{"endpoints kept", []float64{0, 1}, 3, []float64{0, 0.5, 1}},
		{"downsample", []float64{0, 1, 2, 3, 4}, 3, []float64{0, 2, 4}},
		{"single input", []float64{0.3}, 4, []float64{0.3, 0.3, 0.3, 0.3}},
		{"single output", []float64{0.1, 0.9}, 1, []float64{0.1}},
		{"empty input", nil, 2, []float64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Linear(tt.in, tt.n)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestOutputFrames(t *testing.T) {
	assert.Equal(t, 48000, OutputFrames(24000, 24000, 48000))
	assert.Equal(t, 48000, OutputFrames(44100, 44100, 48000))
	assert.Equal(t, 1088, OutputFrames(1000, 44100, 48000))
	assert.Equal(t, 0, OutputFrames(100, 0, 48000))
}

func TestFit(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, fit([]float64{1, 2, 3}, 2))
	assert.Equal(t, []float64{1, 2, 2}, fit([]float64{1, 2}, 3))
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "sinc", MethodSinc.String())
	assert.Equal(t, "linear", MethodLinear.String())
	assert.Equal(t, "Method(7)", Method(7).String())
}
