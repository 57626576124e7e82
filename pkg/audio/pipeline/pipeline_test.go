package pipeline

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/resample"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sinePCM16 returns one second of a mono 16-bit sine at rate
func sinePCM16(rate int, freq float64) []byte {
	data := make([]byte, rate*2)
	for i := 0; i < rate; i++ {
		v := int16(math.Round(0.5 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}

func TestConvertMono24kToStereo48k(t *testing.T) {
	src, err := audio.NewFormat(24000, 1, 2)
	require.NoError(t, err)
	dst, err := audio.Target(16)
	require.NoError(t, err)

	p := New()
	out, err := p.Convert(sinePCM16(24000, 440), src, dst, nil)
	require.NoError(t, err)

	samples := len(out) / 2
	assert.InDelta(t, 48000*2, samples, 2)

	for f := 0; f+1 < samples/2; f++ {
		left := int16(binary.LittleEndian.Uint16(out[f*4:]))
		right := int16(binary.LittleEndian.Uint16(out[f*4+2:]))
		require.Equal(t, left, right, "frame %d", f)
	}
}

func TestConvertWithLinearResampler(t *testing.T) {
	src, err := audio.NewFormat(24000, 1, 2)
	require.NoError(t, err)
	dst, err := audio.Target(24)
	require.NoError(t, err)

	fallbacks := 0
	r := resample.New(resample.WithMethod(resample.MethodLinear),
		resample.WithFallbackHandler(func(resample.Fallback) { fallbacks++ }))
	p := New(WithResampler(r))

	out, err := p.Convert(sinePCM16(24000, 440), src, dst, nil)
	require.NoError(t, err)
	assert.Len(t, out, 48000*2*3)
	assert.Equal(t, 1, fallbacks)
}

func TestConvertSameFormatRoundTrips(t *testing.T) {
	format, err := audio.Target(16)
	require.NoError(t, err)

	buf := audio.Buffer{Format: format, Samples: []float64{0, 0.25, -0.25, 0.5, -0.5, 0.75}}
	data := codec.Encode(buf, format)

	out, err := New().Convert(data, format, format, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestConvertAppliesShaping(t *testing.T) {
	format, err := audio.Target(16)
	require.NoError(t, err)
	silence := make([]byte, 4800*format.FrameSize())

	opts := shape.DefaultOptions().WithWake()
	out, err := New().Convert(silence, format, format, &opts)
	require.NoError(t, err)

	// 0.5s sweep + 0.2s pause + 0.1s main + 1s trail
	wantFrames := 24000 + 9600 + 4800 + 48000
	assert.Len(t, out, wantFrames*format.FrameSize())
}

func TestConvertErrors(t *testing.T) {
	dst, err := audio.Target(16)
	require.NoError(t, err)
	src, err := audio.NewFormat(24000, 1, 2)
	require.NoError(t, err)

	_, err = New().Convert([]byte{1, 2, 3}, src, dst, nil)
	assert.ErrorIs(t, err, audio.ErrMalformedAudio)

	_, err = New().Convert(nil, src, dst, nil)
	assert.ErrorIs(t, err, audio.ErrResampling)

	bad := audio.Format{SampleRate: 48000, Channels: 6, SampleWidth: 2, Signed: true}
	_, err = New().Convert(make([]byte, 24), bad, dst, nil)
	assert.ErrorIs(t, err, audio.ErrUnsupportedChannelLayout)

	_, err = New().Convert(make([]byte, 4), src, bad, nil)
	assert.ErrorIs(t, err, audio.ErrUnsupportedChannelLayout)
}

func TestConvertConcurrent(t *testing.T) {
	src, err := audio.NewFormat(24000, 1, 2)
	require.NoError(t, err)
	dst, err := audio.Target(16)
	require.NoError(t, err)

	p := New()
	data := sinePCM16(24000, 440)
	want, err := p.Convert(data, src, dst, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := p.Convert(data, src, dst, nil)
			if err == nil {
				results[i] = out
			}
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestNormalize(t *testing.T) {
	buf := audio.Buffer{
		Format:  audio.Format{SampleRate: 48000, Channels: 1, SampleWidth: 2, Signed: true},
		Samples: []float64{0.1, -0.25, 0.2},
	}
	out := Normalize(buf, 0.9)
	assert.InDelta(t, 0.36, out.Samples[0], 1e-12)
	assert.InDelta(t, -0.9, out.Samples[1], 1e-12)
	assert.InDelta(t, 0.72, out.Samples[2], 1e-12)
	assert.Equal(t, 0.1, buf.Samples[0])

	silent := audio.Buffer{Format: buf.Format, Samples: []float64{0, 0}}
	assert.Equal(t, []float64{0, 0}, Normalize(silent, 0.9).Samples)
}
