// ABOUTME: Tests for the PCM sample codec
// ABOUTME: Tests width-specific decoding, clipping and byte round trips
package codec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFormat(t *testing.T, rate uint32, channels, width uint8) audio.Format {
	t.Helper()
	f, err := audio.NewFormat(rate, channels, width)
	require.NoError(t, err)
	return f
}

func TestDecode8BitUnsigned(t *testing.T) {
	f := mustFormat(t, 8000, 1, 1)

	buf, err := Decode([]byte{0, 128, 255, 64}, f)
	require.NoError(t, err)

	assert.InDelta(t, -1.0, buf.Samples[0], 1e-12)
	assert.InDelta(t, 0.0, buf.Samples[1], 1e-12)
	assert.InDelta(t, 127.0/128.0, buf.Samples[2], 1e-12)
	assert.InDelta(t, -0.5, buf.Samples[3], 1e-12)
}

func TestDecode16Bit(t *testing.T) {
	f := mustFormat(t, 48000, 2, 2)

	// 0x4000 = 16384, 0x8000 = -32768
	buf, err := Decode([]byte{0x00, 0x40, 0x00, 0x80}, f)
	require.NoError(t, err)
	require.Len(t, buf.Samples, 2)

	assert.InDelta(t, 0.5, buf.Samples[0], 1e-12)
	assert.InDelta(t, -1.0, buf.Samples[1], 1e-12)
	assert.Equal(t, f, buf.Format)
}

func TestDecode24Bit(t *testing.T) {
	f := mustFormat(t, 48000, 1, 3)

	// 0x400000 = 4194304 (half scale), 0xC00000 = -4194304
	buf, err := Decode([]byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}, f)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, buf.Samples[0], 1e-12)
	assert.InDelta(t, -0.5, buf.Samples[1], 1e-12)
}

func TestDecode32Bit(t *testing.T) {
	f := mustFormat(t, 48000, 1, 4)

	buf, err := Decode([]byte{0x00, 0x00, 0x00, 0x40, 0xFF, 0xFF, 0xFF, 0x7F}, f)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, buf.Samples[0], 1e-12)
	assert.InDelta(t, 1.0, buf.Samples[1], 1e-9)
}

func TestDecodeMalformedLength(t *testing.T) {
	f := mustFormat(t, 48000, 2, 2)

	_, err := Decode(make([]byte, 6), f)
	assert.ErrorIs(t, err, audio.ErrMalformedAudio)
}

func TestDecodeInvalidFormat(t *testing.T) {
	_, err := Decode(make([]byte, 10), audio.Format{SampleRate: 48000, Channels: 2, SampleWidth: 5, Signed: true})
	assert.ErrorIs(t, err, audio.ErrUnsupportedSampleWidth)
}

func TestEncodeClips(t *testing.T) {
	tests := []struct {
		name  string
		width uint8
		max   []byte
		min   []byte
	}{
		{"8-bit", 1, []byte{0xFF}, []byte{0x00}},
		{"16-bit", 2, []byte{0xFF, 0x7F}, []byte{0x00, 0x80}},
		{"24-bit", 3, []byte{0xFF, 0xFF, 0x7F}, []byte{0x00, 0x00, 0x80}},
		{"32-bit", 4, []byte{0xFF, 0xFF, 0xFF, 0x7F}, []byte{0x00, 0x00, 0x00, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustFormat(t, 48000, 1, tt.width)
			out := Encode(audio.Buffer{Format: f, Samples: []float64{1.7, -3.2, 1.0}}, f)

			w := int(tt.width)
			require.Len(t, out, 3*w)
			assert.Equal(t, tt.max, out[:w], "over-range positive must saturate")
			assert.Equal(t, tt.min, out[w:2*w], "over-range negative must saturate")
			assert.Equal(t, tt.max, out[2*w:], "+1.0 maps to the max code")
		})
	}
}

func TestEncode24BitWritesThreeBytes(t *testing.T) {
	f := mustFormat(t, 48000, 2, 3)
	out := Encode(audio.Buffer{Format: f, Samples: []float64{-256.0 / 8388608.0, 0}}, f)
	assert.Equal(t, []byte{0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00}, out)
}

func TestEncodeNaNIsSilence(t *testing.T) {
	f := mustFormat(t, 48000, 1, 2)
	out := Encode(audio.Buffer{Format: f, Samples: []float64{math.NaN()}}, f)
	assert.Equal(t, []byte{0, 0}, out)
}

func TestRoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, signed := range []bool{true, false} {
		for width := uint8(1); width <= 4; width++ {
			f := audio.Format{SampleRate: 44100, Channels: 2, SampleWidth: width, Signed: signed}
			data := make([]byte, 512*f.FrameSize())
			rng.Read(data)

			buf, err := Decode(data, f)
			require.NoError(t, err)

			for _, s := range buf.Samples {
				require.GreaterOrEqual(t, s, -1.0)
				require.LessOrEqual(t, s, 1.0)
			}

			assert.Equal(t, data, Encode(buf, f), "width=%d signed=%v", width, signed)
		}
	}
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, int64(16384), Quantize(0.5, 2))
	assert.Equal(t, int64(32767), Quantize(1.0, 2))
	assert.Equal(t, int64(-32768), Quantize(-1.0, 2))
	assert.Equal(t, int64(127), Quantize(2.0, 1))
}

func TestEncodeInvalidWidthYieldsNil(t *testing.T) {
	samples := []float64{0.5, -0.5}
	for _, width := range []uint8{0, 5, 8} {
		f := audio.Format{SampleRate: 48000, Channels: 1, SampleWidth: width, Signed: true}
		assert.NotPanics(t, func() {
			assert.Nil(t, Encode(audio.Buffer{Format: f, Samples: samples}, f), "width=%d", width)
		})
	}
}

func TestQuantizeClampsWidth(t *testing.T) {
	assert.Equal(t, int64(127), Quantize(1.0, 0))
	assert.Equal(t, int64(math.MaxInt32), Quantize(1.0, 8))
}
