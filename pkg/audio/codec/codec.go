// ABOUTME: PCM sample codec
// ABOUTME: Decodes 8/16/24/32-bit PCM to float64 and encodes with clipping
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
)

// Decode converts PCM bytes to a normalized buffer
func Decode(data []byte, format audio.Format) (audio.Buffer, error) {
	if err := format.Validate(); err != nil {
		return audio.Buffer{}, err
	}
	if len(data)%format.FrameSize() != 0 {
		return audio.Buffer{}, fmt.Errorf("%w: %d bytes is not a multiple of frame size %d",
			audio.ErrMalformedAudio, len(data), format.FrameSize())
	}

	width := int(format.SampleWidth)
	scale := fullScale(width)
	samples := make([]float64, len(data)/width)
	for i := range samples {
		samples[i] = float64(unpack(data[i*width:i*width+width], format.Signed)) / scale
	}

	return audio.Buffer{Format: format, Samples: samples}, nil
}

// Encode quantizes a buffer into the PCM layout described by format.
// Samples are clipped to [-1, 1] first so quantization never wraps.
// A sample width outside 1..4 bytes has no PCM layout and yields nil.
func Encode(buf audio.Buffer, format audio.Format) []byte {
	width := int(format.SampleWidth)
	if width < 1 || width > 4 {
		return nil
	}
	out := make([]byte, len(buf.Samples)*width)

	for i, s := range buf.Samples {
		pack(out[i*width:i*width+width], Quantize(s, width), format.Signed)
	}
	return out
}

// Quantize maps a normalized sample to the signed integer range of width bytes.
// Widths outside 1..4 are clamped into that range.
func Quantize(sample float64, width int) int64 {
	scale := fullScale(width)
	q := math.Round(Clip(sample) * scale)
	if q > scale-1 {
		q = scale - 1
	} else if q < -scale {
		q = -scale
	}
	return int64(q)
}

// Clip bounds a sample to [-1, 1]
func Clip(sample float64) float64 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	if math.IsNaN(sample) {
		return 0
	}
	return sample
}

// fullScale returns 2^(8*width-1), the magnitude of the most negative code
func fullScale(width int) float64 {
	width = min(max(width, 1), 4)
	return float64(int64(1) << (8*width - 1))
}

// unpack reads one little-endian sample and returns its signed value.
// Unsigned samples are offset-binary and re-centered around zero.
func unpack(b []byte, signed bool) int64 {
	width := len(b)
	if signed {
		switch width {
		case 1:
			return int64(int8(b[0]))
		case 2:
			return int64(int16(binary.LittleEndian.Uint16(b)))
		case 3:
			return int64(audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]}))
		default:
			return int64(int32(binary.LittleEndian.Uint32(b)))
		}
	}

	var raw uint64
	for i := width - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(b[i])
	}
	return int64(raw) - int64(1)<<(8*width-1)
}

// pack writes one quantized sample little-endian
func pack(dst []byte, value int64, signed bool) {
	width := len(dst)
	if !signed {
		value += int64(1) << (8*width - 1)
	}

	switch width {
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(value))
	case 3:
		b := audio.SampleTo24Bit(int32(value))
		copy(dst, b[:])
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(value))
	default:
		dst[0] = byte(value)
	}
}
