// ABOUTME: Channel remapping between mono and stereo
// ABOUTME: Duplicates on up-mix and averages on down-mix
// Package remap converts normalized buffers between mono and stereo.
package remap

import (
	"fmt"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
)

// Remap returns a new buffer with the requested channel count.
// Mono to stereo duplicates each sample, stereo to mono averages L and R.
func Remap(buf audio.Buffer, channels uint8) (audio.Buffer, error) {
	if !supported(buf.Format.Channels) {
		return audio.Buffer{}, fmt.Errorf("%w: source has %d channels", audio.ErrUnsupportedChannelLayout, buf.Format.Channels)
	}
	if !supported(channels) {
		return audio.Buffer{}, fmt.Errorf("%w: target has %d channels", audio.ErrUnsupportedChannelLayout, channels)
	}

	format := buf.Format
	format.Channels = channels

	switch {
	case buf.Format.Channels == channels:
		out := make([]float64, len(buf.Samples))
		copy(out, buf.Samples)
		return audio.Buffer{Format: format, Samples: out}, nil

	case channels == 2:
		out := make([]float64, len(buf.Samples)*2)
		for i, s := range buf.Samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return audio.Buffer{Format: format, Samples: out}, nil

	default:
		frames := len(buf.Samples) / 2
		out := make([]float64, frames)
		for f := 0; f < frames; f++ {
			out[f] = (buf.Samples[f*2] + buf.Samples[f*2+1]) * 0.5
		}
		return audio.Buffer{Format: format, Samples: out}, nil
	}
}

func supported(channels uint8) bool {
	return channels == 1 || channels == 2
}
