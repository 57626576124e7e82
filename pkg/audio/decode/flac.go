// ABOUTME: FLAC decoder
// ABOUTME: Decodes FLAC frames to little-endian PCM with mewkiz/flac
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLAC decodes FLAC streams. Samples are left-justified into whole bytes,
// so 12-bit audio becomes 16-bit and 20-bit becomes 24-bit.
type FLAC struct{}

// Decode parses every frame of the stream
func (FLAC) Decode(r io.Reader) (PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: flac: %v", audio.ErrMalformedAudio, err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels != 1 && channels != 2 {
		return PCM{}, fmt.Errorf("%w: %d channels", audio.ErrUnsupportedChannelLayout, channels)
	}
	bps := int(info.BitsPerSample)
	width := (bps + 7) / 8

	format, err := audio.NewFormat(info.SampleRate, uint8(channels), uint8(width))
	if err != nil {
		return PCM{}, err
	}
	shift := uint(width*8 - bps)

	var out bytes.Buffer
	if info.NSamples > 0 {
		out.Grow(int(info.NSamples) * format.FrameSize())
	}
	sample := make([]byte, width)

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("%w: flac frame: %v", audio.ErrMalformedAudio, err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				putSample(sample, frame.Subframes[ch].Samples[i]<<shift)
				out.Write(sample)
			}
		}
	}

	return PCM{Data: out.Bytes(), Format: format}, nil
}

// putSample writes a signed sample little-endian into len(dst) bytes.
// One-byte samples are stored offset-binary to match unsigned 8-bit PCM.
func putSample(dst []byte, v int32) {
	if len(dst) == 1 {
		dst[0] = byte(v + 128)
		return
	}
	for i := range dst {
		dst[i] = byte(v >> (8 * i))
	}
}
