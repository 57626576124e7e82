// ABOUTME: Headerless PCM described by a MIME type
// ABOUTME: Parses audio/L16;rate=24000 style types as returned by speech services
package decode

import (
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
)

const (
	// DefaultRawRate is assumed when a PCM MIME type carries no rate
	DefaultRawRate = 24000
	// DefaultRawMIME is the format speech services typically return
	DefaultRawMIME = "audio/L16;rate=24000"
)

// ParseMIME maps a raw PCM MIME type to a format. Samples are taken as
// little-endian signed integers. Missing parameters default to mono at 24kHz.
func ParseMIME(mimeType string) (audio.Format, error) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: mime type %q: %v", audio.ErrMalformedAudio, mimeType, err)
	}

	var width uint8
	switch strings.ToLower(mediaType) {
	case "audio/l8":
		width = 1
	case "audio/l16", "audio/pcm", "audio/x-pcm", "audio/raw":
		width = 2
	case "audio/l24":
		width = 3
	case "audio/l32":
		width = 4
	default:
		return audio.Format{}, fmt.Errorf("%w: %q is not raw PCM", ErrUnsupportedContainer, mediaType)
	}

	rate := uint64(DefaultRawRate)
	if v, ok := params["rate"]; ok {
		rate, err = strconv.ParseUint(v, 10, 32)
		if err != nil || rate == 0 {
			return audio.Format{}, fmt.Errorf("%w: invalid rate %q", audio.ErrMalformedAudio, v)
		}
	}

	channels := uint64(1)
	if v, ok := params["channels"]; ok {
		channels, err = strconv.ParseUint(v, 10, 8)
		if err != nil {
			return audio.Format{}, fmt.Errorf("%w: invalid channels %q", audio.ErrMalformedAudio, v)
		}
	}

	return audio.NewFormat(uint32(rate), uint8(channels), width)
}

// Raw wraps headerless PCM bytes using the format named by mimeType
func Raw(data []byte, mimeType string) (PCM, error) {
	format, err := ParseMIME(mimeType)
	if err != nil {
		return PCM{}, err
	}
	if len(data)%format.FrameSize() != 0 {
		return PCM{}, fmt.Errorf("%w: %d bytes is not a multiple of frame size %d",
			audio.ErrMalformedAudio, len(data), format.FrameSize())
	}
	return PCM{Data: data, Format: format}, nil
}
