// ABOUTME: MP3 decoder
// ABOUTME: Decodes MP3 streams to 16-bit stereo PCM with go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes MPEG-1/2 layer III audio
type MP3 struct{}

// Decode reads the whole stream. go-mp3 always produces 16-bit stereo.
func (MP3) Decode(r io.Reader) (PCM, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: mp3: %v", audio.ErrMalformedAudio, err)
	}

	format, err := audio.NewFormat(uint32(d.SampleRate()), 2, 2)
	if err != nil {
		return PCM{}, err
	}

	data, err := io.ReadAll(d)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: mp3 decode: %v", audio.ErrMalformedAudio, err)
	}

	return PCM{Data: frameAligned(data, format), Format: format}, nil
}
