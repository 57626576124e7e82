// ABOUTME: WAV container decoder
// ABOUTME: Reads the fmt header and raw integer PCM data chunk with go-audio/wav
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAV decodes uncompressed integer PCM WAV files
type WAV struct{}

// Decode reads the WAV header and returns the PCM data chunk unchanged
func (WAV) Decode(r io.Reader) (PCM, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return PCM{}, fmt.Errorf("failed to read wav: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	d := wav.NewDecoder(rs)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return PCM{}, fmt.Errorf("%w: wav header: %v", audio.ErrMalformedAudio, err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return PCM{}, fmt.Errorf("%w: not a wav file", audio.ErrMalformedAudio)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return PCM{}, fmt.Errorf("%w: wav encoding 0x%04x is not integer PCM", audio.ErrMalformedAudio, d.WavAudioFormat)
	}
	if d.NumChans > 2 {
		return PCM{}, fmt.Errorf("%w: %d channels", audio.ErrUnsupportedChannelLayout, d.NumChans)
	}
	if d.BitDepth%8 != 0 {
		return PCM{}, fmt.Errorf("%w: %d bits per sample", audio.ErrUnsupportedSampleWidth, d.BitDepth)
	}

	format, err := audio.NewFormat(d.SampleRate, uint8(d.NumChans), uint8(d.BitDepth/8))
	if err != nil {
		return PCM{}, err
	}

	if err := d.FwdToPCM(); err != nil {
		return PCM{}, fmt.Errorf("%w: wav data chunk: %v", audio.ErrMalformedAudio, err)
	}
	if d.PCMChunk == nil {
		return PCM{}, fmt.Errorf("%w: wav has no data chunk", audio.ErrMalformedAudio)
	}

	data := make([]byte, d.PCMLen())
	n, err := io.ReadFull(d.PCMChunk, data)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return PCM{}, fmt.Errorf("failed to read wav data: %w", err)
	}

	return PCM{Data: frameAligned(data[:n], format), Format: format}, nil
}
