//go:build opus

// ABOUTME: Ogg Opus decoder
// ABOUTME: Decodes Ogg Opus files to 48kHz 16-bit PCM through libopusfile
package decode

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// opusRate is the rate libopusfile always decodes at
const opusRate = 48000

// Opus decodes Ogg-encapsulated Opus streams
type Opus struct{}

// Decode reads the whole stream. The channel count comes from the OpusHead
// packet on the first Ogg page.
func (Opus) Decode(r io.Reader) (PCM, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(512)
	channels, ok := opusChannels(head)
	if !ok {
		return PCM{}, fmt.Errorf("%w: opus: missing OpusHead", audio.ErrMalformedAudio)
	}
	if channels != 1 && channels != 2 {
		return PCM{}, fmt.Errorf("%w: %d channels", audio.ErrUnsupportedChannelLayout, channels)
	}

	format, err := audio.NewFormat(opusRate, channels, 2)
	if err != nil {
		return PCM{}, err
	}

	stream, err := opus.NewStream(br)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: opus: %v", audio.ErrMalformedAudio, err)
	}
	defer stream.Close()

	// 120ms is the longest Opus frame
	pcm := make([]int16, 5760*int(channels))
	var data []byte
	for {
		n, err := stream.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("%w: opus decode: %v", audio.ErrMalformedAudio, err)
		}
		for _, s := range pcm[:n*int(channels)] {
			data = binary.LittleEndian.AppendUint16(data, uint16(s))
		}
	}

	return PCM{Data: data, Format: format}, nil
}

// opusChannels finds the OpusHead identification header and returns its
// channel count byte
func opusChannels(head []byte) (uint8, bool) {
	i := bytes.Index(head, []byte("OpusHead"))
	if i < 0 || len(head) < i+19 {
		return 0, false
	}
	return head[i+9], true
}
