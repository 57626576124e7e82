//go:build opus

// ABOUTME: Tests for the Ogg Opus decoder
// ABOUTME: Covers OpusHead parsing and rejection of non-Opus input
package decode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
)

// opusHead builds a minimal identification header for channels
func opusHead(channels byte) []byte {
	head := []byte("OggS")
	head = append(head, make([]byte, 24)...)
	head = append(head, "OpusHead"...)
	head = append(head, 1, channels)
	return append(head, make([]byte, 9)...)
}

func TestOpusChannels(t *testing.T) {
	for _, want := range []byte{1, 2, 6} {
		got, ok := opusChannels(opusHead(want))
		if !ok || got != want {
			t.Errorf("channels: got %d, %v want %d", got, ok, want)
		}
	}
	if _, ok := opusChannels([]byte("OggS not opus")); ok {
		t.Error("expected no OpusHead")
	}
	if _, ok := opusChannels([]byte("OpusHead\x01")); ok {
		t.Error("expected truncated header to be rejected")
	}
}

func TestOpusRejectsInvalidInput(t *testing.T) {
	_, err := Opus{}.Decode(bytes.NewReader([]byte("RIFF....WAVE")))
	if !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio, got %v", err)
	}

	_, err = Opus{}.Decode(bytes.NewReader(opusHead(6)))
	if !errors.Is(err, audio.ErrUnsupportedChannelLayout) {
		t.Errorf("expected ErrUnsupportedChannelLayout, got %v", err)
	}

	_, err = Opus{}.Decode(bytes.NewReader(opusHead(2)))
	if !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio for a truncated stream, got %v", err)
	}
}
