// ABOUTME: Tests for source audio decoders
// ABOUTME: Covers WAV headers, the extension registry, raw MIME PCM and invalid input
package decode

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes values as a WAV file in dir and returns its path
func writeWAV(t *testing.T, dir, name string, rate, bitDepth, channels int, values []int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           values,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close wav encoder: %v", err)
	}
	return path
}

func TestWAVDecode16BitStereo(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "stereo.wav", 44100, 16, 2, []int{1, -1, 256, -256})

	pcm, err := File(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	want := audio.Format{SampleRate: 44100, Channels: 2, SampleWidth: 2, Signed: true}
	if pcm.Format != want {
		t.Errorf("expected format %v, got %v", want, pcm.Format)
	}
	expected := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x01, 0x00, 0xFF}
	if !bytes.Equal(pcm.Data, expected) {
		t.Errorf("expected data %v, got %v", expected, pcm.Data)
	}
	if pcm.Name != "stereo" {
		t.Errorf("expected name %q, got %q", "stereo", pcm.Name)
	}
}

func TestWAVDecode8BitUnsigned(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "mono.wav", 8000, 8, 1, []int{0, 128, 255})

	pcm, err := File(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pcm.Format.Signed {
		t.Error("expected 8-bit wav to be unsigned")
	}

	buf, err := pcm.Buffer()
	if err != nil {
		t.Fatalf("buffer failed: %v", err)
	}
	expected := []float64{-1, 0, 127.0 / 128.0}
	for i, v := range expected {
		if buf.Samples[i] != v {
			t.Errorf("sample %d: expected %v, got %v", i, v, buf.Samples[i])
		}
	}
}

func TestWAVDecode24Bit(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "hires.wav", 96000, 24, 1, []int{audio.Max24Bit, audio.Min24Bit})

	pcm, err := File(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pcm.Format.SampleWidth != 3 || pcm.Format.SampleRate != 96000 {
		t.Errorf("unexpected format %v", pcm.Format)
	}
	expected := []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80}
	if !bytes.Equal(pcm.Data, expected) {
		t.Errorf("expected data %v, got %v", expected, pcm.Data)
	}
}

func TestWAVDecodeFromPlainReader(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "plain.wav", 16000, 16, 1, []int{10, 20, 30})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	// io.MultiReader hides Seek, forcing the buffered path
	pcm, err := WAV{}.Decode(io.MultiReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(pcm.Data) != 6 {
		t.Errorf("expected 6 bytes, got %d", len(pcm.Data))
	}
	if pcm.Duration() == 0 {
		t.Error("expected non-zero duration")
	}
}

func TestWAVDecodeInvalid(t *testing.T) {
	_, err := WAV{}.Decode(bytes.NewReader([]byte("NOT A WAV FILE DATA AT ALL")))
	if !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio, got %v", err)
	}

	_, err = WAV{}.Decode(bytes.NewReader(nil))
	if !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio for empty input, got %v", err)
	}
}

func TestMP3AndFLACRejectGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x00}, 64)

	if _, err := (FLAC{}).Decode(bytes.NewReader(garbage)); !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("flac: expected ErrMalformedAudio, got %v", err)
	}
	if _, err := (MP3{}).Decode(bytes.NewReader(nil)); !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("mp3: expected ErrMalformedAudio, got %v", err)
	}
}

func TestPutSample(t *testing.T) {
	tests := []struct {
		name  string
		width int
		value int32
		want  []byte
	}{
		{"8-bit zero", 1, 0, []byte{0x80}},
		{"8-bit min", 1, -128, []byte{0x00}},
		{"16-bit", 2, -2, []byte{0xFE, 0xFF}},
		{"24-bit", 3, 0x123456, []byte{0x56, 0x34, 0x12}},
		{"32-bit", 4, -1, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]byte, tt.width)
			putSample(got, tt.value)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	for _, ext := range []string{"wav", ".WAV", "mp3", "flac"} {
		if _, ok := reg.Lookup(ext); !ok {
			t.Errorf("expected decoder for %q", ext)
		}
	}
	if _, ok := reg.Lookup("ogg"); ok {
		t.Error("expected no decoder for ogg")
	}

	called := false
	reg.Register("RAW", DecoderFunc(func(r io.Reader) (PCM, error) {
		called = true
		return PCM{}, nil
	}))
	if _, ok := reg.Lookup("raw"); !ok {
		t.Error("expected registered raw decoder")
	}
	if called {
		t.Error("decoder must not run on lookup")
	}

	exts := reg.Extensions()
	if strings.Join(exts, ",") != "flac,mp3,opus,raw,wav,wave" {
		t.Errorf("unexpected extensions %v", exts)
	}
}

func TestFileUnsupportedExtension(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "speech.ogg"))
	if !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("expected ErrUnsupportedContainer, got %v", err)
	}
}

func TestParseMIME(t *testing.T) {
	tests := []struct {
		mime    string
		want    audio.Format
		wantErr error
	}{
		{"audio/L16;rate=24000", audio.Format{SampleRate: 24000, Channels: 1, SampleWidth: 2, Signed: true}, nil},
		{"audio/l16; rate=16000; channels=2", audio.Format{SampleRate: 16000, Channels: 2, SampleWidth: 2, Signed: true}, nil},
		{"audio/L24", audio.Format{SampleRate: DefaultRawRate, Channels: 1, SampleWidth: 3, Signed: true}, nil},
		{"audio/pcm;rate=48000", audio.Format{SampleRate: 48000, Channels: 1, SampleWidth: 2, Signed: true}, nil},
		{"audio/L16;rate=abc", audio.Format{}, audio.ErrMalformedAudio},
		{"audio/L16;channels=6", audio.Format{}, audio.ErrUnsupportedChannelLayout},
		{"audio/mpeg", audio.Format{}, ErrUnsupportedContainer},
		{";;", audio.Format{}, audio.ErrMalformedAudio},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			got, err := ParseMIME(tt.mime)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRaw(t *testing.T) {
	pcm, err := Raw(make([]byte, 48000), DefaultRawMIME)
	if err != nil {
		t.Fatalf("raw failed: %v", err)
	}
	if got := pcm.Duration().Seconds(); got != 1.0 {
		t.Errorf("expected 1s, got %v", got)
	}

	if _, err := Raw([]byte{1, 2, 3}, DefaultRawMIME); !errors.Is(err, audio.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio, got %v", err)
	}
}
