// ABOUTME: Device-period playback chunks
// ABOUTME: Splits PCM bytes into exactly-sized periods, zero-padding the tail
package audio

import "fmt"

// Chunk is exactly one device buffer period of target-format PCM.
// A Chunk is never partially filled.
type Chunk struct {
	Data   []byte
	Format Format
}

// PeriodBytes returns the byte size of one device period
func PeriodBytes(format Format, framesPerBuffer int) int {
	return framesPerBuffer * format.FrameSize()
}

// NewChunk wraps data as a full period, zero-padding short data.
// The data must be frame aligned and no longer than one period.
func NewChunk(data []byte, format Format, framesPerBuffer int) (Chunk, error) {
	if err := format.Validate(); err != nil {
		return Chunk{}, err
	}
	if framesPerBuffer <= 0 {
		return Chunk{}, fmt.Errorf("invalid frames per buffer: %d", framesPerBuffer)
	}
	size := PeriodBytes(format, framesPerBuffer)
	if len(data)%format.FrameSize() != 0 {
		return Chunk{}, fmt.Errorf("%w: %d bytes is not a multiple of frame size %d",
			ErrMalformedAudio, len(data), format.FrameSize())
	}
	if len(data) > size {
		return Chunk{}, fmt.Errorf("%w: %d bytes exceeds period of %d bytes", ErrMalformedAudio, len(data), size)
	}

	chunk := Silence(format, framesPerBuffer)
	copy(chunk.Data, data)
	return chunk, nil
}

// Silence returns a zero-filled period. For unsigned formats silence is the
// mid-scale code, not zero.
func Silence(format Format, framesPerBuffer int) Chunk {
	buf := make([]byte, PeriodBytes(format, framesPerBuffer))
	if !format.Signed {
		fillUnsignedSilence(buf, int(format.SampleWidth))
	}
	return Chunk{Data: buf, Format: format}
}

// Split cuts data into full periods. Bytes that do not fill a whole period
// are returned as rest so the caller can carry them into the next call.
func Split(data []byte, format Format, framesPerBuffer int) ([]Chunk, []byte) {
	size := PeriodBytes(format, framesPerBuffer)
	if size <= 0 {
		return nil, data
	}

	chunks := make([]Chunk, 0, len(data)/size)
	for len(data) >= size {
		buf := make([]byte, size)
		copy(buf, data[:size])
		chunks = append(chunks, Chunk{Data: buf, Format: format})
		data = data[size:]
	}
	return chunks, data
}

// fillUnsignedSilence writes the offset-binary zero code (0x80 in the top byte)
func fillUnsignedSilence(buf []byte, width int) {
	for i := width - 1; i < len(buf); i += width {
		buf[i] = 0x80
	}
}
