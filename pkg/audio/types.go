// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, normalized sample buffers and device-period chunks
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// TargetSampleRate is the rate every virtual cable stream runs at
	TargetSampleRate = 48000
	// TargetChannels is the channel count every virtual cable stream runs at
	TargetChannels = 2
)

// Format describes a PCM byte layout
type Format struct {
	SampleRate  uint32
	Channels    uint8
	SampleWidth uint8 // bytes per sample: 1, 2, 3 or 4
	Signed      bool
}

// NewFormat builds a validated format. 8-bit PCM is unsigned, wider samples
// are signed, matching the WAV convention.
func NewFormat(sampleRate uint32, channels, sampleWidth uint8) (Format, error) {
	f := Format{
		SampleRate:  sampleRate,
		Channels:    channels,
		SampleWidth: sampleWidth,
		Signed:      sampleWidth != 1,
	}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// Target returns the 48kHz stereo format at the given bit depth
func Target(bitDepth int) (Format, error) {
	if bitDepth%8 != 0 {
		return Format{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedSampleWidth, bitDepth)
	}
	return NewFormat(TargetSampleRate, TargetChannels, uint8(bitDepth/8))
}

// Validate checks the format against the supported PCM contract
func (f Format) Validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", ErrMalformedAudio)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedChannelLayout, f.Channels)
	}
	if f.SampleWidth < 1 || f.SampleWidth > 4 {
		return fmt.Errorf("%w: %d bytes per sample", ErrUnsupportedSampleWidth, f.SampleWidth)
	}
	return nil
}

// FrameSize returns the number of bytes in one frame (one sample per channel)
func (f Format) FrameSize() int {
	return int(f.Channels) * int(f.SampleWidth)
}

// BitDepth returns bits per sample
func (f Format) BitDepth() int {
	return int(f.SampleWidth) * 8
}

// BytesPerSecond returns the byte rate of the format
func (f Format) BytesPerSecond() int {
	return int(f.SampleRate) * f.FrameSize()
}

// Duration returns how long n bytes of this format play for
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

func (f Format) String() string {
	sign := "s"
	if !f.Signed {
		sign = "u"
	}
	return fmt.Sprintf("%dHz/%dch/%s%d", f.SampleRate, f.Channels, sign, f.BitDepth())
}

// Buffer holds normalized samples in [-1, 1], interleaved by channel.
// Stages never mutate a buffer they were handed; they return a new one.
type Buffer struct {
	Format  Format
	Samples []float64
}

// Frames returns the number of frames in the buffer
func (b Buffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / int(b.Format.Channels)
}

// Duration returns the playing time of the buffer
func (b Buffer) Duration() time.Duration {
	if b.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.Format.SampleRate))
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
