// ABOUTME: Error taxonomy shared by conversion and playback
// ABOUTME: Sentinel errors wrapped with context and matched with errors.Is
package audio

import "errors"

var (
	// ErrMalformedAudio reports bytes that do not fit the declared format
	ErrMalformedAudio = errors.New("malformed audio")
	// ErrUnsupportedChannelLayout reports a channel count other than mono or stereo
	ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")
	// ErrUnsupportedSampleWidth reports a sample width outside 1..4 bytes
	ErrUnsupportedSampleWidth = errors.New("unsupported sample width")
	// ErrResampling reports a degenerate resampling request
	ErrResampling = errors.New("resampling failed")
	// ErrDeviceOpen reports that the output device could not be opened
	ErrDeviceOpen = errors.New("device open failed")
	// ErrDeviceUnderflow reports device starvation; playback continues
	ErrDeviceUnderflow = errors.New("device write underflow")
)
