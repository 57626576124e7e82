// ABOUTME: PCM sample codec package
// ABOUTME: Converts raw PCM bytes to and from normalized float64 samples
// Package codec converts PCM byte buffers of any supported width (1 to 4
// bytes, signed or unsigned, little-endian) to normalized samples in [-1, 1]
// and back.
//
// Example:
//
//	buf, err := codec.Decode(pcm, format)
//	out := codec.Encode(buf, target) // clips before quantizing, never fails for a valid width
package codec
