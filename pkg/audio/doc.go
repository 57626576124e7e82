// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer and Chunk types and the shared error taxonomy
// Package audio provides the fundamental types for normalizing PCM audio and
// feeding it to an output device.
//
// This package defines core types used throughout cablecast:
//   - Format: Describes a PCM byte layout (sample rate, channels, sample width, signedness)
//   - Buffer: Normalized float64 samples in [-1, 1], interleaved by channel
//   - Chunk: Exactly one device buffer period of target-format PCM bytes
//
// Example:
//
//	target, _ := audio.Target(16) // 48kHz, stereo, 16-bit
//	chunks, rest := audio.Split(pcm, target, 1024)
//	tail, _ := audio.NewChunk(rest, target, 1024) // zero-padded to a full period
package audio
