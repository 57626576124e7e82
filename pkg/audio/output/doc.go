// ABOUTME: Audio output package for playing PCM into a device
// ABOUTME: Provides the Output interface and malgo, oto and PortAudio backends
// Package output writes target-format PCM bytes to an audio device.
//
// Backends:
//   - malgo (default): miniaudio via malgo, can open a named device such as
//     a virtual cable, supports 8/16/24/32-bit
//   - oto: default system device only, 8 and 16-bit
//   - portaudio: blocking PortAudio stream, requires -tags portaudio
//
// Writes block until the device has room. A write made after the device
// starved returns an error wrapping audio.ErrDeviceUnderflow; the data was
// still queued and callers are expected to carry on.
//
// Example:
//
//	out, err := output.New(output.BackendMalgo, output.Config{DeviceName: "CABLE Input"})
//	err = out.Open(format)
//	err = out.Write(chunk.Data)
package output
