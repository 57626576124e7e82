// ABOUTME: Source audio decoders for container files and raw PCM
// ABOUTME: Provides the Decoder interface, a registry by extension and WAV/MP3/FLAC/Opus support
// Package decode turns source audio into raw PCM bytes plus the format that
// describes them.
//
// Supports: WAV (integer PCM, 8/16/24/32-bit), MP3, FLAC, Ogg Opus (with the
// opus build tag) and headerless PCM described by a MIME type such as
// "audio/L16;rate=24000".
//
// Decoders never resample or remap; they only expose what the container
// holds. Conversion to the playback format is the pipeline's job.
//
// Example:
//
//	pcm, err := decode.File("speech.wav")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(pcm.Format, pcm.Duration())
package decode
