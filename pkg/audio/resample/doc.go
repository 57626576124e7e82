// ABOUTME: Audio resampling package with band-limited sinc conversion
// ABOUTME: Converts normalized buffers between sample rates, channel by channel
// Package resample provides audio sample rate conversion.
//
// The primary engine is a polyphase windowed-sinc resampler. Each channel is
// de-interleaved and converted independently so channels never smear into
// each other. When the sinc engine cannot serve a request the resampler falls
// back to linear interpolation; that fallback aliases on rate reduction, so
// it is always logged at warning level and reported to the caller.
//
// Example:
//
//	r := resample.New(resample.WithFallbackHandler(func(fb resample.Fallback) {
//	    log.Printf("degraded resample: %v", fb.Reason)
//	}))
//	out, err := r.Resample(buf, 48000)
package resample
