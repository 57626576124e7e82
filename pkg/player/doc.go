// ABOUTME: Streaming player package for continuous device injection
// ABOUTME: Feeds period-sized PCM chunks to an output from a dedicated goroutine
// Package player streams target-format PCM into an output device.
//
// A Player moves through Idle, Priming, Playing, Draining and Stopped. Start
// opens the device with bounded retries, primes it with silence and starts
// one playback goroutine that drains a bounded FIFO queue. Stop flushes any
// partial period as a zero-padded chunk, lets the queue run dry, writes
// trailing silence, waits for the device to drain and releases it exactly
// once.
//
// Every device write is exactly one period long. Underflows reported by the
// device are counted and logged; playback carries on.
//
// Example:
//
//	p := player.New(player.DefaultConfig())
//	if err := p.Start(ctx, format, out); err != nil {
//	    return err
//	}
//	io.Copy(p, pcm)
//	p.Stop()
package player
