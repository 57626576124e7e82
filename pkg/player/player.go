// ABOUTME: Streaming player state machine and playback goroutine
// ABOUTME: Opens with retries, primes, drains a bounded FIFO and releases the device once
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/output"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// run holds the per-session queue and lifecycle signals
type run struct {
	queue chan audio.Chunk

	// eos is closed by Stop once no more chunks will be queued
	eos    chan struct{}
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	stopOnce    sync.Once
	releaseOnce sync.Once
	doneOnce    sync.Once
}

func newRun(capacity int) *run {
	return &run{
		queue: make(chan audio.Chunk, capacity),
		eos:   make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *run) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}

// Player streams period-sized chunks to an output
type Player struct {
	cfg Config
	log *logrus.Entry

	mu      sync.Mutex
	state   State
	opening bool
	out     output.Output
	format  audio.Format
	period  int
	r       *run
	err     error

	id      string
	started time.Time
	ended   time.Time

	bytesWritten  atomic.Int64
	chunksWritten atomic.Int64
	silenceChunks atomic.Int64
	underflows    atomic.Int64
	writeErrors   atomic.Int64

	writeMu sync.Mutex
	pending []byte
	// held mirrors len(pending) so Latency never waits on writeMu
	held atomic.Int64
}

// New creates an idle player
func New(cfg Config) *Player {
	cfg = cfg.withDefaults()
	return &Player{
		cfg:   cfg,
		log:   cfg.Logger,
		state: Idle,
		r:     newRun(cfg.QueueCapacity),
	}
}

// Start opens out at format, retrying with backoff, then starts playback.
// If every attempt fails the player ends Stopped and the error wraps
// audio.ErrDeviceOpen.
func (p *Player) Start(ctx context.Context, format audio.Format, out output.Output) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if out == nil {
		return errors.New("player: nil output")
	}

	p.mu.Lock()
	if p.state != Idle || p.opening {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.opening = true
	p.out = out
	p.format = format
	p.period = audio.PeriodBytes(format, p.cfg.FramesPerBuffer)
	r := p.r
	p.mu.Unlock()

	if err := p.open(ctx, out, format); err != nil {
		p.release(r, out)
		p.mu.Lock()
		p.opening = false
		p.err = err
		p.ended = time.Now()
		p.mu.Unlock()
		p.setState(Stopped)
		r.finish()
		return err
	}

	// Priming is set under the same lock that clears opening, so a
	// concurrent Stop always sees either opening or a started session.
	p.mu.Lock()
	p.opening = false
	p.id = uuid.New().String()
	p.started = time.Now()
	old := p.state
	p.state = Priming
	p.mu.Unlock()

	p.notifyState(old, Priming)
	go p.loop(ctx, r, out, format)
	return nil
}

// open tries the device up to OpenAttempts times
func (p *Player) open(ctx context.Context, out output.Output, format audio.Format) error {
	var err error
	for attempt := 1; attempt <= p.cfg.OpenAttempts; attempt++ {
		if err = out.Open(format); err == nil {
			p.log.WithFields(logrus.Fields{
				"format":  format.String(),
				"attempt": attempt,
			}).Info("Output device opened")
			return nil
		}

		p.log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"attempts": p.cfg.OpenAttempts,
		}).WithError(err).Warn("Failed to open output device")

		if attempt == p.cfg.OpenAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", audio.ErrDeviceOpen, ctx.Err())
		case <-time.After(p.cfg.OpenBackoff):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", audio.ErrDeviceOpen, p.cfg.OpenAttempts, err)
}

// loop is the playback goroutine; it exclusively owns out until release
func (p *Player) loop(ctx context.Context, r *run, out output.Output, format audio.Format) {
	defer r.finish()
	defer func() {
		p.release(r, out)
		p.mu.Lock()
		p.ended = time.Now()
		p.mu.Unlock()
		p.setState(Stopped)
	}()

	silence := audio.Silence(format, p.cfg.FramesPerBuffer)
	for i := 0; i < p.cfg.PrimeChunks; i++ {
		if ctx.Err() != nil {
			p.abort(ctx.Err())
			return
		}
		p.write(out, silence, false)
	}
	p.setState(Playing)

	timer := time.NewTimer(p.cfg.PopTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk := <-r.queue:
			p.write(out, chunk, true)
			continue
		case <-r.eos:
			// nothing can be queued after eos, so the queue drains in order
			for {
				select {
				case chunk := <-r.queue:
					p.write(out, chunk, true)
					continue
				default:
				}
				break
			}
		case <-ctx.Done():
			p.abort(ctx.Err())
			return
		case <-timer.C:
			timer.Reset(p.cfg.PopTimeout)
			continue
		}
		break
	}

	p.setState(Draining)
	for i := 0; i < p.cfg.TrailChunks; i++ {
		p.write(out, silence, false)
	}
	p.waitFlushed(ctx, out)
}

// abort records a cancellation; the deferred release still runs
func (p *Player) abort(err error) {
	p.log.WithError(err).Info("Playback cancelled")
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

// waitFlushed blocks until out reports it has played everything, or for
// DrainDelay when it cannot report
func (p *Player) waitFlushed(ctx context.Context, out output.Output) {
	if d, ok := out.(output.Drainer); ok {
		dctx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout)
		defer cancel()
		if err := d.Drain(dctx); err != nil {
			p.log.WithError(err).Warn("Output did not drain")
		}
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.DrainDelay):
	}
}

// write sends one period to the device. Failures are counted, never fatal.
func (p *Player) write(out output.Output, chunk audio.Chunk, real bool) {
	err := out.Write(chunk.Data)
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrDeviceUnderflow):
		n := p.underflows.Add(1)
		p.log.WithField("underflows", n).WithError(err).Warn("Device underflow, continuing")
	default:
		p.writeErrors.Add(1)
		p.log.WithError(err).Error("Device write failed")
		return
	}

	if !real {
		p.silenceChunks.Add(1)
		return
	}
	p.bytesWritten.Add(int64(len(chunk.Data)))
	p.chunksWritten.Add(1)
	if p.cfg.OnProgress != nil {
		p.cfg.OnProgress(p.Session())
	}
}

// release closes the output exactly once per session
func (p *Player) release(r *run, out output.Output) {
	r.releaseOnce.Do(func() {
		if err := out.Close(); err != nil {
			p.log.WithError(err).Warn("Failed to close output device")
		}
		p.log.Debug("Output device released")
	})
}

// Enqueue queues one chunk for playback. Short chunks are padded with
// silence to a full period; longer ones are rejected.
func (p *Player) Enqueue(ctx context.Context, chunk audio.Chunk) error {
	p.mu.Lock()
	format, state := p.format, p.state
	p.mu.Unlock()

	if err := checkState(state); err != nil {
		return err
	}
	if chunk.Format != (audio.Format{}) && chunk.Format != format {
		return fmt.Errorf("%w: chunk format %s does not match stream format %s",
			audio.ErrMalformedAudio, chunk.Format, format)
	}
	if len(chunk.Data) != audio.PeriodBytes(format, p.cfg.FramesPerBuffer) {
		padded, err := audio.NewChunk(chunk.Data, format, p.cfg.FramesPerBuffer)
		if err != nil {
			return err
		}
		chunk = padded
	}
	chunk.Format = format
	return p.push(ctx, chunk)
}

// push adds a full period to the queue under the backpressure policy
func (p *Player) push(ctx context.Context, chunk audio.Chunk) error {
	return p.send(ctx, chunk, p.cfg.Backpressure)
}

func (p *Player) send(ctx context.Context, chunk audio.Chunk, policy Backpressure) error {
	p.mu.Lock()
	state, r := p.state, p.r
	p.mu.Unlock()
	if err := checkState(state); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrStopped
	}

	if policy == Reject {
		select {
		case r.queue <- chunk:
			return nil
		default:
			return ErrQueueFull
		}
	}

	select {
	case r.queue <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

func checkState(state State) error {
	switch state {
	case Idle:
		return ErrNotStarted
	case Stopped:
		return ErrStopped
	default:
		return nil
	}
}

// Write implements io.Writer. Bytes are collected into full periods and
// queued; a partial period is held until more data arrives or Stop pads it.
// On a push failure n counts the bytes of b that were queued, so retrying
// with b[n:] neither drops nor repeats audio.
func (p *Player) Write(b []byte) (int, error) {
	p.mu.Lock()
	format, state := p.format, p.state
	p.mu.Unlock()
	if err := checkState(state); err != nil {
		return 0, err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	held := len(p.pending)
	p.pending = append(p.pending, b...)
	chunks, rest := audio.Split(p.pending, format, p.cfg.FramesPerBuffer)
	queued := 0
	for _, chunk := range chunks {
		if err := p.push(context.Background(), chunk); err != nil {
			// keep only previously held bytes that are still unqueued;
			// the unqueued part of b belongs to the caller's retry
			p.pending = append([]byte(nil), p.pending[queued:max(queued, held)]...)
			p.held.Store(int64(len(p.pending)))
			return max(queued-held, 0), err
		}
		queued += len(chunk.Data)
	}
	p.pending = append([]byte(nil), rest...)
	p.held.Store(int64(len(p.pending)))
	return len(b), nil
}

// flushTail queues held bytes as full periods followed by one zero-padded
// chunk. Stop waits for queue space here whatever the backpressure policy.
func (p *Player) flushTail() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if len(p.pending) == 0 {
		return
	}

	p.mu.Lock()
	format := p.format
	p.mu.Unlock()

	// drop a trailing partial frame; it cannot be played
	held := p.pending[:len(p.pending)-len(p.pending)%format.FrameSize()]
	p.pending = nil
	p.held.Store(0)
	if len(held) == 0 {
		return
	}

	chunks, rest := audio.Split(held, format, p.cfg.FramesPerBuffer)
	if len(rest) > 0 {
		tail, err := audio.NewChunk(rest, format, p.cfg.FramesPerBuffer)
		if err != nil {
			p.log.WithError(err).Warn("Dropped final partial chunk")
		} else {
			chunks = append(chunks, tail)
		}
	}
	for i, chunk := range chunks {
		if err := p.send(context.Background(), chunk, Block); err != nil {
			p.log.WithError(err).WithField("chunks", len(chunks)-i).Warn("Dropped held audio")
			return
		}
	}
}

// Stop ends the stream: held bytes are flushed with the last period padded,
// queued chunks play out, trailing silence is written and the device is
// released.
// It is safe to call concurrently and more than once.
func (p *Player) Stop() error {
	p.mu.Lock()
	r := p.r
	p.mu.Unlock()

	r.stopOnce.Do(func() { p.stop(r) })
	<-r.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Player) stop(r *run) {
	p.mu.Lock()
	if p.state == Idle && !p.opening {
		p.mu.Unlock()
		p.setState(Stopped)
		r.finish()
		return
	}
	p.mu.Unlock()

	p.flushTail()

	r.mu.Lock()
	r.closed = true
	close(r.eos)
	r.mu.Unlock()
	p.log.Debug("End of stream queued")
}

// Wait blocks until the session has ended and returns its error
func (p *Player) Wait() error {
	<-p.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed when the session has ended and the device is released
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.done
}

// State returns the current state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()

	p.notifyState(old, s)
}

// notifyState logs a transition and reports it to OnStateChange
func (p *Player) notifyState(old, s State) {
	if old == s {
		return
	}
	p.log.WithFields(logrus.Fields{"from": old.String(), "to": s.String()}).Info("Player state changed")
	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(old, s)
	}
}

// Session returns a snapshot of the current session
func (p *Player) Session() Session {
	p.mu.Lock()
	s := Session{
		ID:      p.id,
		Format:  p.format,
		Started: p.started,
		Ended:   p.ended,
	}
	p.mu.Unlock()

	s.BytesWritten = p.bytesWritten.Load()
	s.ChunksWritten = p.chunksWritten.Load()
	s.SilenceChunks = p.silenceChunks.Load()
	s.Underflows = p.underflows.Load()
	s.WriteErrors = p.writeErrors.Load()
	return s
}

// Pending returns the number of queued chunks
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.r.queue)
}

// ClearQueue drops every queued chunk and any held partial period.
// It returns the number of chunks dropped.
func (p *Player) ClearQueue() int {
	p.mu.Lock()
	r := p.r
	p.mu.Unlock()

	p.writeMu.Lock()
	p.pending = nil
	p.held.Store(0)
	p.writeMu.Unlock()

	dropped := 0
	for {
		select {
		case <-r.queue:
			dropped++
		default:
			if dropped > 0 {
				p.log.WithField("dropped", dropped).Info("Cleared playback queue")
			}
			return dropped
		}
	}
}

// Latency estimates how long newly queued audio waits before it is heard:
// queued and held audio plus whatever the output reports as buffered
func (p *Player) Latency() time.Duration {
	p.mu.Lock()
	format, out, period, queued := p.format, p.out, p.period, len(p.r.queue)
	p.mu.Unlock()
	if format.SampleRate == 0 {
		return 0
	}

	latency := format.Duration(queued*period + int(p.held.Load()))
	if lr, ok := out.(output.LatencyReporter); ok {
		latency += lr.Latency()
	}
	return latency
}

// Reset returns a stopped player to Idle for a new session
func (p *Player) Reset() error {
	p.mu.Lock()
	if p.state != Stopped && p.state != Idle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	if p.opening {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.r = newRun(p.cfg.QueueCapacity)
	p.err = nil
	p.out = nil
	p.id = ""
	p.started = time.Time{}
	p.ended = time.Time{}
	p.mu.Unlock()

	p.writeMu.Lock()
	p.pending = nil
	p.held.Store(0)
	p.writeMu.Unlock()

	p.bytesWritten.Store(0)
	p.chunksWritten.Store(0)
	p.silenceChunks.Store(0)
	p.underflows.Store(0)
	p.writeErrors.Store(0)

	p.setState(Idle)
	return nil
}
