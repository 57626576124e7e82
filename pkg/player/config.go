// ABOUTME: Player configuration and defaults
// ABOUTME: Period size, priming, queue bounds, retry and drain timing
package player

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Backpressure selects what Enqueue does when the queue is full
type Backpressure int

const (
	// Block waits for space, honoring the caller's context
	Block Backpressure = iota
	// Reject fails immediately with ErrQueueFull
	Reject
)

func (b Backpressure) String() string {
	if b == Reject {
		return "reject"
	}
	return "block"
}

// Config holds player configuration
type Config struct {
	// FramesPerBuffer is the device period; every write is this many frames
	FramesPerBuffer int

	// PrimeChunks of silence are written before any real audio
	PrimeChunks int

	// TrailChunks of silence are written after the last real chunk
	TrailChunks int

	// QueueCapacity bounds the number of pending chunks
	QueueCapacity int

	Backpressure Backpressure

	// PopTimeout bounds each wait on the queue so the loop can check for cancellation
	PopTimeout time.Duration

	// OpenAttempts and OpenBackoff bound device open retries
	OpenAttempts int
	OpenBackoff  time.Duration

	// DrainTimeout bounds waiting on outputs that report draining
	DrainTimeout time.Duration

	// DrainDelay is slept after the trail when the output cannot report draining
	DrainDelay time.Duration

	Logger *logrus.Entry

	// OnProgress is called from the playback goroutine after each real chunk
	OnProgress func(Session)

	// OnStateChange is called on every state transition
	OnStateChange func(from, to State)
}

// DefaultConfig returns the default player configuration
func DefaultConfig() Config {
	return Config{
		FramesPerBuffer: 1024,
		PrimeChunks:     10,
		TrailChunks:     20,
		QueueCapacity:   512,
		Backpressure:    Block,
		PopTimeout:      100 * time.Millisecond,
		OpenAttempts:    3,
		OpenBackoff:     500 * time.Millisecond,
		DrainTimeout:    5 * time.Second,
		DrainDelay:      time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig. Prime and trail counts
// may legitimately be zero and are left alone.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = d.FramesPerBuffer
	}
	if c.PrimeChunks < 0 {
		c.PrimeChunks = 0
	}
	if c.TrailChunks < 0 {
		c.TrailChunks = 0
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = d.PopTimeout
	}
	if c.OpenAttempts <= 0 {
		c.OpenAttempts = d.OpenAttempts
	}
	if c.OpenBackoff < 0 {
		c.OpenBackoff = 0
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	if c.DrainDelay < 0 {
		c.DrainDelay = 0
	}
	if c.Logger == nil {
		c.Logger = logrus.WithField("component", "player")
	}
	return c
}
