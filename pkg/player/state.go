// ABOUTME: Player states and session statistics
// ABOUTME: Defines the lifecycle states, player errors and the session snapshot
package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
)

// State is the player lifecycle state
type State int32

const (
	Idle State = iota
	Priming
	Playing
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Priming:
		return "priming"
	case Playing:
		return "playing"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrNotStarted reports use of a player that has not been started
	ErrNotStarted = errors.New("player not started")
	// ErrStopped reports use of a player that is stopping or stopped
	ErrStopped = errors.New("player stopped")
	// ErrQueueFull reports a rejected enqueue under the Reject policy
	ErrQueueFull = errors.New("player queue full")
	// ErrAlreadyStarted reports Start or Reset on an active player
	ErrAlreadyStarted = errors.New("player already started")
)

// Session is a snapshot of the active or last playback session
type Session struct {
	ID      string
	Format  audio.Format
	Started time.Time
	Ended   time.Time

	// BytesWritten and ChunksWritten count real audio, not priming or trail silence
	BytesWritten  int64
	ChunksWritten int64
	SilenceChunks int64
	Underflows    int64
	WriteErrors   int64
}

// Played returns how much real audio has been written to the device
func (s Session) Played() time.Duration {
	return s.Format.Duration(int(s.BytesWritten))
}
