// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays 8 and 16-bit PCM on the default device through a persistent pipe-fed player
package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// oto allows one context per process
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat audio.Format
	otoErr    error
)

// Oto output implementation using oto library
type Oto struct {
	cfg        Config
	log        *logrus.Entry
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	ready      bool
	mu         sync.Mutex
}

// NewOto creates a new Oto output. Oto always plays on the default device.
func NewOto(cfg Config) *Oto {
	cfg = cfg.withDefaults()
	return &Oto{
		cfg: cfg,
		log: cfg.Logger.WithField("backend", BackendOto),
	}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	sampleFormat, err := otoSampleFormat(format)
	if err != nil {
		return err
	}
	if o.cfg.DeviceName != "" {
		o.log.WithField("device", o.cfg.DeviceName).Warn("oto cannot select a device, using the system default")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready && o.format == format {
		return nil
	}

	ctx, err := sharedOtoContext(format, sampleFormat, o.cfg.BufferDuration)
	if err != nil {
		return err
	}
	if otoFormat != format {
		return fmt.Errorf("oto context already running at %s, cannot switch to %s", otoFormat, format)
	}

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.format = format
	o.ready = true

	o.log.WithField("format", format.String()).Info("Audio output initialized")
	return nil
}

func sharedOtoContext(format audio.Format, sampleFormat oto.Format, buffer time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   int(format.SampleRate),
			ChannelCount: int(format.Channels),
			Format:       sampleFormat,
			BufferSize:   buffer,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan
		otoCtx = ctx
		otoFormat = format
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if err := otoCtx.Resume(); err != nil {
		return nil, fmt.Errorf("failed to resume oto context: %w", err)
	}
	return otoCtx, nil
}

// Write outputs PCM bytes (blocks until the player has read them)
func (o *Oto) Write(data []byte) error {
	o.mu.Lock()
	ready, w, format := o.ready, o.pipeWriter, o.format
	o.mu.Unlock()

	if !ready {
		return ErrNotOpen
	}
	if len(data)%format.FrameSize() != 0 {
		return fmt.Errorf("%w: write of %d bytes is not frame aligned", audio.ErrMalformedAudio, len(data))
	}

	// Write to pipe (which feeds the persistent player)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Drain waits until the player has no buffered audio left
func (o *Oto) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for o.buffered() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Latency returns the duration of audio held by the player
func (o *Oto) Latency() time.Duration {
	o.mu.Lock()
	format := o.format
	o.mu.Unlock()
	return format.Duration(o.buffered())
}

func (o *Oto) buffered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return 0
	}
	return o.player.BufferedSize()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.ready && otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			o.log.WithError(err).Warn("oto suspend error")
		}
	}
	o.ready = false
	return nil
}

// otoSampleFormat maps a PCM layout to an oto sample format
func otoSampleFormat(format audio.Format) (oto.Format, error) {
	switch {
	case format.SampleWidth == 1 && !format.Signed:
		return oto.FormatUnsignedInt8, nil
	case format.SampleWidth == 2 && format.Signed:
		return oto.FormatSignedInt16LE, nil
	default:
		return 0, fmt.Errorf("%w: oto plays only u8 and s16, got %s", audio.ErrUnsupportedSampleWidth, format)
	}
}
