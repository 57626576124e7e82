// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Feeds a named or default miniaudio playback device from a byte ring buffer
package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	cfg      Config
	log      *logrus.Entry
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	ring     *RingBuffer

	ready     atomic.Bool
	started   atomic.Bool
	underruns atomic.Int64
	mu        sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo(cfg Config) *Malgo {
	cfg = cfg.withDefaults()
	return &Malgo{
		cfg: cfg,
		log: cfg.Logger.WithField("backend", BackendMalgo),
	}
}

// Open initializes the configured device at format
func (m *Malgo) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.format == format {
		m.log.Debug("Audio output already initialized with same format, reusing device")
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		m.log.WithFields(logrus.Fields{"old": m.format.String(), "new": format.String()}).
			Info("Format change detected, reinitializing device")
		m.closeDevice()
	}

	sampleFormat, err := malgoFormat(format)
	if err != nil {
		return err
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sampleFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = format.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	if m.cfg.DeviceName != "" {
		id, err := m.findDevice(m.cfg.DeviceName)
		if err != nil {
			return err
		}
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	silence := byte(0)
	if !format.Signed {
		silence = 0x80
	}
	bufferBytes := int(m.cfg.BufferDuration.Seconds()*float64(format.SampleRate)) * format.FrameSize()
	ring := NewRingBuffer(bufferBytes, silence)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(ring, pOutput)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.ring = ring
	m.format = format
	m.started.Store(false)
	m.underruns.Store(0)
	m.ready.Store(true)

	name := m.cfg.DeviceName
	if name == "" {
		name = "default"
	}
	m.log.WithFields(logrus.Fields{
		"device": name,
		"format": format.String(),
		"sample": formatName(sampleFormat),
	}).Info("Audio output initialized")

	return nil
}

// findDevice returns the ID of the playback device named name
func (m *Malgo) findDevice(name string) (malgo.DeviceID, error) {
	infos, err := m.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			return infos[i].ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("playback device %q not found", name)
}

// Write queues PCM bytes for playback, blocking while the ring buffer is full
func (m *Malgo) Write(data []byte) error {
	if !m.ready.Load() {
		return ErrNotOpen
	}

	m.mu.Lock()
	ring, format := m.ring, m.format
	m.mu.Unlock()

	if len(data)%format.FrameSize() != 0 {
		return fmt.Errorf("%w: write of %d bytes is not frame aligned", audio.ErrMalformedAudio, len(data))
	}

	m.started.Store(true)
	if n := ring.Write(data); n < len(data) {
		return ErrNotOpen
	}

	if starved := m.underruns.Swap(0); starved > 0 {
		return fmt.Errorf("%w: %d device periods starved", audio.ErrDeviceUnderflow, starved)
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(ring *RingBuffer, pOutput []byte) {
	n := ring.Read(pOutput)
	if n < len(pOutput) && m.started.Load() {
		m.underruns.Add(1)
	}
}

// Drain waits until the ring buffer has been consumed by the device
func (m *Malgo) Drain(ctx context.Context) error {
	m.mu.Lock()
	ring := m.ring
	m.mu.Unlock()
	if ring == nil {
		return nil
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for ring.Available() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Latency returns the duration of audio queued but not yet handed to the device
func (m *Malgo) Latency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ring == nil {
		return 0
	}
	return m.format.Duration(m.ring.Available())
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.WithError(err).Warn("malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	m.ready.Store(false)
	if m.ring != nil {
		m.ring.Close()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.log.WithError(err).Warn("device stop error")
		}
		m.device.Uninit()
		m.device = nil
	}
}

// malgoFormat maps a PCM layout to the miniaudio sample format
func malgoFormat(format audio.Format) (malgo.FormatType, error) {
	switch {
	case format.SampleWidth == 1 && !format.Signed:
		return malgo.FormatU8, nil
	case format.SampleWidth == 2 && format.Signed:
		return malgo.FormatS16, nil
	case format.SampleWidth == 3 && format.Signed:
		return malgo.FormatS24, nil
	case format.SampleWidth == 4 && format.Signed:
		return malgo.FormatS32, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("%w: malgo cannot play %s", audio.ErrUnsupportedSampleWidth, format)
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
