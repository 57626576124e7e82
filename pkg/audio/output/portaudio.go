//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Blocking PortAudio stream on a chosen device, reporting output underflow
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// PortAudio output implementation
type PortAudio struct {
	cfg    Config
	log    *logrus.Entry
	stream *portaudio.Stream
	format audio.Format

	// exactly one of these backs the stream, sized to one period
	buf8  []uint8
	buf16 []int16
	buf32 []int32

	mu sync.Mutex
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(cfg Config) *PortAudio {
	cfg = cfg.withDefaults()
	return &PortAudio{
		cfg: cfg,
		log: cfg.Logger.WithField("backend", BackendPortAudio),
	}
}

// Open initializes PortAudio and opens a blocking stream
func (p *PortAudio) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("portaudio stream already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	dev, err := p.selectDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = int(format.Channels)
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = p.cfg.FramesPerBuffer

	samples := p.cfg.FramesPerBuffer * int(format.Channels)
	var stream *portaudio.Stream
	switch format.SampleWidth {
	case 1:
		p.buf8 = make([]uint8, samples)
		stream, err = portaudio.OpenStream(params, &p.buf8)
	case 2:
		p.buf16 = make([]int16, samples)
		stream, err = portaudio.OpenStream(params, &p.buf16)
	default:
		// 24-bit is widened into the top of a 32-bit container
		p.buf32 = make([]int32, samples)
		stream, err = portaudio.OpenStream(params, &p.buf32)
	}
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.format = format
	p.log.WithFields(logrus.Fields{"device": dev.Name, "format": format.String()}).Info("Audio output initialized")
	return nil
}

func (p *PortAudio) selectDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.DeviceIndex < 0 && p.cfg.DeviceName == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default output device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i, dev := range devices {
		if dev.MaxOutputChannels == 0 {
			continue
		}
		if i == p.cfg.DeviceIndex || (p.cfg.DeviceName != "" && strings.EqualFold(dev.Name, p.cfg.DeviceName)) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("output device not found (index %d, name %q)", p.cfg.DeviceIndex, p.cfg.DeviceName)
}

// Write plays data one period at a time, zero-padding a short final period
func (p *PortAudio) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotOpen
	}

	width := int(p.format.SampleWidth)
	period := p.cfg.FramesPerBuffer * p.format.FrameSize()
	var underflow bool

	for off := 0; off < len(data); off += period {
		end := off + period
		if end > len(data) {
			end = len(data)
		}
		p.fill(data[off:end], width)

		if err := p.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				underflow = true
				continue
			}
			return fmt.Errorf("stream write failed: %w", err)
		}
	}

	if underflow {
		return fmt.Errorf("%w: portaudio reported output underflow", audio.ErrDeviceUnderflow)
	}
	return nil
}

// fill unpacks one period of PCM bytes into the stream buffer
func (p *PortAudio) fill(data []byte, width int) {
	n := len(data) / width
	switch width {
	case 1:
		copy(p.buf8, data)
		for i := n; i < len(p.buf8); i++ {
			p.buf8[i] = 0x80
		}
	case 2:
		for i := range p.buf16 {
			p.buf16[i] = 0
			if i < n {
				p.buf16[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
			}
		}
	case 3:
		for i := range p.buf32 {
			p.buf32[i] = 0
			if i < n {
				p.buf32[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]}) << 8
			}
		}
	default:
		for i := range p.buf32 {
			p.buf32[i] = 0
			if i < n {
				p.buf32[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
			}
		}
	}
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		p.log.WithError(err).Warn("portaudio stop error")
	}
	if err := p.stream.Close(); err != nil {
		p.log.WithError(err).Warn("portaudio close error")
	}
	p.stream = nil
	return portaudio.Terminate()
}
