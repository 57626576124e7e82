// ABOUTME: Malgo-backed device enumeration
// ABOUTME: Lists miniaudio playback devices and their native data formats
package device

import (
	"fmt"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo enumerates playback devices through miniaudio
type Malgo struct {
	ctx *malgo.AllocatedContext
}

// NewMalgo initializes a miniaudio context for enumeration. Call Close when done.
func NewMalgo() (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &Malgo{ctx: ctx}, nil
}

// Playback lists playback devices in backend order
func (m *Malgo) Playback() ([]Info, error) {
	infos, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, err
	}

	devices := make([]Info, 0, len(infos))
	for i := range infos {
		devices = append(devices, Info{
			Index:     i,
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault != 0,
		})
	}
	return devices, nil
}

// Formats queries the native formats of the device at index
func (m *Malgo) Formats(index int) ([]audio.Format, error) {
	infos, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}

	full, err := m.ctx.DeviceInfo(malgo.Playback, infos[index].ID, malgo.Shared)
	if err != nil {
		return nil, err
	}

	var formats []audio.Format
	for i := 0; i < int(full.FormatCount) && i < len(full.Formats); i++ {
		df := full.Formats[i]
		width, signed, ok := sampleWidth(df.Format)
		if !ok {
			continue
		}
		formats = append(formats, audio.Format{
			SampleRate:  df.SampleRate,
			Channels:    uint8(df.Channels),
			SampleWidth: width,
			Signed:      signed,
		})
	}
	return formats, nil
}

// Close releases the miniaudio context
func (m *Malgo) Close() error {
	if m.ctx == nil {
		return nil
	}
	_ = m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	return nil
}

// sampleWidth maps integer miniaudio formats; float formats are not PCM targets
func sampleWidth(f malgo.FormatType) (uint8, bool, bool) {
	switch f {
	case malgo.FormatU8:
		return 1, false, true
	case malgo.FormatS16:
		return 2, true, true
	case malgo.FormatS24:
		return 3, true, true
	case malgo.FormatS32:
		return 4, true, true
	default:
		return 0, false, false
	}
}
