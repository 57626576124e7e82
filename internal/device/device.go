// ABOUTME: Output device lookup
// ABOUTME: Finds playback devices by index or name and detects virtual audio cables
package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/sirupsen/logrus"
)

// ErrNotFound reports that no playback device matched
var ErrNotFound = errors.New("device not found")

// VirtualKeywords mark a device name as a virtual audio cable
var VirtualKeywords = []string{"cable input", "cable", "vb-audio", "blackhole", "virtual", "loopback"}

// Info describes one playback device
type Info struct {
	Index     int
	Name      string
	IsDefault bool
	// Formats lists natively supported formats. A zero SampleRate or
	// Channels means the device accepts any value for that field.
	Formats []audio.Format
}

// Enumerator lists playback devices for a backend
type Enumerator interface {
	Playback() ([]Info, error)
	Formats(index int) ([]audio.Format, error)
}

// Lookup resolves user device selections against an Enumerator
type Lookup struct {
	enum Enumerator
	log  *logrus.Entry
}

// NewLookup creates a Lookup. A nil logger uses the standard logger.
func NewLookup(enum Enumerator, log *logrus.Entry) *Lookup {
	if log == nil {
		log = logrus.WithField("component", "device")
	}
	return &Lookup{enum: enum, log: log}
}

// Outputs returns every playback device
func (l *Lookup) Outputs() ([]Info, error) {
	infos, err := l.enum.Playback()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	return infos, nil
}

// Find returns the first device whose name contains name, ignoring case
func (l *Lookup) Find(name string) (Info, error) {
	infos, err := l.Outputs()
	if err != nil {
		return Info{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name), needle) {
			l.log.WithFields(logrus.Fields{"query": name, "device": info.Name}).Debug("Matched device by name")
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: no playback device matching %q", ErrNotFound, name)
}

// ByIndex returns the device at index
func (l *Lookup) ByIndex(index int) (Info, error) {
	infos, err := l.Outputs()
	if err != nil {
		return Info{}, err
	}
	for _, info := range infos {
		if info.Index == index {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: no playback device at index %d", ErrNotFound, index)
}

// Resolve accepts either a numeric index or a name substring
func (l *Lookup) Resolve(selector string) (Info, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return l.Default()
	}
	if index, err := strconv.Atoi(selector); err == nil {
		return l.ByIndex(index)
	}
	return l.Find(selector)
}

// Default returns the system default playback device
func (l *Lookup) Default() (Info, error) {
	infos, err := l.Outputs()
	if err != nil {
		return Info{}, err
	}
	for _, info := range infos {
		if info.IsDefault {
			return info, nil
		}
	}
	if len(infos) > 0 {
		return infos[0], nil
	}
	return Info{}, fmt.Errorf("%w: no playback devices", ErrNotFound)
}

// Capabilities returns the native formats of the device at index
func (l *Lookup) Capabilities(index int) ([]audio.Format, error) {
	if _, err := l.ByIndex(index); err != nil {
		return nil, err
	}
	formats, err := l.enum.Formats(index)
	if err != nil {
		return nil, fmt.Errorf("failed to query device %d: %w", index, err)
	}
	return formats, nil
}

// VirtualCables returns the playback devices that look like virtual cables
func (l *Lookup) VirtualCables() ([]Info, error) {
	infos, err := l.Outputs()
	if err != nil {
		return nil, err
	}
	var cables []Info
	for _, info := range infos {
		if IsVirtualCable(info.Name) {
			cables = append(cables, info)
		}
	}
	return cables, nil
}

// IsVirtualCable reports whether name contains a virtual cable keyword
func IsVirtualCable(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range VirtualKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SupportsFormat reports whether info advertises format. A device that
// advertises nothing is assumed to convert internally.
func SupportsFormat(info Info, format audio.Format) bool {
	if len(info.Formats) == 0 {
		return true
	}
	for _, f := range info.Formats {
		if f.SampleWidth != format.SampleWidth || f.Signed != format.Signed {
			continue
		}
		if f.SampleRate != 0 && f.SampleRate != format.SampleRate {
			continue
		}
		if f.Channels != 0 && f.Channels != format.Channels {
			continue
		}
		return true
	}
	return false
}
