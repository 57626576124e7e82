// ABOUTME: Play run orchestration
// ABOUTME: Loads a source, resolves the device, converts and streams it through the player
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/cablecast/internal/config"
	"github.com/Resonate-Protocol/cablecast/internal/device"
	"github.com/Resonate-Protocol/cablecast/internal/ui"
	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/decode"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/output"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/pipeline"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/resample"
	"github.com/Resonate-Protocol/cablecast/pkg/player"
	"github.com/sirupsen/logrus"
)

// OutputFactory creates the device handle for a backend
type OutputFactory func(backend string, cfg output.Config) (output.Output, error)

// Player runs one file through conversion and playback
type Player struct {
	config    config.Config
	log       *logrus.Entry
	registry  *decode.Registry
	lookup    *device.Lookup
	newOutput OutputFactory
	status    func(ui.StatusMsg)
}

// Option configures a Player
type Option func(*Player)

// WithRegistry replaces the default container registry
func WithRegistry(r *decode.Registry) Option {
	return func(p *Player) { p.registry = r }
}

// WithLookup resolves the configured device through l. Without a lookup
// the device setting is passed to the backend as an exact name.
func WithLookup(l *device.Lookup) Option {
	return func(p *Player) { p.lookup = l }
}

// WithOutputFactory replaces output.New
func WithOutputFactory(f OutputFactory) Option {
	return func(p *Player) { p.newOutput = f }
}

// WithStatus receives progress for a UI
func WithStatus(fn func(ui.StatusMsg)) Option {
	return func(p *Player) { p.status = fn }
}

// WithLogger sets the logger
func WithLogger(l *logrus.Entry) Option {
	return func(p *Player) { p.log = l }
}

// New creates a new play orchestrator
func New(cfg config.Config, opts ...Option) *Player {
	p := &Player{
		config:    cfg,
		log:       logrus.WithField("component", "app"),
		registry:  decode.DefaultRegistry(),
		newOutput: output.New,
		status:    func(ui.StatusMsg) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play streams file to the configured device and blocks until the device
// has been released. The returned session is valid even on error.
func (p *Player) Play(ctx context.Context, file string) (player.Session, error) {
	target, err := p.config.Target()
	if err != nil {
		return player.Session{}, err
	}

	pcm, err := p.load(file)
	if err != nil {
		return player.Session{}, err
	}
	p.log.WithFields(logrus.Fields{
		"file":     filepath.Base(file),
		"format":   pcm.Format.String(),
		"duration": pcm.Duration(),
	}).Info("Source loaded")
	p.status(ui.StatusMsg{File: filepath.Base(file), SourceFormat: pcm.Format.String()})

	outCfg, err := p.resolveDevice(target)
	if err != nil {
		return player.Session{}, err
	}

	data, err := p.convert(pcm, target)
	if err != nil {
		return player.Session{}, err
	}
	p.status(ui.StatusMsg{TargetFormat: target.String(), Total: target.Duration(len(data))})

	out, err := p.newOutput(p.config.Backend, outCfg)
	if err != nil {
		return player.Session{}, err
	}

	return p.stream(ctx, data, target, out)
}

// load decodes the source; a configured MIME type marks it as headerless PCM
func (p *Player) load(file string) (decode.PCM, error) {
	if p.config.MIME == "" {
		return p.registry.File(file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return decode.PCM{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	pcm, err := decode.Raw(data, p.config.MIME)
	if err != nil {
		return decode.PCM{}, err
	}
	pcm.Name = filepath.Base(file)
	return pcm, nil
}

// resolveDevice turns the device setting into an output config
func (p *Player) resolveDevice(target audio.Format) (output.Config, error) {
	cfg := output.DefaultConfig()
	cfg.FramesPerBuffer = p.config.FramesPerBuffer
	cfg.Logger = p.log.WithField("component", "output")

	if p.lookup == nil {
		if index, err := strconv.Atoi(p.config.Device); err == nil {
			cfg.DeviceIndex = index
		} else {
			cfg.DeviceName = p.config.Device
		}
		name := p.config.Device
		if name == "" {
			name = "default"
		}
		p.status(ui.StatusMsg{Device: name, Virtual: device.IsVirtualCable(name)})
		return cfg, nil
	}

	info, err := p.lookup.Resolve(p.config.Device)
	if err != nil {
		return output.Config{}, fmt.Errorf("%w: %w", audio.ErrDeviceOpen, err)
	}

	virtual := device.IsVirtualCable(info.Name)
	fields := logrus.Fields{"device": info.Name, "index": info.Index, "virtual": virtual}
	if !virtual {
		p.log.WithFields(fields).Warn("Selected device does not look like a virtual cable")
	} else {
		p.log.WithFields(fields).Info("Selected output device")
	}

	if formats, err := p.lookup.Capabilities(info.Index); err != nil {
		p.log.WithError(err).Debug("Could not query device formats")
	} else {
		info.Formats = formats
		if !device.SupportsFormat(info, target) {
			p.log.WithFields(logrus.Fields{
				"device": info.Name,
				"format": target.String(),
			}).Warn("Device does not advertise the target format; the backend will convert")
		}
	}

	cfg.DeviceName = info.Name
	cfg.DeviceIndex = info.Index
	p.status(ui.StatusMsg{Device: info.Name, Virtual: virtual})
	return cfg, nil
}

// convert brings the source to the device format, shaping it if enabled
func (p *Player) convert(pcm decode.PCM, target audio.Format) ([]byte, error) {
	r := resample.New(
		resample.WithLogger(p.log.WithField("component", "resample")),
		resample.WithFallbackHandler(func(f resample.Fallback) {
			p.log.WithFields(logrus.Fields{
				"from": f.FromRate,
				"to":   f.ToRate,
			}).Warn("Audio was resampled with linear interpolation")
		}),
	)
	pipe := pipeline.New(
		pipeline.WithResampler(r),
		pipeline.WithPeakNormalize(p.config.Normalize),
		pipeline.WithLogger(p.log.WithField("component", "pipeline")),
	)

	opts := p.config.ShapeOptions()
	if opts != nil {
		p.status(ui.StatusMsg{Shaping: describeShaping(p.config)})
	}

	data, err := pipe.Convert(pcm.Data, pcm.Format, target, opts)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"from":  pcm.Format.String(),
		"to":    target.String(),
		"bytes": len(data),
	}).Info("Conversion complete")
	return data, nil
}

// stream plays data period by period and waits for the device release
func (p *Player) stream(ctx context.Context, data []byte, target audio.Format, out output.Output) (player.Session, error) {
	var pl *player.Player
	pl = player.New(player.Config{
		FramesPerBuffer: p.config.FramesPerBuffer,
		PrimeChunks:     p.config.PrimeChunks,
		TrailChunks:     p.config.TrailChunks,
		QueueCapacity:   p.config.QueueCapacity,
		Logger:          p.log.WithField("component", "player"),
		OnProgress: func(s player.Session) {
			p.status(ui.StatusMsg{
				Played:      s.Played(),
				Latency:     pl.Latency(),
				Chunks:      s.ChunksWritten,
				Silence:     s.SilenceChunks,
				Underflows:  s.Underflows,
				WriteErrors: s.WriteErrors,
			})
		},
		OnStateChange: func(_, to player.State) {
			p.status(ui.StatusMsg{State: to.String()})
		},
	})

	if err := pl.Start(ctx, target, out); err != nil {
		return pl.Session(), err
	}
	p.status(ui.StatusMsg{SessionID: pl.Session().ID})

	chunks, rest := audio.Split(data, target, p.config.FramesPerBuffer)
	for _, chunk := range chunks {
		if err := pl.Enqueue(ctx, chunk); err != nil {
			if !errors.Is(err, ctx.Err()) {
				p.log.WithError(err).Error("Failed to queue audio")
			}
			break
		}
	}
	if ctx.Err() == nil && len(rest) > 0 {
		if _, err := pl.Write(rest); err != nil {
			p.log.WithError(err).Warn("Failed to queue final partial period")
		}
	}

	err := pl.Stop()
	s := pl.Session()
	p.log.WithFields(logrus.Fields{
		"session":    s.ID,
		"played":     s.Played(),
		"chunks":     s.ChunksWritten,
		"underflows": s.Underflows,
	}).Info("Playback finished")
	return s, err
}

func describeShaping(cfg config.Config) string {
	var parts []string
	if cfg.AntiGating {
		parts = append(parts, "pilot")
	}
	if cfg.Wake {
		parts = append(parts, "wake", "trail")
	}
	if cfg.Boost != 1.0 {
		parts = append(parts, fmt.Sprintf("boost x%.2f", cfg.Boost))
	}
	return strings.Join(parts, " + ")
}
