// ABOUTME: Test tone sender for verifying audio routing
// ABOUTME: Streams a sine tone, optionally anti-gated, into an output device
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/cablecast/internal/device"
	"github.com/Resonate-Protocol/cablecast/internal/tone"
	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/codec"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/output"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/shape"
	"github.com/Resonate-Protocol/cablecast/pkg/player"
	"github.com/sirupsen/logrus"
)

var (
	deviceSel  = flag.String("device", "", "Output device index or name substring (default: system default)")
	backend    = flag.String("backend", output.BackendMalgo, "Output backend: malgo, oto or portaudio")
	frequency  = flag.Float64("freq", tone.DefaultFrequency, "Tone frequency in Hz")
	amplitude  = flag.Float64("amplitude", tone.DefaultAmplitude, "Tone amplitude in [0, 1]")
	duration   = flag.Duration("duration", 3*time.Second, "Tone duration")
	bitDepth   = flag.Int("bit-depth", 16, "Device bit depth")
	antiGating = flag.Bool("anti-gating", false, "Mix the pilot tone under the test tone")
	wake       = flag.Bool("wake", false, "Prepend a wake sweep and append a trailing tone")
	verbose    = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "tone")

	if err := run(log); err != nil {
		log.WithError(err).Error("Test tone failed")
		os.Exit(1)
	}
}

func run(log *logrus.Entry) error {
	target, err := audio.Target(*bitDepth)
	if err != nil {
		return err
	}

	src, err := tone.New(target, *frequency, *amplitude)
	if err != nil {
		return err
	}
	buf := src.Next(int(duration.Seconds() * float64(target.SampleRate)))

	if *antiGating || *wake {
		opts := shape.DefaultOptions()
		if !*antiGating {
			opts.PilotAmplitude = 0
		}
		if *wake {
			opts = opts.WithWake()
		}
		if buf, err = shape.Apply(buf, opts); err != nil {
			return err
		}
	}
	data := codec.Encode(buf, target)

	outCfg := output.DefaultConfig()
	outCfg.Logger = log.WithField("component", "output")
	if *deviceSel != "" {
		enum, err := device.NewMalgo()
		if err != nil {
			return err
		}
		defer enum.Close()

		info, err := device.NewLookup(enum, nil).Resolve(*deviceSel)
		if err != nil {
			return err
		}
		outCfg.DeviceName = info.Name
		outCfg.DeviceIndex = info.Index
		fmt.Printf("Sending %gHz to %s\n", *frequency, info.Name)
	}

	out, err := output.New(*backend, outCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := player.DefaultConfig()
	cfg.Logger = log.WithField("component", "player")
	p := player.New(cfg)
	if err := p.Start(ctx, target, out); err != nil {
		return err
	}

	// The player is an io.Writer; a partial final period is padded on Stop
	if _, err := p.Write(data); err != nil {
		log.WithError(err).Warn("Stopped feeding tone")
	}
	if err := p.Stop(); err != nil {
		return err
	}

	s := p.Session()
	fmt.Printf("Played %s (%d chunks, %d underflows)\n", s.Played(), s.ChunksWritten, s.Underflows)
	return nil
}
