// ABOUTME: Entry point for the cablecast command
// ABOUTME: Parses subcommands and flags, sets up logging and runs playback
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/cablecast/internal/app"
	"github.com/Resonate-Protocol/cablecast/internal/config"
	"github.com/Resonate-Protocol/cablecast/internal/device"
	"github.com/Resonate-Protocol/cablecast/internal/ui"
	"github.com/Resonate-Protocol/cablecast/internal/version"
	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/decode"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/output"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// Exit codes
const (
	exitOK         = 0
	exitDeviceOpen = 1
	exitBadInput   = 2
	exitFailure    = 3
)

const usage = `Usage: cablecast <command> [flags]

Commands:
  play <file>   Convert an audio file and stream it into an output device
  devices       List playback devices and detect virtual cables
  version       Print version information

Run 'cablecast play -h' for play flags.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return exitBadInput
	}

	switch args[0] {
	case "play":
		return runPlay(args[1:])
	case "devices":
		return runDevices()
	case "version", "--version", "-v":
		fmt.Printf("%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		return exitOK
	case "help", "-h", "--help":
		fmt.Print(usage)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitBadInput
	}
}

// parsePlayFlags overlays command flags on cfg and returns the file argument
func parsePlayFlags(args []string, cfg *config.Config) (string, error) {
	flags := flag.NewFlagSet("play", flag.ContinueOnError)
	flags.StringVar(&cfg.Device, "device", cfg.Device, "Output device index or name substring")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "Output backend: malgo, oto or portaudio")
	flags.IntVar(&cfg.BitDepth, "bit-depth", cfg.BitDepth, "Device bit depth: 8, 16, 24 or 32")
	flags.IntVar(&cfg.FramesPerBuffer, "frames-per-buffer", cfg.FramesPerBuffer, "Frames per device write")
	flags.BoolVar(&cfg.AntiGating, "anti-gating", cfg.AntiGating, "Mix a low pilot tone under the audio")
	flags.BoolVar(&cfg.Wake, "wake", cfg.Wake, "Prepend a wake sweep and append a trailing tone")
	flags.Float64Var(&cfg.Boost, "boost", cfg.Boost, "Level boost applied before clipping")
	flags.StringVar(&cfg.MIME, "mime", cfg.MIME, "Treat the file as headerless PCM of this type (e.g. "+decode.DefaultRawMIME+")")
	normalize := flags.Bool("normalize", cfg.Normalize > 0, "Peak-normalize converted audio to 0.95")
	flags.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI, "Disable TUI, stream logs instead")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	level := flags.String("log-level", cfg.LogLevel.String(), "Log level")

	// Accept the file before or after flags
	var file string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		file, args = args[0], args[1:]
	}
	if err := flags.Parse(args); err != nil {
		return "", err
	}
	if file == "" && flags.NArg() > 0 {
		file = flags.Arg(0)
	}
	if file == "" {
		return "", errors.New("play needs an audio file")
	}

	if *normalize && cfg.Normalize == 0 {
		cfg.Normalize = 0.95
	}
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		return "", err
	}
	cfg.LogLevel = lvl
	return file, cfg.Validate()
}

func runPlay(args []string) int {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return exitBadInput
	}
	file, err := parsePlayFlags(args, &cfg)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "play: %v\n", err)
		return exitBadInput
	}

	useTUI := !cfg.NoTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		return exitFailure
	}
	defer func() { _ = f.Close() }()

	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if useTUI {
		// TUI mode: log only to file
		logrus.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log := logrus.WithField("component", "main")
	log.WithFields(logrus.Fields{
		"version": version.Version,
		"file":    file,
		"backend": cfg.Backend,
	}).Info("Starting cablecast")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// TUI setup
	var tuiProg *tea.Program
	var tuiDone chan struct{}
	if useTUI {
		ctrl := ui.NewControl()
		tuiProg, err = ui.Run(ctrl)
		if err != nil {
			log.WithError(err).Error("Failed to start TUI")
			return exitFailure
		}
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				log.WithError(err).Warn("TUI exited with error")
			}
		}()
		go func() {
			select {
			case <-ctrl.Stop:
				log.Info("Stop requested from TUI")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	opts := []app.Option{app.WithLogger(logrus.WithField("component", "app"))}
	if tuiProg != nil {
		opts = append(opts, app.WithStatus(func(msg ui.StatusMsg) { tuiProg.Send(msg) }))
	}
	if cfg.Backend == output.BackendMalgo {
		enum, err := device.NewMalgo()
		if err != nil {
			log.WithError(err).Warn("Device enumeration unavailable, using the device name as given")
		} else {
			defer enum.Close()
			opts = append(opts, app.WithLookup(device.NewLookup(enum, logrus.WithField("component", "device"))))
		}
	}

	session, err := app.New(cfg, opts...).Play(ctx, file)

	if tuiProg != nil {
		tuiProg.Send(ui.DoneMsg{Err: err})
		<-tuiDone
	}

	if err != nil {
		log.WithError(err).Error("Playback failed")
		fmt.Fprintf(os.Stderr, "cablecast: %v\n", err)
		return exitCode(err)
	}

	log.WithFields(logrus.Fields{
		"session":    session.ID,
		"played":     session.Played(),
		"underflows": session.Underflows,
	}).Info("Playback complete")
	if !useTUI {
		fmt.Printf("Played %s to the device (%d underflows)\n", session.Played(), session.Underflows)
	}
	return exitOK
}

func runDevices() int {
	enum, err := device.NewMalgo()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cablecast: %v\n", err)
		return exitFailure
	}
	defer enum.Close()

	if err := app.ListDevices(os.Stdout, device.NewLookup(enum, nil)); err != nil {
		fmt.Fprintf(os.Stderr, "cablecast: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// exitCode maps a play error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, audio.ErrDeviceOpen):
		return exitDeviceOpen
	case errors.Is(err, audio.ErrMalformedAudio),
		errors.Is(err, audio.ErrUnsupportedChannelLayout),
		errors.Is(err, audio.ErrUnsupportedSampleWidth),
		errors.Is(err, decode.ErrUnsupportedContainer),
		errors.Is(err, fs.ErrNotExist):
		return exitBadInput
	default:
		return exitFailure
	}
}
