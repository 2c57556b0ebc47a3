//go:build linux && amd64

// chip86 is a CHIP-8 emulator that translates guest code to amd64 machine
// code at runtime instead of interpreting it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/retroenv/retrogolib/log"

	"chip86/pkg/chip8"
	"chip86/pkg/errors"
	"chip86/pkg/util"
)

type options struct {
	rom        string
	opsPerTick int
	scale      int
	saves      string
	debug      bool
}

func main() {
	opts := parseFlags()

	logger := createLogger(opts.debug)

	if err := run(opts, logger); err != nil {
		if errors.IsEmuError(err) {
			logger.Error(err.Error())
		} else {
			logger.Error("emulator failed", log.Err(err))
		}
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options

	flag.IntVar(&opts.opsPerTick, "ops", 10, "guest instructions per 60Hz tick")
	flag.IntVar(&opts.scale, "scale", 8, "window scale factor")
	flag.StringVar(&opts.saves, "saves", "", "savestate database directory (empty disables savestates)")
	flag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] rom\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts.rom = flag.Arg(0)
	opts.opsPerTick = util.Clamp(opts.opsPerTick, 1, 10000)
	opts.scale = util.Clamp(opts.scale, 1, 32)
	return opts
}

func createLogger(debug bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	}
	return log.NewWithConfig(cfg)
}

func run(opts options, logger *log.Logger) error {
	romData, err := os.ReadFile(opts.rom)
	if err != nil {
		return errors.WrapEmuError(err, "reading ROM file")
	}

	game, err := newGame(romData, opts, logger)
	if err != nil {
		return err
	}
	defer game.close()

	logger.Info("ROM loaded",
		log.String("file", opts.rom),
		log.Int("bytes", len(romData)))

	ebiten.SetWindowSize(chip8.ScreenWidth*opts.scale, chip8.ScreenHeight*opts.scale)
	ebiten.SetWindowTitle("chip86")
	ebiten.SetScreenClearedEveryFrame(false)

	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("running frontend: %w", err)
	}
	return nil
}
