//go:build linux && amd64

package main

import (
	"bytes"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/retroenv/retrogolib/log"

	"chip86/pkg/chip8"
	"chip86/pkg/chip8/dynarec"
	"chip86/pkg/store"
)

// keypadMap assigns host keys to the hex keypad, the classic left-hand
// layout: 1234 / QWER / ASDF / ZXCV.
var keypadMap = [chip8.NumKeys]ebiten.Key{
	0x0: ebiten.KeyX,
	0x1: ebiten.Key1,
	0x2: ebiten.Key2,
	0x3: ebiten.Key3,
	0x4: ebiten.KeyQ,
	0x5: ebiten.KeyW,
	0x6: ebiten.KeyE,
	0x7: ebiten.KeyA,
	0x8: ebiten.KeyS,
	0x9: ebiten.KeyD,
	0xA: ebiten.KeyZ,
	0xB: ebiten.KeyC,
	0xC: ebiten.Key4,
	0xD: ebiten.KeyR,
	0xE: ebiten.KeyF,
	0xF: ebiten.KeyV,
}

// game owns the guest machine and the dynarec and runs one guest tick per
// ebiten update.
type game struct {
	st         *chip8.State
	mem        *dynarec.ExecMem
	cache      *dynarec.Cache
	translator *dynarec.Translator

	beeper *beeper
	saves  *store.Store
	romSum [32]byte

	opsPerTick int
	scale      int
	frame      *ebiten.Image
	pixels     []byte
	logger     *log.Logger
}

func newGame(romData []byte, opts options, logger *log.Logger) (*game, error) {
	st := chip8.New()
	if err := st.LoadROM(bytes.NewReader(romData)); err != nil {
		return nil, err
	}

	mem := dynarec.NewExecMem()

	g := &game{
		st:         st,
		mem:        mem,
		cache:      dynarec.NewCache(),
		translator: dynarec.NewTranslator(st, mem),
		romSum:     store.RomSum(romData),
		opsPerTick: opts.opsPerTick,
		scale:      opts.scale,
		frame:      ebiten.NewImage(chip8.ScreenWidth, chip8.ScreenHeight),
		pixels:     make([]byte, chip8.ScreenWidth*chip8.ScreenHeight*4),
		logger:     logger,
	}

	if opts.saves != "" {
		saves, err := store.Open(opts.saves, logger)
		if err != nil {
			return nil, err
		}
		g.saves = saves
	}

	beeper, err := newBeeper()
	if err != nil {
		// Audio is optional; run silent if the device is unavailable.
		logger.Error("audio disabled", log.Err(err))
	}
	g.beeper = beeper

	return g, nil
}

func (g *game) close() {
	if g.saves != nil {
		_ = g.saves.Close()
	}
	g.cache.Flush()
}

// Update runs one 60Hz guest tick: integrate input, execute at least
// opsPerTick guest instructions through the cache (translating on every
// miss), then count the timers down.
func (g *game) Update() error {
	g.pollKeys()

	if g.saves != nil {
		if err := g.handleSavestates(); err != nil {
			g.logger.Error("savestate failed", log.Err(err))
		}
	}

	for !g.cache.ExecuteN(&g.st.PC, g.opsPerTick) {
		for g.translator.Emit(g.st.Opcode(), &g.st.PC) {
		}
		if err := g.translator.Err(); err != nil {
			return fmt.Errorf("translation failed: %w", err)
		}

		var block *dynarec.CodeBlock
		for g.translator.GetCodeBlock(&block) {
			if !g.cache.Insert(block) {
				block.Release()
			}
		}
	}

	g.st.TickTimers()

	if g.beeper != nil {
		g.beeper.setActive(g.st.SoundTimer > 0)
	}
	return nil
}

func (g *game) pollKeys() {
	for key, host := range keypadMap {
		if ebiten.IsKeyPressed(host) {
			g.st.Keys[key] = 1
		} else {
			g.st.Keys[key] = 0
		}
	}
}

// handleSavestates maps F5 to save and F9 to load, slot 0. A load flushes
// the translation cache: the restored memory invalidates every block.
func (g *game) handleSavestates() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		if err := g.saves.Save(g.romSum, 0, g.st); err != nil {
			return err
		}
		g.logger.Info("state saved")

	case inpututil.IsKeyJustPressed(ebiten.KeyF9):
		if err := g.saves.Load(g.romSum, 0, g.st); err != nil {
			return err
		}
		g.cache.Flush()
		g.translator.Reset()
		g.st.NewFrame = 1
		g.logger.Info("state loaded")
	}
	return nil
}

// Draw refreshes the window from the guest framebuffer when a block
// reported screen changes.
func (g *game) Draw(screen *ebiten.Image) {
	if g.st.NewFrame != 0 {
		g.renderFrame()
		g.st.NewFrame = 0
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.frame, op)
}

func (g *game) renderFrame() {
	i := 0
	for y := 0; y < chip8.ScreenHeight; y++ {
		for x := 0; x < chip8.ScreenWidth; x++ {
			if g.st.Screen[y][x] == chip8.PixelOn {
				// lime green on black, like the original
				g.pixels[i+0] = 0x32
				g.pixels[i+1] = 0xCD
				g.pixels[i+2] = 0x32
			} else {
				g.pixels[i+0] = 0
				g.pixels[i+1] = 0
				g.pixels[i+2] = 0
			}
			g.pixels[i+3] = 0xFF
			i += 4
		}
	}
	g.frame.WritePixels(g.pixels)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return chip8.ScreenWidth * g.scale, chip8.ScreenHeight * g.scale
}
