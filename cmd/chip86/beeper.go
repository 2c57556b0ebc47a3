//go:build linux && amd64

package main

import (
	"math"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

const (
	beeperSampleRate = 48000
	beeperFrequency  = 440
)

// beeper plays a square wave while the guest sound timer is running. It
// implements io.Reader for oto and produces silence when inactive.
type beeper struct {
	ctx    *oto.Context
	player *oto.Player
	active atomic.Bool
	phase  int
}

func newBeeper() (*beeper, error) {
	op := &oto.NewContextOptions{
		SampleRate:   beeperSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	b := &beeper{ctx: ctx}
	b.player = ctx.NewPlayer(b)
	b.player.Play()
	return b, nil
}

func (b *beeper) setActive(on bool) {
	b.active.Store(on)
}

// Read produces the next chunk of samples. Called from oto's audio
// goroutine.
func (b *beeper) Read(p []byte) (int, error) {
	active := b.active.Load()
	halfPeriod := beeperSampleRate / (2 * beeperFrequency)

	numSamples := len(p) / 4
	for i := 0; i < numSamples; i++ {
		var sample float32
		if active {
			if (b.phase/halfPeriod)%2 == 0 {
				sample = 0.25
			} else {
				sample = -0.25
			}
			b.phase++
		} else {
			b.phase = 0
		}

		bits := math.Float32bits(sample)
		p[i*4+0] = byte(bits)
		p[i*4+1] = byte(bits >> 8)
		p[i*4+2] = byte(bits >> 16)
		p[i*4+3] = byte(bits >> 24)
	}

	return numSamples * 4, nil
}
