// Package chip8 holds the guest machine state shared between the dispatch
// loop and the translated code. The State struct is the ABI of the generated
// blocks: every field is addressed as an offset from the struct base, so a
// State must be heap-allocated once and never moved while translated code is
// alive.
package chip8

import (
	"io"
	"time"
	"unsafe"

	"chip86/pkg/errors"
)

// Constants for the CHIP-8 machine layout
const (
	MemSize      = 4096
	PCStart      = 0x200
	NumRegs      = 16
	FlagReg      = 15
	OpcodeSize   = 2
	StackDepth   = 16
	NumKeys      = 16
	ScreenWidth  = 64
	ScreenHeight = 32
	PixelOn      = 1
	PixelOff     = 0
)

// Font sprites copied to the start of guest memory on reset,
// five bytes per hex digit 0-F
var font = [80]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// State is the complete guest machine.
//
// SP is kept as a byte offset from the struct base to the next free stack
// slot rather than a raw pointer, so the generated 32-bit arithmetic on it
// stays valid on a 64-bit host. One slot is four bytes: a call stores the
// return address at [base+SP] and adds 4, a return subtracts 4 first.
type State struct {
	Mem        [MemSize]byte
	V          [NumRegs]byte
	Keys       [NumKeys]byte
	Screen     [ScreenHeight][ScreenWidth]byte
	Stack      [StackDepth]uint32
	SP         uint32
	I          uint32
	SeedRNG    uint32
	NewFrame   uint32
	DelayTimer uint8
	SoundTimer uint8
	PC         uint16
}

// New allocates a guest machine in its reset state. The returned State must
// be the one live copy for the lifetime of the process; the translator bakes
// its address into generated code.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset restores power-on state: font at the memory origin, PC at 0x200,
// empty call stack, RNG seeded from the wall clock.
func (s *State) Reset() {
	*s = State{}
	copy(s.Mem[:], font[:])
	s.PC = PCStart
	s.SP = uint32(unsafe.Offsetof(s.Stack))
	s.SeedRNG = uint32(time.Now().Unix())
}

// LoadROM resets the machine and reads a ROM image into memory at 0x200.
func (s *State) LoadROM(r io.Reader) error {
	s.Reset()

	n, err := io.ReadFull(r, s.Mem[PCStart:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.WrapEmuError(err, "reading ROM")
	}
	if err == nil {
		// The reader filled all of memory; anything left over does not fit.
		var probe [1]byte
		if m, _ := r.Read(probe[:]); m > 0 {
			return errors.EmuErrorf("ROM larger than %d bytes", MemSize-PCStart)
		}
	}
	if n == 0 {
		return errors.EmuErrorf("empty ROM")
	}
	return nil
}

// Opcode fetches the big-endian instruction at the current PC.
func (s *State) Opcode() uint16 {
	return uint16(s.Mem[s.PC])<<8 | uint16(s.Mem[s.PC+1])
}

// TickTimers decrements the delay and sound timers. Called by the frontend
// at 60 Hz; translated code never touches the timers' countdown.
func (s *State) TickTimers() {
	if s.DelayTimer > 0 {
		s.DelayTimer--
	}
	if s.SoundTimer > 0 {
		s.SoundTimer--
	}
}

// CallDepth reports how many return addresses are on the call stack.
func (s *State) CallDepth() int {
	return int(s.SP-uint32(unsafe.Offsetof(s.Stack))) / 4
}
