//go:build linux && amd64

package dynarec

import (
	"unsafe"

	"chip86/pkg/chip8"
)

const (
	chipOpcodeSize = chip8.OpcodeSize
	chipFlagReg    = chip8.FlagReg
	chipNumKeys    = chip8.NumKeys

	chipScreenWidth  = chip8.ScreenWidth
	chipScreenHeight = chip8.ScreenHeight
	chipPixelOn      = chip8.PixelOn
	chipPixelOff     = chip8.PixelOff

	newFrameFlag = 1

	// A skip's shadow: the skipped instruction plus the one that becomes
	// the branch destination.
	toCondBranch = 2

	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
)

// opNode is one decoded guest instruction, alive for the duration of a
// translation batch.
type opNode struct {
	addr   uint16
	opcode uint16
	x      int
	y      int
	n      uint32

	inCondition      bool
	isCondBranchDest bool
	leader           bool
	ignore           bool

	generate func(*opNode)
}

// stateOffsets are the displacements of the guest state fields from the
// state base register.
type stateOffsets struct {
	v        int32
	i        int32
	delay    int32
	sound    int32
	keys     int32
	mem      int32
	screen   int32
	newFrame int32
	seed     int32
	sp       int32
}

// Translator turns a stream of guest opcodes into native code blocks. It
// collects decoded instructions until a batch terminates (an unconditional
// branch, or the instruction after a skip's shadow), then drives the
// allocator and assembler to produce one or more CodeBlocks.
type Translator struct {
	asm     *Assembler
	tracker *Tracker
	mem     *ExecMem

	nodes  []*opNode
	blocks []*CodeBlock

	labelCondBranchDest Label

	readyToTranslate bool
	condition        bool
	countdown        int
	nextOpAddr       uint16

	base uintptr
	off  stateOffsets
	err  error
}

// NewTranslator creates a translator for one guest machine. The state's
// address is baked into every block produced, so the state must stay at
// this address while any block lives.
func NewTranslator(st *chip8.State, mem *ExecMem) *Translator {
	off := stateOffsets{
		v:        int32(unsafe.Offsetof(st.V)),
		i:        int32(unsafe.Offsetof(st.I)),
		delay:    int32(unsafe.Offsetof(st.DelayTimer)),
		sound:    int32(unsafe.Offsetof(st.SoundTimer)),
		keys:     int32(unsafe.Offsetof(st.Keys)),
		mem:      int32(unsafe.Offsetof(st.Mem)),
		screen:   int32(unsafe.Offsetof(st.Screen)),
		newFrame: int32(unsafe.Offsetof(st.NewFrame)),
		seed:     int32(unsafe.Offsetof(st.SeedRNG)),
		sp:       int32(unsafe.Offsetof(st.SP)),
	}

	asm := NewAssembler()
	t := &Translator{
		asm:     asm,
		tracker: NewTracker(asm, off.v, off.i),
		mem:     mem,
		base:    uintptr(unsafe.Pointer(st)),
		off:     off,
	}
	t.Reset()
	return t
}

// Reset discards any batch in progress and releases undelivered blocks.
func (t *Translator) Reset() {
	t.condition = false
	t.readyToTranslate = false
	t.countdown = 0

	t.asm.Reset()
	t.tracker.Reset()

	for _, b := range t.blocks {
		b.Release()
	}
	t.blocks = t.blocks[:0]
	t.nodes = t.nodes[:0]
}

// Err returns the first fatal translation error (out of code memory).
func (t *Translator) Err() error {
	return t.err
}

// Emit feeds one opcode at *pc into the current batch and advances *pc to
// the next fetch address. It returns false once a batch has been
// translated; the produced blocks are then drained with GetCodeBlock and
// *pc is left at the batch's start address so the dispatcher can re-enter
// through the cache.
func (t *Translator) Emit(opcode uint16, pc *uint16) bool {
	if t.readyToTranslate {
		*pc = t.nextOpAddr
		return false
	}

	node := &opNode{addr: *pc, opcode: opcode}
	t.decode(node)
	t.nodes = append(t.nodes, node)

	if t.condition && t.countdown == 0 {
		t.readyToTranslate = true
		node.isCondBranchDest = true
	} else if t.condition {
		t.countdown--
	}

	if t.readyToTranslate {
		t.nextOpAddr = t.nodes[0].addr
		*pc = t.nextOpAddr
		if err := t.translate(); err != nil && t.err == nil {
			t.err = err
		}
	} else {
		*pc = t.nextOpAddr
	}

	return !t.readyToTranslate
}

// GetCodeBlock drains the next produced block. When the last block is
// taken the translator resets for the next batch.
func (t *Translator) GetCodeBlock(block **CodeBlock) bool {
	if len(t.blocks) == 0 {
		return false
	}

	*block = t.blocks[0]
	t.blocks = t.blocks[1:]

	if len(t.blocks) == 0 {
		t.Reset()
	}
	return true
}

// translate walks the collected IR front to back and produces machine
// code. A node marked leader closes the current block with a forced return
// to the leader's address and starts a fresh one.
func (t *Translator) translate() error {
	address := t.nodes[0].addr
	opcount := 0
	t.beginBlock()

	for i, node := range t.nodes {
		if !node.ignore {
			if node.isCondBranchDest {
				t.asm.PlaceLabel(t.labelCondBranchDest)
			}

			if node.leader && i > 0 {
				t.generateReturn(node)
				if err := t.pushBlock(address, opcount); err != nil {
					return err
				}
				address = node.addr
				opcount = 0
				t.beginBlock()
			}

			node.generate(node)
		}
		opcount++
	}

	t.nodes = t.nodes[:0]
	return t.pushBlock(address, opcount)
}

// beginBlock starts the code of a new block: push the state base register
// through the dirty log and load it with the guest state address.
func (t *Translator) beginBlock() {
	t.tracker.Dirty32(RegBase)
	t.asm.MovRegImm64(RegBase, uint64(t.base))
}

// pushBlock finalizes the assembler's code into a CodeBlock.
func (t *Translator) pushBlock(addr uint16, opcount int) error {
	region, err := t.asm.Finalize(t.mem)
	if err != nil {
		return err
	}

	t.blocks = append(t.blocks, NewCodeBlock(region, addr, opcount))
	t.tracker.Reset()
	return nil
}

// setGenerate installs the node's code generator. Inside a skip shadow the
// instruction's effect belongs to the next block; its position becomes a
// forced return to its own address instead.
func (t *Translator) setGenerate(node *opNode, fn func(*opNode)) {
	if !t.condition {
		node.generate = fn
	} else {
		node.generate = t.generateReturn
	}
}

// generateReturn emits the block exit sequence: commit guest registers
// (unless leaving from inside a skip shadow, whose register state is
// discarded), restore the caller's registers and return the node's address
// as the next PC.
func (t *Translator) generateReturn(node *opNode) {
	if !node.inCondition {
		t.tracker.SaveRegisters()
	}
	t.tracker.RestoreDirty()

	t.asm.MovRegImm32(RegRet, uint32(node.addr))
	t.asm.Ret()
}

// unknownOpcode marks a node to contribute no code. Translation continues
// at the following instruction.
func (t *Translator) unknownOpcode(node *opNode) {
	node.ignore = true
	node.generate = nil
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// decode fills in the node's arguments and code generator, and advances
// the batch state machine.
func (t *Translator) decode(node *opNode) {
	switch node.opcode & 0xF000 {
	case 0x0000:
		switch node.opcode & 0xF {
		case 0x0:
			t.decode00E0(node)
		case 0xE:
			t.decode00EE(node)
		default:
			t.unknownOpcode(node)
		}
	case 0x1000:
		t.decode1NNN(node)
	case 0x2000:
		t.decode2NNN(node)
	case 0x3000:
		t.decode3XNN(node)
	case 0x4000:
		t.decode4XNN(node)
	case 0x5000:
		t.decode5XY0(node)
	case 0x6000:
		t.decode6XNN(node)
	case 0x7000:
		t.decode7XNN(node)
	case 0x8000:
		switch node.opcode & 0xF {
		case 0x0:
			t.decode8XY0(node)
		case 0x1:
			t.decode8XY1(node)
		case 0x2:
			t.decode8XY2(node)
		case 0x3:
			t.decode8XY3(node)
		case 0x4:
			t.decode8XY4(node)
		case 0x5:
			t.decode8XY5(node)
		case 0x6:
			t.decode8XY6(node)
		case 0x7:
			t.decode8XY7(node)
		case 0xE:
			t.decode8XYE(node)
		default:
			t.unknownOpcode(node)
		}
	case 0x9000:
		t.decode9XY0(node)
	case 0xA000:
		t.decodeANNN(node)
	case 0xB000:
		t.decodeBNNN(node)
	case 0xC000:
		t.decodeCXNN(node)
	case 0xD000:
		t.decodeDXYN(node)
	case 0xE000:
		switch node.opcode & 0xF {
		case 0x1:
			t.decodeEXA1(node)
		case 0xE:
			t.decodeEX9E(node)
		default:
			t.unknownOpcode(node)
		}
	case 0xF000:
		switch node.opcode & 0xFF {
		case 0x07:
			t.decodeFX07(node)
		case 0x0A:
			t.decodeFX0A(node)
		case 0x15:
			t.decodeFX15(node)
		case 0x18:
			t.decodeFX18(node)
		case 0x1E:
			t.decodeFX1E(node)
		case 0x29:
			t.decodeFX29(node)
		case 0x33:
			t.decodeFX33(node)
		case 0x55:
			t.decodeFX55(node)
		case 0x65:
			t.decodeFX65(node)
		default:
			t.unknownOpcode(node)
		}
	default:
		t.unknownOpcode(node)
	}
}

// argX extracts the X register field.
func argX(opcode uint16) int {
	return int(opcode&0x0F00) >> 8
}

// argY extracts the Y register field.
func argY(opcode uint16) int {
	return int(opcode&0x00F0) >> 4
}

// beginSkip enters a skip shadow unless already in one.
func (t *Translator) beginSkip() {
	if !t.condition {
		t.condition = true
		t.countdown = toCondBranch
	}
}
