//go:build linux && amd64

package dynarec

// Memory and timer traffic: the I register, timers, font lookup, BCD and
// the bulk register transfers. Guest memory is addressed as
// [state base + mem offset + I].

// decodeANNN: I = NNN
func (t *Translator) decodeANNN(node *opNode) {
	node.n = uint32(node.opcode & 0x0FFF)

	t.setGenerate(node, t.generateANNN)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateANNN(node *opNode) {
	r := t.tracker.AllocIndex(false)

	t.asm.MovRegImm32(r, node.n)

	t.tracker.MarkIndexModified()
}

// decodeFX07: VX = delay timer
func (t *Translator) decodeFX07(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX07)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX07(node *opNode) {
	r := t.tracker.AllocByte(node.x, false)

	t.asm.MovRegMem8(r, RegBase, t.off.delay)

	t.tracker.MarkModified(r)
}

// decodeFX15: delay timer = VX
func (t *Translator) decodeFX15(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX15)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX15(node *opNode) {
	r := t.tracker.AllocByte(node.x, true)

	t.asm.MovMemReg8(RegBase, t.off.delay, r)
}

// decodeFX18: sound timer = VX
func (t *Translator) decodeFX18(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX18)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX18(node *opNode) {
	r := t.tracker.AllocByte(node.x, true)

	t.asm.MovMemReg8(RegBase, t.off.sound, r)
}

// decodeFX1E: I += VX
func (t *Translator) decodeFX1E(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX1E)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX1E(node *opNode) {
	r1 := t.tracker.AllocIndex(true)
	r2 := t.tracker.AllocByte(node.x, true)
	r32 := t.tracker.TempReg32()

	t.tracker.Dirty32(r32)

	t.asm.MovzxRegReg8(r32, r2)
	t.asm.AddRegReg32(r1, r32)

	t.tracker.MarkIndexModified()
}

// decodeFX29: I = address of the font glyph for VX (five bytes per glyph
// at the memory origin, so I = VX * 5)
func (t *Translator) decodeFX29(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX29)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX29(node *opNode) {
	r1 := t.tracker.AllocIndex(false)
	r2 := t.tracker.AllocByte(node.x, true)
	r32 := t.tracker.TempReg32()

	t.tracker.Dirty32(r32)

	t.asm.MovzxRegReg8(r1, r2)
	t.asm.MovRegReg32(r32, r1)
	t.asm.ShlRegImm32(r1, 2)
	t.asm.AddRegReg32(r1, r32)

	t.tracker.MarkIndexModified()
}

// decodeFX33: write the BCD digits of VX to mem[I..I+2], I unchanged
func (t *Translator) decodeFX33(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX33)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generateFX33 divides in AX, so VX is forced into AL and the whole of EAX
// is parked in the temp register around the division chain.
func (t *Translator) generateFX33(node *opNode) {
	t.tracker.AllocByteInto(AL, node.x, true)
	r2 := t.tracker.AllocIndex(true)

	freeTmp := false
	var r3 Reg
	for r := NumRegs8 - 1; r >= 1; r-- {
		if !t.tracker.IsAllocatedHost(Reg(r)) && Reg(r) != AH {
			freeTmp = true
			r3 = Reg(r)
			break
		}
	}

	t.tracker.Dirty32(RegTmp)

	if !freeTmp {
		t.asm.Push(ECX)
		r3 = CL
	} else {
		t.tracker.Dirty8(r3)
	}

	t.asm.MovRegReg32(RegTmp, EAX)
	t.asm.AddRegImm32(r2, uint32(t.off.mem))
	t.asm.XorRegReg8(AH, AH)
	t.asm.MovRegImm8(r3, 100)
	t.asm.DivReg8(r3)
	t.asm.MovMemIdxReg8(RegBase, r2, 0, AL)
	t.asm.IncReg32(r2)
	t.asm.MovRegReg8(AL, AH)
	t.asm.XorRegReg8(AH, AH)
	t.asm.MovRegImm8(r3, 10)
	t.asm.DivReg8(r3)
	t.asm.MovMemIdxReg8(RegBase, r2, 0, AL)
	t.asm.IncReg32(r2)
	t.asm.MovMemIdxReg8(RegBase, r2, 0, AH)
	t.asm.MovRegReg32(EAX, RegTmp)
	t.asm.SubRegImm32(r2, uint32(t.off.mem)+2)

	if !freeTmp {
		t.asm.Pop(ECX)
	}
}

// decodeFX55: store V0..VX to mem[I..], I unchanged after
func (t *Translator) decodeFX55(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX55)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX55(node *opNode) {
	ra := t.tracker.AllocIndex(true)

	t.asm.AddRegImm32(ra, uint32(t.off.mem))

	for i := 0; i <= node.x; i++ {
		if t.tracker.IsAllocatedGuest(i) || t.tracker.FreeByteRegs() > 0 {
			r := t.tracker.AllocByte(i, true)
			t.asm.MovMemIdxReg8(RegBase, ra, 0, r)
		} else {
			// Register file full of other guests: bounce through DL.
			t.asm.Push(EDX)
			t.asm.MovRegMem8(DL, RegBase, t.off.v+int32(i))
			t.asm.MovMemIdxReg8(RegBase, ra, 0, DL)
			t.asm.Pop(EDX)
		}

		t.asm.IncReg32(ra)
	}

	t.asm.SubRegImm32(ra, uint32(node.x)+uint32(t.off.mem)+1)
}

// decodeFX65: load V0..VX from mem[I..], I unchanged after
func (t *Translator) decodeFX65(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateFX65)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX65(node *opNode) {
	ra := t.tracker.AllocIndex(true)

	t.asm.AddRegImm32(ra, uint32(t.off.mem))

	for i := 0; i <= node.x; i++ {
		if t.tracker.IsAllocatedGuest(i) || t.tracker.FreeByteRegs() > 0 {
			r := t.tracker.AllocByte(i, false)
			t.asm.MovRegMemIdx8(r, RegBase, ra, 0)
			t.tracker.MarkModified(r)
		} else {
			t.asm.Push(EDX)
			t.asm.MovRegMemIdx8(DL, RegBase, ra, 0)
			t.asm.MovMemReg8(RegBase, t.off.v+int32(i), DL)
			t.asm.Pop(EDX)
		}

		t.asm.IncReg32(ra)
	}

	t.asm.SubRegImm32(ra, uint32(node.x)+uint32(t.off.mem)+1)
}
