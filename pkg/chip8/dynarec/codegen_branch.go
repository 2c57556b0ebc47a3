//go:build linux && amd64

package dynarec

// Control flow: jumps, calls, skips, key tests and the key wait. Every
// terminator ends its block with the forced-return sequence; skips emit a
// comparison and a forward jump to the label placed at the post-shadow
// instruction.

// decode00EE: return from subroutine
func (t *Translator) decode00EE(node *opNode) {
	node.generate = t.generate00EE
	node.inCondition = t.condition
	t.readyToTranslate = !t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generate00EE pops the return address: SP -= 4, next PC = stack slot at
// SP. The temp register is borrowed around the exit when the block never
// dirtied it.
func (t *Translator) generate00EE(node *opNode) {
	if !node.inCondition {
		t.tracker.SaveRegisters()
	}

	pop := false
	if !t.tracker.IsDirty32(RegTmp) {
		pop = true
		t.asm.Push(RegTmp)
	}

	t.asm.MovRegMem32(RegTmp, RegBase, t.off.sp)
	t.asm.SubRegImm32(RegTmp, 4)
	t.asm.MovMemReg32(RegBase, t.off.sp, RegTmp)
	t.asm.MovRegMemIdx32(RegRet, RegBase, RegTmp, 0)

	if pop {
		t.asm.Pop(RegTmp)
	}

	t.tracker.RestoreDirty()
	t.asm.Ret()
}

// decode1NNN: jump to NNN
func (t *Translator) decode1NNN(node *opNode) {
	node.n = uint32(node.opcode & 0x0FFF)

	node.generate = t.generate1NNN
	node.inCondition = t.condition
	t.readyToTranslate = !t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate1NNN(node *opNode) {
	if !node.inCondition {
		t.tracker.SaveRegisters()
	}
	t.tracker.RestoreDirty()

	t.asm.MovRegImm32(RegRet, node.n)
	t.asm.Ret()
}

// decode2NNN: call subroutine at NNN
func (t *Translator) decode2NNN(node *opNode) {
	node.n = uint32(node.opcode & 0x0FFF)

	node.generate = t.generate2NNN
	node.inCondition = t.condition
	t.readyToTranslate = !t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generate2NNN pushes the return address: stack slot at SP = addr+2,
// SP += 4, next PC = NNN.
func (t *Translator) generate2NNN(node *opNode) {
	if !node.inCondition {
		t.tracker.SaveRegisters()
	}

	pop := false
	if !t.tracker.IsDirty32(RegTmp) {
		pop = true
		t.asm.Push(RegTmp)
	}

	t.asm.MovRegMem32(RegTmp, RegBase, t.off.sp)
	t.asm.MovMemIdxImm32(RegBase, RegTmp, 0, uint32(node.addr)+chipOpcodeSize)
	t.asm.AddRegImm32(RegTmp, 4)
	t.asm.MovMemReg32(RegBase, t.off.sp, RegTmp)

	if pop {
		t.asm.Pop(RegTmp)
	}

	t.tracker.RestoreDirty()
	t.asm.MovRegImm32(RegRet, node.n)
	t.asm.Ret()
}

// decode3XNN: skip next instruction if VX == NN
func (t *Translator) decode3XNN(node *opNode) {
	node.x = argX(node.opcode)
	node.y = int(node.opcode & 0x00FF)

	t.setGenerate(node, t.generate3XNN)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate3XNN(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()

	r := t.tracker.AllocByte(node.x, true)
	t.tracker.SaveRegisters()

	if node.y == 0 {
		t.asm.TestRegReg8(r, r)
	} else {
		t.asm.CmpRegImm8(r, byte(node.y))
	}
	t.asm.Jz(t.labelCondBranchDest)
}

// decode4XNN: skip next instruction if VX != NN
func (t *Translator) decode4XNN(node *opNode) {
	node.x = argX(node.opcode)
	node.y = int(node.opcode & 0x00FF)

	t.setGenerate(node, t.generate4XNN)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate4XNN(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()

	r := t.tracker.AllocByte(node.x, true)
	t.tracker.SaveRegisters()

	if node.y == 0 {
		t.asm.TestRegReg8(r, r)
	} else {
		t.asm.CmpRegImm8(r, byte(node.y))
	}
	t.asm.Jnz(t.labelCondBranchDest)
}

// decode5XY0: skip next instruction if VX == VY
func (t *Translator) decode5XY0(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate5XY0)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate5XY0(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()

	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)
	t.tracker.SaveRegisters()

	t.asm.CmpRegReg8(r1, r2)
	t.asm.Jz(t.labelCondBranchDest)
}

// decode9XY0: skip next instruction if VX != VY
func (t *Translator) decode9XY0(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate9XY0)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate9XY0(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()

	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)
	t.tracker.SaveRegisters()

	t.asm.CmpRegReg8(r1, r2)
	t.asm.Jnz(t.labelCondBranchDest)
}

// decodeBNNN: jump to V0 + NNN
func (t *Translator) decodeBNNN(node *opNode) {
	node.n = uint32(node.opcode & 0x0FFF)

	node.generate = t.generateBNNN
	node.inCondition = t.condition
	t.readyToTranslate = !t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateBNNN(node *opNode) {
	if node.inCondition {
		if t.tracker.IsAllocatedGuest(0) {
			r := t.tracker.AllocByte(0, true)
			if r != AL {
				t.asm.MovRegReg8(AL, r)
			}
		} else {
			t.asm.MovRegMem8(AL, RegBase, t.off.v)
		}
	} else {
		t.tracker.SaveRegisters()
		t.tracker.AllocByteInto(AL, 0, true)
	}

	t.tracker.RestoreDirty()
	t.asm.MovzxRegReg8(RegRet, AL)
	t.asm.AddRegImm32(RegRet, node.n)
	t.asm.Ret()
}

// decodeEX9E: skip next instruction if the key in VX is pressed
func (t *Translator) decodeEX9E(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateEX9E)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateEX9E(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()
	t.generateKeyTest(node)
	t.asm.Jnz(t.labelCondBranchDest)
}

// decodeEXA1: skip next instruction if the key in VX is not pressed
func (t *Translator) decodeEXA1(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generateEXA1)
	node.inCondition = t.condition
	t.beginSkip()
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateEXA1(node *opNode) {
	t.labelCondBranchDest = t.asm.NewLabel()
	t.generateKeyTest(node)
	t.asm.Jz(t.labelCondBranchDest)
}

// generateKeyTest leaves ZF set iff keys[VX] is zero. The keypad byte is
// read through a spare byte register when one exists next to VX's slot,
// with a memory compare as fallback.
func (t *Translator) generateKeyTest(node *opNode) {
	r8 := t.tracker.AllocByte(node.x, true)
	r32 := t.tracker.TempReg32()

	t.tracker.Dirty32(r32)
	t.tracker.SaveRegisters()

	low := r8 & 0x3
	freeTmp := false
	var tmp8 Reg

	if !t.tracker.IsAllocatedHost(low + 4) {
		freeTmp = true
		tmp8 = low + 4
	} else if !t.tracker.IsAllocatedHost(low) {
		freeTmp = true
		tmp8 = low
	}

	t.asm.MovzxRegReg8(r32, r8)
	t.asm.AddRegImm32(r32, uint32(t.off.keys))

	if freeTmp {
		t.asm.MovRegMemIdx8(tmp8, RegBase, r32, 0)
		t.asm.TestRegReg8(tmp8, tmp8)
	} else {
		t.asm.CmpMemIdxImm8(RegBase, r32, 0, 0)
	}
}

// decodeFX0A: wait for a key press, store the key in VX. Always begins its
// own block: the block spins by returning its own address until a key is
// down.
func (t *Translator) decodeFX0A(node *opNode) {
	node.x = argX(node.opcode)
	node.leader = !t.condition

	t.readyToTranslate = !t.condition
	t.setGenerate(node, t.generateFX0A)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generateFX0A(node *opNode) {
	r32 := t.tracker.TempReg32()

	t.tracker.Dirty32(r32)
	t.tracker.Dirty32(ECX)

	pressed := t.asm.NewLabel()

	t.asm.MovRegImm32(r32, uint32(t.off.keys))
	t.asm.XorRegReg8(CL, CL)

	for i := 0; i < chipNumKeys; i++ {
		t.asm.MovRegMemIdx8(CH, RegBase, r32, int32(i))
		t.asm.TestRegReg8(CH, CH)
		t.asm.Jnz(pressed)
		t.asm.IncReg8(CL)
	}

	// No key down: spin by re-entering this block.
	t.tracker.RestoreDirty()
	t.asm.MovRegImm32(RegRet, uint32(node.addr))
	t.asm.Ret()

	t.asm.PlaceLabel(pressed)
	t.asm.MovMemReg8(RegBase, t.off.v+int32(node.x), CL)

	t.tracker.RestoreDirty()
	t.asm.MovRegImm32(RegRet, uint32(node.addr)+chipOpcodeSize)
	t.asm.Ret()
}
