//go:build linux && amd64

package dynarec

// Register-to-register arithmetic and logic: 6XNN, 7XNN, the 8XY_ family
// and the CXNN random generator.

// decode6XNN: VX = NN
func (t *Translator) decode6XNN(node *opNode) {
	node.x = argX(node.opcode)
	node.n = uint32(node.opcode & 0x00FF)

	t.setGenerate(node, t.generate6XNN)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate6XNN(node *opNode) {
	r := t.tracker.AllocByte(node.x, false)

	t.asm.MovRegImm8(r, byte(node.n))

	t.tracker.MarkModified(r)
}

// decode7XNN: VX += NN, VF untouched
func (t *Translator) decode7XNN(node *opNode) {
	node.x = argX(node.opcode)
	node.n = uint32(node.opcode & 0x00FF)

	t.setGenerate(node, t.generate7XNN)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate7XNN(node *opNode) {
	r := t.tracker.AllocByte(node.x, true)

	t.asm.AddRegImm8(r, byte(node.n))

	t.tracker.MarkModified(r)
}

// decode8XY0: VX = VY
func (t *Translator) decode8XY0(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY0)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY0(node *opNode) {
	r1 := t.tracker.AllocByte(node.x, false)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.MovRegReg8(r1, r2)

	t.tracker.MarkModified(r1)
}

// decode8XY1: VX |= VY
func (t *Translator) decode8XY1(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY1)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY1(node *opNode) {
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.OrRegReg8(r1, r2)

	t.tracker.MarkModified(r1)
}

// decode8XY2: VX &= VY
func (t *Translator) decode8XY2(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY2)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY2(node *opNode) {
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.AndRegReg8(r1, r2)

	t.tracker.MarkModified(r1)
}

// decode8XY3: VX ^= VY
func (t *Translator) decode8XY3(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY3)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY3(node *opNode) {
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.XorRegReg8(r1, r2)

	t.tracker.MarkModified(r1)
}

// decode8XY4: VX += VY, VF = carry
func (t *Translator) decode8XY4(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY4)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY4(node *opNode) {
	rf := t.tracker.AllocByte(chipFlagReg, false)
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.AddRegReg8(r1, r2)
	t.asm.Setc(rf)

	t.tracker.MarkModified(r1)
	t.tracker.MarkModified(rf)
}

// decode8XY5: VX -= VY, VF = !borrow
func (t *Translator) decode8XY5(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY5)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY5(node *opNode) {
	rf := t.tracker.AllocByte(chipFlagReg, false)
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.SubRegReg8(r1, r2)
	t.asm.Setnc(rf)

	t.tracker.MarkModified(r1)
	t.tracker.MarkModified(rf)
}

// decode8XY6: VF = lsb(VX), VX >>= 1
func (t *Translator) decode8XY6(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generate8XY6)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY6(node *opNode) {
	rf := t.tracker.AllocByte(chipFlagReg, false)
	r1 := t.tracker.AllocByte(node.x, true)

	t.asm.ShrReg8(r1)
	t.asm.Setc(rf)

	t.tracker.MarkModified(r1)
	t.tracker.MarkModified(rf)
}

// decode8XY7: VX = VY - VX, VF = !borrow
func (t *Translator) decode8XY7(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)

	t.setGenerate(node, t.generate8XY7)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XY7(node *opNode) {
	rf := t.tracker.AllocByte(chipFlagReg, false)
	r1 := t.tracker.AllocByte(node.x, true)
	r2 := t.tracker.AllocByte(node.y, true)

	t.asm.MovRegReg8(rf, r2)
	t.asm.SubRegReg8(rf, r1)
	t.asm.MovRegReg8(r1, rf)
	t.asm.Setnc(rf)

	t.tracker.MarkModified(r1)
	t.tracker.MarkModified(rf)
}

// decode8XYE: VF = msb(VX), VX <<= 1
func (t *Translator) decode8XYE(node *opNode) {
	node.x = argX(node.opcode)

	t.setGenerate(node, t.generate8XYE)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

func (t *Translator) generate8XYE(node *opNode) {
	rf := t.tracker.AllocByte(chipFlagReg, false)
	r1 := t.tracker.AllocByte(node.x, true)

	t.asm.ShlReg8(r1)
	t.asm.Setc(rf)

	t.tracker.MarkModified(r1)
	t.tracker.MarkModified(rf)
}

// decodeCXNN: VX = (rand >> 24) & NN, advancing the LCG seed
func (t *Translator) decodeCXNN(node *opNode) {
	node.x = argX(node.opcode)
	node.n = uint32(node.opcode & 0x00FF)

	t.setGenerate(node, t.generateCXNN)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generateCXNN multiplies the seed with the widening MUL, which claims
// both EAX and EDX, so VX is forced into AL and anything live in AH, DL or
// DH is parked first.
func (t *Translator) generateCXNN(node *opNode) {
	t.tracker.AllocByteInto(AL, node.x, false)

	t.tracker.Dirty32(EDX)

	if t.tracker.IsAllocatedHost(AH) {
		for i := 1; i < NumRegs8; i++ {
			if !t.tracker.IsAllocatedHost(Reg(i)) {
				t.tracker.Realloc(AH, Reg(i))
				break
			}
		}
	}

	if t.tracker.IsAllocatedHost(AH) {
		t.tracker.Dirty32(RegTmp)
		t.asm.MovRegReg32(RegTmp, EAX)
	}

	if t.tracker.IsAllocatedHost(DL) || t.tracker.IsAllocatedHost(DH) {
		if t.tracker.IsAllocatedHost(AH) {
			t.asm.Push(EDX)
		} else {
			t.tracker.Dirty32(RegTmp)
			t.asm.MovRegReg32(RegTmp, EDX)
		}
	}

	t.asm.MovRegImm32(EAX, lcgMultiplier)
	t.asm.MulMem32(RegBase, t.off.seed)
	t.asm.AddRegImm32(EAX, lcgIncrement)
	t.asm.MovMemReg32(RegBase, t.off.seed, EAX)
	t.asm.ShrRegImm32(EAX, 24)
	t.asm.AndRegImm8(AL, byte(node.n))

	if t.tracker.IsAllocatedHost(AH) {
		t.asm.MovRegReg8(DL, AL)
		t.asm.MovRegReg32(EAX, RegTmp)
		t.asm.MovRegReg8(AL, DL)
	}

	if t.tracker.IsAllocatedHost(DL) || t.tracker.IsAllocatedHost(DH) {
		if t.tracker.IsAllocatedHost(AH) {
			t.asm.Pop(EDX)
		} else {
			t.asm.MovRegReg32(EDX, RegTmp)
		}
	}

	t.tracker.MarkModified(AL)
}
