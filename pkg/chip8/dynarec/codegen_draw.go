//go:build linux && amd64

package dynarec

// Framebuffer traffic: screen clear and the sprite XOR draw. Both raise
// the new-frame flag for the frontend.

// decode00E0: clear the screen
func (t *Translator) decode00E0(node *opNode) {
	t.setGenerate(node, t.generate00E0)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generate00E0 zeroes the framebuffer one row per loop iteration, sixteen
// dword stores each.
func (t *Translator) generate00E0(node *opNode) {
	loop := t.asm.NewLabel()
	r := t.tracker.TempReg32()

	t.tracker.Dirty32(r)

	t.asm.MovRegImm32(r, uint32(t.off.screen))

	t.asm.PlaceLabel(loop)
	for d := 0; d < chipScreenWidth; d += 4 {
		t.asm.MovMemIdxImm32(RegBase, r, int32(d), chipPixelOff)
	}
	t.asm.AddRegImm32(r, chipScreenWidth)
	t.asm.CmpRegImm32(r, uint32(t.off.screen)+chipScreenHeight*chipScreenWidth)
	t.asm.Jnz(loop)

	t.asm.MovMemImm32(RegBase, t.off.newFrame, newFrameFlag)
}

// decodeDXYN: draw an 8xN sprite from mem[I] at (VX, VY), VF = collision
func (t *Translator) decodeDXYN(node *opNode) {
	node.x = argX(node.opcode)
	node.y = argY(node.opcode)
	node.n = uint32(node.opcode & 0x000F)

	t.setGenerate(node, t.generateDXYN)
	node.inCondition = t.condition
	t.nextOpAddr = node.addr + chipOpcodeSize
}

// generateDXYN pins the flag, coordinates and I into fixed registers and
// unrolls the eight pixels of each sprite row. Coordinates wrap modulo the
// screen size per pixel; a set pixel that clears a set screen pixel raises
// the collision flag. With N=0 the row body runs once.
func (t *Translator) generateDXYN(node *opNode) {
	rf := t.tracker.AllocByteInto(AL, chipFlagReg, false)
	rx := t.tracker.AllocByteInto(AH, node.x, true)
	ry := t.tracker.AllocByteInto(BL, node.y, true)
	ra := t.tracker.AllocIndex(true)

	const (
		rtmpX    = ECX    // pixel x scratch
		rtmpY    = RegTmp // pixel y scratch, then framebuffer offset
		rtmpCmp  = DL     // screen pixel under test
		rtmpCnt  = BH     // row counter
		rtmpBits = DH     // sprite row bits
	)

	t.tracker.Dirty32(rtmpY)
	t.tracker.Dirty32(rtmpX)
	t.tracker.Dirty8(rtmpBits)
	t.tracker.Dirty8(rtmpCmp)

	if node.n != 0 {
		t.tracker.Dirty8(rtmpCnt)
	}

	loop := t.asm.NewLabel()

	// Scratch halves of EDX/ECX/EBX may carry live guests; park them.
	saveDX := t.tracker.IsAllocatedHost(DL) || t.tracker.IsAllocatedHost(DH)
	saveCX := t.tracker.IsAllocatedHost(CL) || t.tracker.IsAllocatedHost(CH)
	saveBX := t.tracker.IsAllocatedHost(BH) && node.n != 0

	if saveDX {
		t.asm.Push(EDX)
	}
	if saveCX {
		t.asm.Push(ECX)
	}
	if saveBX {
		t.asm.Push(EBX)
	}

	t.asm.XorRegReg8(rf, rf)

	if node.n != 0 {
		t.asm.XorRegReg8(rtmpCnt, rtmpCnt)
		t.asm.PlaceLabel(loop)
		t.asm.MovzxRegReg8(rtmpY, rtmpCnt)
		t.asm.AddRegReg32(rtmpY, ra)
	} else {
		t.asm.MovRegReg32(rtmpY, ra)
	}

	t.asm.AddRegImm32(rtmpY, uint32(t.off.mem))
	t.asm.MovRegMemIdx8(rtmpBits, RegBase, rtmpY, 0)

	for i := 0; i < 8; i++ {
		zero := t.asm.NewLabel()
		one := t.asm.NewLabel()

		t.asm.MovzxRegReg8(rtmpY, ry)
		t.asm.MovzxRegReg8(rtmpX, rx)
		t.asm.AndRegImm32(rtmpY, chipScreenHeight-1)
		t.asm.AndRegImm32(rtmpX, chipScreenWidth-1)
		t.asm.ShlRegImm32(rtmpY, 6)
		t.asm.AddRegReg32(rtmpY, rtmpX)
		t.asm.AddRegImm32(rtmpY, uint32(t.off.screen))
		t.asm.ShlReg8(rtmpBits)
		t.asm.Jnc(zero)
		t.asm.MovRegMemIdx8(rtmpCmp, RegBase, rtmpY, 0)
		t.asm.TestRegReg8(rtmpCmp, rtmpCmp)
		t.asm.Jz(one)
		t.asm.OrRegImm8(rf, 1)
		t.asm.PlaceLabel(one)
		t.asm.XorMemIdxImm8(RegBase, rtmpY, 0, chipPixelOn)
		t.asm.PlaceLabel(zero)
		t.asm.IncReg8(rx)
	}

	t.asm.SubRegImm8(rx, 8)

	if node.n != 0 {
		t.asm.IncReg8(ry)
		t.asm.IncReg8(rtmpCnt)
		t.asm.CmpRegImm8(rtmpCnt, byte(node.n))
		t.asm.Jnz(loop)
		t.asm.SubRegReg8(ry, rtmpCnt)
	}

	t.asm.MovMemImm32(RegBase, t.off.newFrame, newFrameFlag)

	if saveBX {
		t.asm.Pop(EBX)
	}
	if saveCX {
		t.asm.Pop(ECX)
	}
	if saveDX {
		t.asm.Pop(EDX)
	}

	t.tracker.MarkModified(rf)
}
