//go:build linux && amd64

package dynarec

// Fixed register roles shared by the allocator and the translator.
const (
	// RegBase holds the guest state base pointer inside generated code.
	// EBP never collides with the eight allocatable byte registers.
	RegBase = EBP
	// RegIndex holds the guest I register (a 32-bit value, used as an
	// offset from RegBase).
	RegIndex = ESI
	// RegTmp is the scratch register of last resort.
	RegTmp = EDI
	// RegRet carries the next guest PC out of a block. Never preserved.
	RegRet = EAX
)

// noGuest marks a slot that holds no guest register.
const noGuest = -1

type regInfo struct {
	guest    int
	age      int
	modified bool
	free     bool
}

// Tracker maps guest registers onto the host byte registers with age-based
// eviction and lazy write-back, and drives the assembler to produce the
// spill and fill moves. It also keeps the ordered push log of host 32-bit
// registers the generated code has dirtied, so a block can restore its
// caller's registers before returning.
type Tracker struct {
	asm *Assembler

	reg8  [NumRegs8]regInfo
	index regInfo // the I register, pinned to RegIndex
	free8 int

	dirty      [NumRegs8]bool
	dirtyOrder [NumRegs8]Reg
	dirtyCount int

	// Guest state offsets the emitted moves address through RegBase.
	vOff int32
	iOff int32
}

// NewTracker creates a tracker bound to an assembler. vOff and iOff are the
// offsets of the V register file and the I register within the guest state.
func NewTracker(asm *Assembler, vOff, iOff int32) *Tracker {
	t := &Tracker{asm: asm, vOff: vOff, iOff: iOff}
	t.Reset()
	return t
}

// Reset frees every slot and clears the dirty log.
func (t *Tracker) Reset() {
	for i := range t.reg8 {
		t.resetReg8(Reg(i))
	}
	t.index.free = true
	t.index.modified = false
	t.free8 = NumRegs8

	for i := range t.dirty {
		t.dirty[i] = false
	}
	t.dirtyCount = 0
}

func (t *Tracker) resetReg8(r Reg) {
	t.reg8[r] = regInfo{guest: noGuest, free: true}
}

// saveReg8 writes an allocated byte register back to guest memory if it is
// modified.
func (t *Tracker) saveReg8(r Reg) {
	info := &t.reg8[r]
	if info.modified && !info.free {
		t.asm.MovMemReg8(RegBase, t.vOff+int32(info.guest), r)
		info.modified = false
	}
}

// saveIndex writes the I register back to guest memory if it is allocated
// and modified.
func (t *Tracker) saveIndex() {
	if t.index.modified && !t.index.free {
		t.asm.MovMemReg32(RegBase, t.iOff, RegIndex)
		t.index.modified = false
	}
}

// replaceReg8 moves an allocation from src into dst. The value is copied
// when loadValue is set; otherwise dst's content is left to be overwritten.
func (t *Tracker) replaceReg8(dst, src Reg, loadValue bool) {
	t.Dirty8(dst)

	if !t.reg8[dst].free {
		t.free8++
	}
	t.reg8[dst] = t.reg8[src]

	if loadValue {
		t.asm.MovRegReg8(dst, src)
	}

	t.resetReg8(src)
}

// swapReg8 exchanges two allocations.
func (t *Tracker) swapReg8(r1, r2 Reg, loadValue bool) {
	t.Dirty8(r1)
	t.Dirty8(r2)

	t.reg8[r1], t.reg8[r2] = t.reg8[r2], t.reg8[r1]

	if loadValue {
		t.asm.XchgRegReg8(r1, r2)
	} else {
		t.asm.MovRegReg8(r2, r1)
	}
}

// allocReg8 binds a guest register to a host slot, loading its value from
// guest memory when loadValue is set.
func (t *Tracker) allocReg8(r Reg, guest int, loadValue bool) {
	t.Dirty8(r)

	if t.reg8[r].free {
		t.free8--
	}

	t.resetReg8(r)
	t.reg8[r].free = false
	t.reg8[r].guest = guest

	if loadValue {
		t.asm.MovRegMem8(r, RegBase, t.vOff+int32(guest))
	}
}

// deallocReg8 frees a host slot, writing it back first if needed.
func (t *Tracker) deallocReg8(r Reg) {
	if !t.reg8[r].free {
		t.saveReg8(r)
		t.resetReg8(r)
		t.free8++
	}
}

// AllocByte maps a guest register to a host byte register and returns it.
// A live mapping is reused with its age reset; otherwise a free slot is
// taken, or the oldest slot is written back and evicted. Every scan ages
// all slots, giving approximate LRU without an ordered structure.
func (t *Tracker) AllocByte(guest int, loadValue bool) Reg {
	var (
		foundFree, foundLive        bool
		freeReg, liveReg, oldestReg Reg
		oldest                      = -1
	)

	// Scan BX, DX, CX, AX in that order, low half before high half. A free
	// slot seen later replaces one seen earlier, so an empty file fills
	// AH, AL, CH, CL, DH, DL, BH, BL in that order.
	for a := 3; a >= 0; a-- {
		for b := 0; b < 2; b++ {
			r := Reg(a + b*4)
			info := &t.reg8[r]
			info.age++

			switch {
			case info.guest == guest && !info.free:
				foundLive = true
				liveReg = r
			case info.free:
				foundFree = true
				freeReg = r
			case info.age > oldest:
				oldest = info.age
				oldestReg = r
			}
		}
	}

	switch {
	case foundLive:
		t.reg8[liveReg].age = 0
		return liveReg
	case foundFree:
		t.allocReg8(freeReg, guest, loadValue)
		return freeReg
	default:
		t.deallocReg8(oldestReg)
		t.allocReg8(oldestReg, guest, loadValue)
		return oldestReg
	}
}

// AllocByteInto forces a guest register into a specific host register:
// reusing it if it already holds the guest register, swapping or replacing
// if another slot does, evicting the current occupant otherwise.
func (t *Tracker) AllocByteInto(r Reg, guest int, loadValue bool) Reg {
	if t.reg8[r].guest == guest && !t.reg8[r].free {
		t.reg8[r].age = 0
		return r
	}

	for i := 0; i < NumRegs8; i++ {
		src := Reg(i)
		if t.reg8[src].guest == guest && !t.reg8[src].free {
			if !t.reg8[r].free {
				t.swapReg8(r, src, loadValue)
			} else {
				t.replaceReg8(r, src, loadValue)
			}
			t.reg8[r].age = 0
			return r
		}
	}

	if !t.reg8[r].free {
		t.deallocReg8(r)
	}
	t.allocReg8(r, guest, loadValue)
	return r
}

// AllocIndex maps the guest I register to its fixed host register.
// Idempotent while allocated.
func (t *Tracker) AllocIndex(loadValue bool) Reg {
	if !t.index.free {
		return RegIndex
	}

	t.Dirty32(RegIndex)
	t.index.free = false
	t.index.modified = false

	if loadValue {
		t.asm.MovRegMem32(RegIndex, RegBase, t.iOff)
	}
	return RegIndex
}

// Dealloc frees a host byte register, with write-back if it was modified.
func (t *Tracker) Dealloc(r Reg) {
	t.deallocReg8(r)
}

// DeallocIndex frees the I register, with write-back if it was modified.
func (t *Tracker) DeallocIndex() {
	t.saveIndex()
	t.index.free = true
	t.index.modified = false
}

// SaveRegisters writes every live modified register back to guest memory,
// keeping the mappings live. Called at block boundaries and before
// conditional branches so memory is exact when control leaves the block.
func (t *Tracker) SaveRegisters() {
	for i := 0; i < NumRegs8; i++ {
		t.saveReg8(Reg(i))
	}
	t.saveIndex()
}

// Realloc moves a live allocation from one host register to a free one.
// Returns false when from is free or to is occupied.
func (t *Tracker) Realloc(from, to Reg) bool {
	if t.reg8[from].free || !t.reg8[to].free {
		return false
	}

	t.replaceReg8(to, from, true)
	return true
}

// MarkModified flags a host byte register as holding a value newer than
// guest memory.
func (t *Tracker) MarkModified(r Reg) {
	t.reg8[r].modified = true
}

// MarkIndexModified flags the I register as newer than guest memory.
func (t *Tracker) MarkIndexModified() {
	t.index.modified = true
}

// IsAllocatedGuest reports whether a guest register is live in some host
// register.
func (t *Tracker) IsAllocatedGuest(guest int) bool {
	for i := 0; i < NumRegs8; i++ {
		if t.reg8[i].guest == guest && !t.reg8[i].free {
			return true
		}
	}
	return false
}

// IsAllocatedHost reports whether a host byte register is occupied.
func (t *Tracker) IsAllocatedHost(r Reg) bool {
	return !t.reg8[r].free
}

// IsAllocatedIndex reports whether the I register is allocated.
func (t *Tracker) IsAllocatedIndex() bool {
	return !t.index.free
}

// FreeByteRegs returns the number of free host byte registers.
func (t *Tracker) FreeByteRegs() int {
	return t.free8
}

// Dirty32 records that generated code is about to clobber a host 32-bit
// register the caller expects preserved, and emits the push. The return
// register is exempt. Idempotent per register per block.
func (t *Tracker) Dirty32(r Reg) {
	if !t.dirty[r] && r != RegRet {
		t.dirty[r] = true
		t.dirtyOrder[t.dirtyCount] = r
		t.asm.Push(r)
		t.dirtyCount++
	}
}

// Dirty8 records dirtiness for the 32-bit register covering a byte
// register.
func (t *Tracker) Dirty8(r Reg) {
	t.Dirty32(r & 0x3)
}

// IsDirty32 reports whether a host 32-bit register has been pushed.
func (t *Tracker) IsDirty32(r Reg) bool {
	return t.dirty[r]
}

// RestoreDirty emits pops for every dirtied register in reverse push
// order. It does not clear the log: a block with several exits restores
// the same set on each.
func (t *Tracker) RestoreDirty() {
	for i := t.dirtyCount - 1; i >= 0; i-- {
		t.asm.Pop(t.dirtyOrder[i])
	}
}

// TempReg32 returns a scratch 32-bit register that overlaps no live byte
// mapping: EAX when both its halves are free, the reserved temp otherwise.
func (t *Tracker) TempReg32() Reg {
	if t.reg8[AL].free && t.reg8[AH].free {
		return RegRet
	}
	return RegTmp
}
