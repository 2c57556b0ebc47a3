//go:build linux && amd64

package dynarec

import (
	"testing"
)

func newTestTracker() (*Tracker, *Assembler) {
	asm := NewAssembler()
	return NewTracker(asm, 0x1000, 0x1840), asm
}

func TestAllocByteReusesLiveMapping(t *testing.T) {
	tr, _ := newTestTracker()

	r1 := tr.AllocByte(3, true)
	r2 := tr.AllocByte(3, true)

	if r1 != r2 {
		t.Errorf("second alloc of same guest = %v, want %v", r2, r1)
	}
	if tr.FreeByteRegs() != NumRegs8-1 {
		t.Errorf("free slots = %d, want %d", tr.FreeByteRegs(), NumRegs8-1)
	}
}

func TestFreeSlotAccounting(t *testing.T) {
	tr, _ := newTestTracker()

	for g := 0; g < NumRegs8; g++ {
		tr.AllocByte(g, false)
	}

	if tr.FreeByteRegs() != 0 {
		t.Fatalf("free slots = %d, want 0", tr.FreeByteRegs())
	}

	live := 0
	for r := 0; r < NumRegs8; r++ {
		if tr.IsAllocatedHost(Reg(r)) {
			live++
		}
	}
	if live != NumRegs8 {
		t.Errorf("live slots = %d, want %d", live, NumRegs8)
	}
}

func TestEvictionPicksOldest(t *testing.T) {
	tr, _ := newTestTracker()

	var first Reg
	for g := 0; g < NumRegs8; g++ {
		r := tr.AllocByte(g, false)
		if g == 0 {
			first = r
		}
	}

	// A ninth guest must evict the oldest mapping, which is guest 0.
	r := tr.AllocByte(8, false)

	if r != first {
		t.Errorf("eviction chose %v, want oldest slot %v", r, first)
	}
	if tr.IsAllocatedGuest(0) {
		t.Error("guest 0 still allocated after eviction")
	}
	if !tr.IsAllocatedGuest(8) {
		t.Error("guest 8 not allocated after eviction")
	}
	if tr.FreeByteRegs() != 0 {
		t.Errorf("free slots = %d, want 0", tr.FreeByteRegs())
	}
}

func TestEvictionWritesBackModified(t *testing.T) {
	tr, asm := newTestTracker()

	for g := 0; g < NumRegs8; g++ {
		r := tr.AllocByte(g, false)
		tr.MarkModified(r)
	}

	before := asm.Offset()
	tr.AllocByte(8, false)

	// The eviction must emit a store of the old value before anything else.
	code := asm.Bytes()[before:]
	if len(code) == 0 || code[0] != 0x88 {
		t.Errorf("eviction emitted % X, want leading byte store (88)", code)
	}
}

func TestAllocByteIntoSwapsLiveGuest(t *testing.T) {
	tr, _ := newTestTracker()

	r := tr.AllocByte(5, true)
	if r == AL {
		t.Skip("guest landed in AL already")
	}

	got := tr.AllocByteInto(AL, 5, true)
	if got != AL {
		t.Fatalf("forced alloc = %v, want AL", got)
	}
	if !tr.IsAllocatedGuest(5) {
		t.Error("guest 5 lost during forced alloc")
	}
	if tr.IsAllocatedHost(r) {
		t.Errorf("old slot %v still allocated after move to AL", r)
	}
}

func TestSaveRegistersClearsModified(t *testing.T) {
	tr, asm := newTestTracker()

	r := tr.AllocByte(2, false)
	tr.MarkModified(r)

	before := asm.Offset()
	tr.SaveRegisters()
	saved := asm.Offset() - before

	if saved == 0 {
		t.Fatal("SaveRegisters emitted nothing for a modified register")
	}

	// A second save has nothing left to write.
	before = asm.Offset()
	tr.SaveRegisters()
	if asm.Offset() != before {
		t.Error("second SaveRegisters emitted code for clean registers")
	}
}

func TestDirtyPushPopOrder(t *testing.T) {
	tr, asm := newTestTracker()

	tr.Dirty32(EBP)
	tr.Dirty32(EBX)
	tr.Dirty32(EDI)
	tr.Dirty32(EBX) // already dirty, no second push
	tr.Dirty32(EAX) // return register is exempt

	want := []byte{0x55, 0x53, 0x57} // push rbp, rbx, rdi
	if got := asm.Bytes(); len(got) != len(want) ||
		got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("pushes = % X, want % X", got, want)
	}

	before := asm.Offset()
	tr.RestoreDirty()
	pops := asm.Bytes()[before:]

	wantPops := []byte{0x5F, 0x5B, 0x5D} // pop rdi, rbx, rbp
	if len(pops) != len(wantPops) ||
		pops[0] != wantPops[0] || pops[1] != wantPops[1] || pops[2] != wantPops[2] {
		t.Errorf("pops = % X, want % X", pops, wantPops)
	}
}

func TestAllocIndexIdempotent(t *testing.T) {
	tr, asm := newTestTracker()

	r := tr.AllocIndex(true)
	if r != RegIndex {
		t.Fatalf("index register = %v, want %v", r, RegIndex)
	}

	before := asm.Offset()
	if got := tr.AllocIndex(true); got != RegIndex {
		t.Fatalf("second index alloc = %v, want %v", got, RegIndex)
	}
	if asm.Offset() != before {
		t.Error("second index alloc emitted code")
	}
}

func TestTempReg32AvoidsLiveMappings(t *testing.T) {
	tr, _ := newTestTracker()

	if r := tr.TempReg32(); r != RegRet {
		t.Errorf("temp with empty file = %v, want %v", r, RegRet)
	}

	tr.AllocByteInto(AL, 1, false)
	if r := tr.TempReg32(); r != RegTmp {
		t.Errorf("temp with AL live = %v, want %v", r, RegTmp)
	}
}

func TestDeallocWritesBack(t *testing.T) {
	tr, asm := newTestTracker()

	r := tr.AllocByte(4, false)
	tr.MarkModified(r)

	before := asm.Offset()
	tr.Dealloc(r)

	if asm.Offset() == before {
		t.Error("dealloc of a modified register emitted no store")
	}
	if tr.IsAllocatedHost(r) {
		t.Error("register still allocated after dealloc")
	}
	if tr.FreeByteRegs() != NumRegs8 {
		t.Errorf("free slots = %d, want %d", tr.FreeByteRegs(), NumRegs8)
	}
}
