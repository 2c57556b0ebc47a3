//go:build linux && amd64

package dynarec

import (
	"bytes"
	"testing"
)

func finalized(t *testing.T, a *Assembler) []byte {
	t.Helper()

	mem := NewExecMem()
	region, err := a.Finalize(mem)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	t.Cleanup(func() { _ = region.Release() })

	return region.Bytes()
}

func TestEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(a *Assembler)
		want []byte
	}{
		{"mov al, imm8", func(a *Assembler) { a.MovRegImm8(AL, 0x42) }, []byte{0xB0, 0x42}},
		{"mov bh, imm8", func(a *Assembler) { a.MovRegImm8(BH, 0x01) }, []byte{0xB7, 0x01}},
		{"mov dl, ah", func(a *Assembler) { a.MovRegReg8(DL, AH) }, []byte{0x88, 0xE2}},
		{"xchg cl, dh", func(a *Assembler) { a.XchgRegReg8(CL, DH) }, []byte{0x86, 0xCE}},
		{"add al, cl", func(a *Assembler) { a.AddRegReg8(AL, CL) }, []byte{0x00, 0xC8}},
		{"add ah, imm8", func(a *Assembler) { a.AddRegImm8(AH, 3) }, []byte{0x80, 0xC4, 0x03}},
		{"sub bl, dl", func(a *Assembler) { a.SubRegReg8(BL, DL) }, []byte{0x28, 0xD3}},
		{"cmp ah, imm8", func(a *Assembler) { a.CmpRegImm8(AH, 5) }, []byte{0x80, 0xFC, 0x05}},
		{"test dh, dh", func(a *Assembler) { a.TestRegReg8(DH, DH) }, []byte{0x84, 0xF6}},
		{"shl dh, 1", func(a *Assembler) { a.ShlReg8(DH) }, []byte{0xD0, 0xE6}},
		{"shr al, 1", func(a *Assembler) { a.ShrReg8(AL) }, []byte{0xD0, 0xE8}},
		{"setc bl", func(a *Assembler) { a.Setc(BL) }, []byte{0x0F, 0x92, 0xC3}},
		{"setnc bl", func(a *Assembler) { a.Setnc(BL) }, []byte{0x0F, 0x93, 0xC3}},
		{"div dl", func(a *Assembler) { a.DivReg8(DL) }, []byte{0xF6, 0xF2}},
		{"mul cl", func(a *Assembler) { a.MulReg8(CL) }, []byte{0xF6, 0xE1}},
		{"inc cl", func(a *Assembler) { a.IncReg8(CL) }, []byte{0xFE, 0xC1}},
		{"mov eax, imm32", func(a *Assembler) { a.MovRegImm32(EAX, 0x12345678) }, []byte{0xB8, 0x78, 0x56, 0x34, 0x12}},
		{"mov rbp, imm64", func(a *Assembler) { a.MovRegImm64(EBP, 0x1122334455667788) },
			[]byte{0x48, 0xBD, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
		{"mov edi, esi", func(a *Assembler) { a.MovRegReg32(EDI, ESI) }, []byte{0x89, 0xF7}},
		{"add esi, small imm", func(a *Assembler) { a.AddRegImm32(ESI, 4) }, []byte{0x83, 0xC6, 0x04}},
		{"add esi, imm32", func(a *Assembler) { a.AddRegImm32(ESI, 0x1000) }, []byte{0x81, 0xC6, 0x00, 0x10, 0x00, 0x00}},
		{"inc esi", func(a *Assembler) { a.IncReg32(ESI) }, []byte{0xFF, 0xC6}},
		{"shr eax, 24", func(a *Assembler) { a.ShrRegImm32(EAX, 24) }, []byte{0xC1, 0xE8, 0x18}},
		{"shl edi, 6", func(a *Assembler) { a.ShlRegImm32(EDI, 6) }, []byte{0xC1, 0xE7, 0x06}},
		{"movzx eax, al", func(a *Assembler) { a.MovzxRegReg8(EAX, AL) }, []byte{0x0F, 0xB6, 0xC0}},
		{"movzx edi, dl", func(a *Assembler) { a.MovzxRegReg8(EDI, DL) }, []byte{0x0F, 0xB6, 0xFA}},
		{"bswap ecx", func(a *Assembler) { a.BswapReg32(ECX) }, []byte{0x0F, 0xC9}},
		{"push rbp", func(a *Assembler) { a.Push(EBP) }, []byte{0x55}},
		{"pop rdi", func(a *Assembler) { a.Pop(EDI) }, []byte{0x5F}},
		{"ret", func(a *Assembler) { a.Ret() }, []byte{0xC3}},
		{"call rax", func(a *Assembler) { a.CallReg(EAX) }, []byte{0xFF, 0xD0}},
		{"mov al, [rbp+disp8]", func(a *Assembler) { a.MovRegMem8(AL, EBP, 0x10) }, []byte{0x8A, 0x45, 0x10}},
		{"mov [rbp+disp32], ah", func(a *Assembler) { a.MovMemReg8(EBP, 0x1000, AH) },
			[]byte{0x88, 0xA5, 0x00, 0x10, 0x00, 0x00}},
		{"mov esi, [rbp+disp32]", func(a *Assembler) { a.MovRegMem32(ESI, EBP, 0x1860) },
			[]byte{0x8B, 0xB5, 0x60, 0x18, 0x00, 0x00}},
		{"mov dh, [rbp+rdi]", func(a *Assembler) { a.MovRegMemIdx8(DH, EBP, EDI, 0) },
			[]byte{0x8A, 0x74, 0x3D, 0x00}},
		{"mov [rbp+rsi], al", func(a *Assembler) { a.MovMemIdxReg8(EBP, ESI, 0, AL) },
			[]byte{0x88, 0x44, 0x35, 0x00}},
		{"xor byte [rbp+rdi], 1", func(a *Assembler) { a.XorMemIdxImm8(EBP, EDI, 0, 1) },
			[]byte{0x80, 0x74, 0x3D, 0x00, 0x01}},
		{"cmp byte [rbp+rax], 0", func(a *Assembler) { a.CmpMemIdxImm8(EBP, EAX, 0, 0) },
			[]byte{0x80, 0x7C, 0x05, 0x00, 0x00}},
		{"mul dword [rbp+disp8]", func(a *Assembler) { a.MulMem32(EBP, 0x18) }, []byte{0xF7, 0x65, 0x18}},
		{"mov dword [rbp+disp8], imm32", func(a *Assembler) { a.MovMemImm32(EBP, 0x20, 1) },
			[]byte{0xC7, 0x45, 0x20, 0x01, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			tt.emit(a)
			if !bytes.Equal(a.Bytes(), tt.want) {
				t.Errorf("encoded % X, want % X", a.Bytes(), tt.want)
			}
		})
	}
}

func TestForwardShortJump(t *testing.T) {
	a := NewAssembler()

	l := a.NewLabel()
	a.Jz(l)
	for i := 0; i < 4; i++ {
		a.Nop()
	}
	a.PlaceLabel(l)
	a.Ret()

	code := finalized(t, a)

	// rel = 10, short form: displacement 8 from the end of the 2-byte jump.
	if code[0] != 0x74 || code[1] != 0x08 {
		t.Errorf("short jz = % X, want 74 08", code[:2])
	}
	// Remaining hole bytes stay NOP padding.
	for i := 2; i < 6; i++ {
		if code[i] != 0x90 {
			t.Errorf("byte %d = %#x, want NOP", i, code[i])
		}
	}
}

func TestForwardNearJump(t *testing.T) {
	a := NewAssembler()

	l := a.NewLabel()
	a.Jnz(l)
	for i := 0; i < 200; i++ {
		a.Nop()
	}
	a.PlaceLabel(l)
	a.Ret()

	code := finalized(t, a)

	// rel = 206, near form: 0F 85 with displacement 200.
	if code[0] != 0x0F || code[1] != 0x85 {
		t.Fatalf("near jnz opcode = % X, want 0F 85", code[:2])
	}
	disp := int32(code[2]) | int32(code[3])<<8 | int32(code[4])<<16 | int32(code[5])<<24
	if disp != 200 {
		t.Errorf("near displacement = %d, want 200", disp)
	}
}

func TestBackwardJump(t *testing.T) {
	a := NewAssembler()

	l := a.NewLabel()
	a.PlaceLabel(l)
	a.Nop()
	a.Nop()
	a.Jmp(l)
	a.Ret()

	code := finalized(t, a)

	// Jump site at 2, label at 0: rel = -2, short form EB FC.
	if code[2] != 0xEB || code[3] != 0xFC {
		t.Errorf("backward jmp = % X, want EB FC", code[2:4])
	}
}

func TestUnplacedLabelDropped(t *testing.T) {
	a := NewAssembler()

	l := a.NewLabel()
	a.Jz(l)
	a.Ret()

	code := finalized(t, a)

	// The hole is left as harmless NOPs.
	for i := 0; i < jumpHoleSize; i++ {
		if code[i] != 0x90 {
			t.Errorf("byte %d = %#x, want NOP", i, code[i])
		}
	}
}

func TestAlign16(t *testing.T) {
	a := NewAssembler()

	a.Nop()
	a.Align16()
	if a.Offset() != 16 {
		t.Errorf("offset after Align16 = %d, want 16", a.Offset())
	}

	a.Align16()
	if a.Offset() != 16 {
		t.Errorf("offset after aligned Align16 = %d, want 16", a.Offset())
	}
}

func TestExecuteGeneratedCode(t *testing.T) {
	a := NewAssembler()

	a.MovRegImm32(EAX, 0x1234)
	a.Ret()

	mem := NewExecMem()
	region, err := a.Finalize(mem)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	defer region.Release()

	if got := callBlock(region.Entry()); got != 0x1234 {
		t.Errorf("generated code returned %#x, want 0x1234", got)
	}

	if mem.Regions() != 1 {
		t.Errorf("live regions = %d, want 1", mem.Regions())
	}
}
