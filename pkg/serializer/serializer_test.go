package serializer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type inner struct {
	A uint16
	B [3]byte
}

type sample struct {
	Mem   [8]byte
	Words [2]uint32
	Inner inner
	Flag  uint8
	Big   uint64
}

func TestRoundTrip(t *testing.T) {
	in := sample{
		Mem:   [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Words: [2]uint32{0xDEADBEEF, 42},
		Inner: inner{A: 0x1234, B: [3]byte{9, 8, 7}},
		Flag:  0xFF,
		Big:   1 << 40,
	}

	data := Serialize(&in)

	wantLen := 8 + 2*4 + 2 + 3 + 1 + 8
	if len(data) != wantLen {
		t.Fatalf("serialized length = %d, want %d", len(data), wantLen)
	}

	var out sample
	if err := Deserialize(data, &out); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLittleEndianLayout(t *testing.T) {
	v := struct{ X uint32 }{X: 0x11223344}

	data := Serialize(v)
	want := []byte{0x44, 0x33, 0x22, 0x11}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, data[i], want[i])
		}
	}
}

func TestDeserializeRejectsShortData(t *testing.T) {
	var out sample
	if err := Deserialize([]byte{1, 2, 3}, &out); err == nil {
		t.Error("short data accepted")
	}
}

func TestDeserializeRejectsTrailingData(t *testing.T) {
	v := struct{ X uint16 }{X: 7}
	data := append(Serialize(v), 0xAA)

	var out struct{ X uint16 }
	if err := Deserialize(data, &out); err == nil {
		t.Error("trailing data accepted")
	}
}

func TestDeserializeNeedsPointer(t *testing.T) {
	var out sample
	if err := Deserialize(Serialize(out), out); err == nil {
		t.Error("non-pointer target accepted")
	}
}
