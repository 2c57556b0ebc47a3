//go:build linux && amd64

package dynarec

// callBlock transfers control to a translated block. Blocks take no
// arguments: every guest state address they need was baked in at
// translation time. The next guest PC comes back in EAX; everything else
// the block touched was preserved by its own push/pop discipline.
//
// Implemented in block_amd64.s.
func callBlock(entry uintptr) uint32
