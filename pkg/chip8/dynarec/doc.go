//go:build linux && amd64

// Package dynarec translates CHIP-8 instructions into amd64 machine code
// at runtime. Guest opcodes are decoded into short basic blocks, compiled
// through a streaming assembler with an age-LRU register allocator, and
// cached in a direct-mapped table keyed by guest PC. A cached block is a
// parameterless native function returning the next guest PC.
package dynarec
