//go:build linux && amd64

package dynarec

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ExecMem hands out executable memory regions, one per code block, so a
// block can be dropped from the translation cache independently of every
// other block. mmap returns page-aligned memory, which satisfies the
// 16-byte entry alignment for free.
type ExecMem struct {
	mu      sync.Mutex
	regions int
	used    int
}

// Region is one executable allocation. It is writable during the copy and
// remains executable until released.
type Region struct {
	mem *ExecMem
	buf []byte
}

// NewExecMem creates an executable memory allocator.
func NewExecMem() *ExecMem {
	return &ExecMem{}
}

// Acquire maps a fresh anonymous region of at least size bytes with
// read/write/execute permissions.
func (m *ExecMem) Acquire(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("executable region size must be positive, got %d", size)
	}

	buf, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap executable memory: %w", err)
	}

	m.mu.Lock()
	m.regions++
	m.used += size
	m.mu.Unlock()

	return &Region{mem: m, buf: buf}, nil
}

// Bytes returns the writable view of the region.
func (r *Region) Bytes() []byte {
	return r.buf
}

// Entry returns the address of the first byte of the region.
func (r *Region) Entry() uintptr {
	return uintptr(unsafe.Pointer(&r.buf[0]))
}

// Size returns the mapped size in bytes.
func (r *Region) Size() int {
	return len(r.buf)
}

// Release unmaps the region. The region must not be executing.
func (r *Region) Release() error {
	if r.buf == nil {
		return nil
	}

	size := len(r.buf)
	err := unix.Munmap(r.buf)
	r.buf = nil

	r.mem.mu.Lock()
	r.mem.regions--
	r.mem.used -= size
	r.mem.mu.Unlock()

	return err
}

// Used returns the total mapped code bytes.
func (m *ExecMem) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Regions returns the number of live regions.
func (m *ExecMem) Regions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions
}
