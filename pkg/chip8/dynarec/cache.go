//go:build linux && amd64

package dynarec

// cacheSize is one slot per possible guest address: CHIP-8 addresses are
// 12 bits, so a direct-mapped table is small and lookup is a single index.
const cacheSize = 4096

// Cache is the direct-mapped translation cache from guest PC to CodeBlock.
// At most one block lives at each address; the cache owns its blocks and
// releases them on replace, remove and flush.
type Cache struct {
	blocks [cacheSize]*CodeBlock
	count  int
}

// NewCache creates an empty translation cache.
func NewCache() *Cache {
	return &Cache{}
}

func cacheIndex(addr uint16) uint16 {
	return addr & (cacheSize - 1)
}

// Execute invokes the block at *pc if present, storing the produced next PC
// back into *pc. Returns false on a miss, leaving *pc untouched.
func (c *Cache) Execute(pc *uint16) bool {
	block := c.blocks[cacheIndex(*pc)]
	if block == nil {
		return false
	}

	*pc = block.Invoke()
	return true
}

// ExecuteN executes blocks starting at *pc until at least opcount guest
// instructions have run. On a miss, *pc holds the missing address and false
// is returned; blocks already executed have committed their effects.
func (c *Cache) ExecuteN(pc *uint16, opcount int) bool {
	ops := 0

	for {
		block := c.blocks[cacheIndex(*pc)]
		if block == nil {
			return false
		}

		ops += block.OpCount
		*pc = block.Invoke()

		if ops >= opcount {
			return true
		}
	}
}

// Insert installs a block at its guest address. Returns false if the slot
// is already occupied; the caller keeps ownership of the rejected block.
func (c *Cache) Insert(block *CodeBlock) bool {
	i := cacheIndex(block.GuestAddr)
	if c.blocks[i] != nil {
		return false
	}

	c.blocks[i] = block
	c.count++
	return true
}

// Replace installs a block unconditionally, releasing any prior occupant.
func (c *Cache) Replace(block *CodeBlock) {
	i := cacheIndex(block.GuestAddr)
	if c.blocks[i] != nil {
		c.blocks[i].Release()
	} else {
		c.count++
	}
	c.blocks[i] = block
}

// Remove releases the block at addr, if any.
func (c *Cache) Remove(addr uint16) {
	i := cacheIndex(addr)
	if c.blocks[i] != nil {
		c.blocks[i].Release()
		c.blocks[i] = nil
		c.count--
	}
}

// Exists reports whether a block is cached at addr.
func (c *Cache) Exists(addr uint16) bool {
	return c.blocks[cacheIndex(addr)] != nil
}

// Len returns the number of live blocks.
func (c *Cache) Len() int {
	return c.count
}

// Flush releases every block.
func (c *Cache) Flush() {
	for i := range c.blocks {
		if c.blocks[i] != nil {
			c.blocks[i].Release()
			c.blocks[i] = nil
		}
	}
	c.count = 0
}
