package core

import "fmt"

// IDPool hands out dense integer slots, reusing released ones first.
// It backs arenas that address their nodes by index.
type IDPool struct {
	owners []bool
	free   []int
}

func NewIDPool(capacity int) *IDPool {
	return &IDPool{
		owners: make([]bool, 0, capacity),
	}
}

// Acquire returns a free slot, growing the pool when none is available.
func (p *IDPool) Acquire() int {
	// Existing free spot. Take it.
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.owners[id] = true
		return id
	}
	// No existing free slots, push a new one.
	p.owners = append(p.owners, true)
	return len(p.owners) - 1
}

// Release makes the slot available again.
func (p *IDPool) Release(id int) error {
	if id < 0 || id >= len(p.owners) {
		return fmt.Errorf("id pool release: id '%d' out of range (max=%d). Nothing was done", id, len(p.owners))
	}
	if !p.owners[id] {
		return fmt.Errorf("id pool release: id '%d' is not in use. Nothing was done", id)
	}
	p.owners[id] = false
	p.free = append(p.free, id)
	return nil
}

// InUse reports whether the slot is currently acquired.
func (p *IDPool) InUse(id int) bool {
	return id >= 0 && id < len(p.owners) && p.owners[id]
}

// Len is the number of slots ever created, in use or not.
func (p *IDPool) Len() int {
	return len(p.owners)
}
