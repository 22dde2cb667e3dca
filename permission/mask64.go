package permission

// Mask64 is a 64-bit permission bitmask. When the root bit is reserved it
// occupies bit 63 and grants every permission.
type Mask64 uint64

// RootBit is the bit reserved for the all-permissions grant.
const RootBit = 63

func (m Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= 64 {
		return false
	}

	if rootReserved && m&(1<<RootBit) != 0 {
		return true
	}

	return m&(1<<bit) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
