package bitmap

// Bitmap is a bit vector laid over a byte slice. Bit i lives in byte i/8,
// least significant bit first, so the view can be placed directly on top of
// an on-disk region.
type Bitmap []byte

// BytesFor returns the number of bytes needed to hold n bits.
func BytesFor(n int) int {
	return (n + 7) / 8
}

func (b Bitmap) Get(i int) bool {
	return b[i/8]&(1<<(uint(i)%8)) != 0
}

func (b Bitmap) Set(i int, v bool) {
	if v {
		b[i/8] |= 1 << (uint(i) % 8)
		return
	}
	b[i/8] &^= 1 << (uint(i) % 8)
}

// FirstClear returns the lowest clear index below n.
func (b Bitmap) FirstClear(n int) (int, bool) {
	for i := 0; i < n; i++ {
		if b[i/8] == 0xff {
			i += 7 - i%8
			continue
		}
		if !b.Get(i) {
			return i, true
		}
	}
	return 0, false
}

// Count returns the number of set bits below n.
func (b Bitmap) Count(n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if b.Get(i) {
			count++
		}
	}
	return count
}
