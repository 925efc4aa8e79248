package location

// fixRing is a fixed-capacity FIFO window over accepted fixes. The backing
// array is allocated once; eviction is an index move, never a reslice.
type fixRing struct {
	data []Fix
	head int // index of the oldest entry
	size int
}

func newFixRing(capacity int) *fixRing {
	return &fixRing{data: make([]Fix, capacity)}
}

func (r *fixRing) push(f Fix) {
	tail := (r.head + r.size) % len(r.data)
	r.data[tail] = f
	if r.size < len(r.data) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.data)
}

func (r *fixRing) len() int {
	return r.size
}

// ordered returns the window contents oldest first, as a copy.
func (r *fixRing) ordered() []Fix {
	out := make([]Fix, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}

	return out
}

func (r *fixRing) reset() {
	r.head = 0
	r.size = 0
}
