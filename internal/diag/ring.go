package diag

// ring is a fixed-capacity FIFO buffer. Length never exceeds capacity; the
// oldest entry is evicted first.
type ring[T any] struct {
	data []T
	head int
	size int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	tail := (r.head + r.size) % len(r.data)
	r.data[tail] = v
	if r.size < len(r.data) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.data)
}

func (r *ring[T]) len() int {
	return r.size
}

// snapshot copies the contents oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}

	return out
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.size = 0
}
