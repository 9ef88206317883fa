package observer

// Ring is a fixed capacity circular buffer, the oldest item is overwritten
// once it is full. Ring is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	next  int
	count int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, capacity),
	}
}

func (r *Ring[T]) Push(v T) {
	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Len saturates at Cap.
func (r *Ring[T]) Len() int { return r.count }

func (r *Ring[T]) Cap() int { return len(r.items) }

// Items returns the buffered items, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.count)
	start := (r.next - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

func (r *Ring[T]) Reset() {
	clear(r.items)
	r.next = 0
	r.count = 0
}
