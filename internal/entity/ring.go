package entity

// Ring is a fixed-capacity buffer that keeps the most recent values pushed
// into it. Old entries are overwritten once the capacity is reached.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{buf: make([]T, capacity)}
}

func (that *Ring[T]) Push(value T) {
	if that.size < len(that.buf) {
		that.buf[(that.start+that.size)%len(that.buf)] = value
		that.size++
		return
	}

	that.buf[that.start] = value
	that.start = (that.start + 1) % len(that.buf)
}

// Items returns the buffered values, oldest first.
func (that *Ring[T]) Items() []T {
	items := make([]T, 0, that.size)
	for i := 0; i < that.size; i++ {
		items = append(items, that.buf[(that.start+i)%len(that.buf)])
	}

	return items
}

func (that *Ring[T]) Len() int {
	return that.size
}

func (that *Ring[T]) Reset() {
	that.start = 0
	that.size = 0
}
