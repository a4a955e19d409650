package sequence

import "iter"

// Iterator is a generic, immutable, chainable iterator for any type T.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator over the given slice.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// Seq returns the underlying sequence function for the iterator.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Filter returns a new Iterator yielding only elements for which pred is true.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	src := i.seq
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for v := range src {
				if pred(v) && !yield(v) {
					return
				}
			}
		},
	}
}

// Collect drains the iterator into a slice.
func (i *Iterator[T]) Collect() []T {
	var out []T
	for v := range i.seq {
		out = append(out, v)
	}
	return out
}

// Count drains the iterator and returns the number of elements.
func (i *Iterator[T]) Count() int {
	n := 0
	for range i.seq {
		n++
	}
	return n
}
