// Package adapt reshapes sequences so that one function can be reused
// across APIs that expect different shapes: single values or key/value
// pairs, with values optionally remapped.
package adapt

import "iter"

// Map yields fn(v) for every v of seq.
func Map[T, U any](seq iter.Seq[T], fn func(T) U) iter.Seq[U] {
	return func(yield func(U) bool) {
		for v := range seq {
			if !yield(fn(v)) {
				return
			}
		}
	}
}

// MapSeq2 yields fn(k, v) for every pair of seq.
func MapSeq2[K, V, U any](seq iter.Seq2[K, V], fn func(K, V) U) iter.Seq[U] {
	return func(yield func(U) bool) {
		for k, v := range seq {
			if !yield(fn(k, v)) {
				return
			}
		}
	}
}

// MapValues rewrites the values of seq, keeping the keys.
func MapValues[K, V, U any](seq iter.Seq2[K, V], fn func(V) U) iter.Seq2[K, U] {
	return func(yield func(K, U) bool) {
		for k, v := range seq {
			if !yield(k, fn(v)) {
				return
			}
		}
	}
}
